package qa

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aigist/aigist/internal/chunker"
	"github.com/aigist/aigist/internal/retrieval"
	"github.com/aigist/aigist/internal/storage"
)

// fakeEmbeddings returns canned vectors keyed by text prefix and counts
// provider calls.
type fakeEmbeddings struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbeddings) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		for prefix, vec := range f.vectors {
			if strings.HasPrefix(t, prefix) {
				out[i] = vec
				break
			}
		}
		if out[i] == nil {
			out[i] = []float32{0.1, 0.1} // weakly similar filler
		}
	}
	return out, nil
}

// fakeGenerator echoes the prompt it received, or fails on demand.
type fakeGenerator struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (f *fakeGenerator) Chat(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.prompt = user
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// newTestAgent builds an Agent over temp-dir persistence, an in-memory
// registry, and the given fakes.
func newTestAgent(t *testing.T, emb *fakeEmbeddings, gen *fakeGenerator) *Agent {
	t.Helper()
	store := retrieval.NewStore(filepath.Join(t.TempDir(), "vectors.json"), retrieval.NewEmbedder(emb))
	registry, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening registry: %v", err)
	}
	t.Cleanup(func() { registry.Close() })

	return NewAgent(
		chunker.New(1000, 200),
		store,
		retrieval.NewRetentionManager(store, 5),
		registry,
		gen,
	)
}

func TestAddDocumentAndAnswer(t *testing.T) {
	emb := &fakeEmbeddings{vectors: map[string][]float32{
		"The sky is blue": {1, 0},
		"What color":      {0.9, 0.1},
	}}
	gen := &fakeGenerator{answer: "The sky is blue."}
	a := newTestAgent(t, emb, gen)
	ctx := context.Background()

	res, err := a.AddDocument(ctx, "The sky is blue. Water is wet.", "doc1", "u1")
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if res.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1 (text shorter than chunk size)", res.Chunks)
	}
	if res.DocumentID == "" {
		t.Error("DocumentID is empty")
	}

	answer := a.AnswerQuestion(ctx, "What color is the sky?", "u1")
	if answer != "The sky is blue." {
		t.Errorf("answer = %q, want the grounded answer", answer)
	}
	if !strings.Contains(gen.prompt, "The sky is blue. Water is wet.") {
		t.Errorf("prompt does not contain the matched chunk: %q", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "[Source: doc1]") {
		t.Errorf("prompt does not label the source: %q", gen.prompt)
	}
}

func TestAddDocument_TooShort(t *testing.T) {
	a := newTestAgent(t, &fakeEmbeddings{}, &fakeGenerator{})

	_, err := a.AddDocument(context.Background(), "short", "t", "u1")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if a.store.Count() != 0 {
		t.Errorf("store has %d records after rejected add, want 0", a.store.Count())
	}
}

func TestAnswerQuestion_EmptyStoreNoProviderCalls(t *testing.T) {
	emb := &fakeEmbeddings{}
	gen := &fakeGenerator{answer: "should not be called"}
	a := newTestAgent(t, emb, gen)

	answer := a.AnswerQuestion(context.Background(), "anything?", "u1")
	if answer != msgNoDocuments {
		t.Errorf("answer = %q, want the fixed no-documents message", answer)
	}
	if emb.calls != 0 || gen.calls != 0 {
		t.Errorf("provider calls = %d embed, %d generate; want zero", emb.calls, gen.calls)
	}
}

func TestAnswerQuestion_RelaxedThresholdFallback(t *testing.T) {
	// The stored chunk scores below the 0.1 primary threshold but above
	// zero, so the relaxed retry finds it.
	emb := &fakeEmbeddings{vectors: map[string][]float32{
		"An unrelated fact": {1, 0, 0},
		"completely":        {0.001, 1, 0},
	}}
	gen := &fakeGenerator{answer: "weak but grounded"}
	a := newTestAgent(t, emb, gen)
	ctx := context.Background()

	if _, err := a.AddDocument(ctx, "An unrelated fact about nothing.", "doc", "u1"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	answer := a.AnswerQuestion(ctx, "completely different topic?", "u1")
	if answer != "weak but grounded" {
		t.Errorf("answer = %q, want generation from relaxed-threshold match", answer)
	}
}

func TestAnswerQuestion_NoMatchMessage(t *testing.T) {
	// Orthogonal vectors score exactly 0, which the relaxed retry still
	// admits; an opposite-direction vector scores below 0 and never matches.
	emb := &fakeEmbeddings{vectors: map[string][]float32{
		"Some stored":    {1, 0},
		"opposite query": {-1, 0},
	}}
	gen := &fakeGenerator{answer: "should not be called"}
	a := newTestAgent(t, emb, gen)
	ctx := context.Background()

	if _, err := a.AddDocument(ctx, "Some stored document text.", "doc", "u1"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	answer := a.AnswerQuestion(ctx, "opposite query", "u1")
	if answer != msgNoMatch {
		t.Errorf("answer = %q, want the fixed no-match message", answer)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
}

func TestAnswerQuestion_GeneratorFailureBecomesMessage(t *testing.T) {
	emb := &fakeEmbeddings{vectors: map[string][]float32{
		"The facts": {1, 0},
		"question":  {1, 0},
	}}
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	a := newTestAgent(t, emb, gen)
	ctx := context.Background()

	if _, err := a.AddDocument(ctx, "The facts are plentiful here.", "doc", "u1"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	answer := a.AnswerQuestion(ctx, "question about facts", "u1")
	if !strings.Contains(answer, "model overloaded") {
		t.Errorf("answer = %q, want descriptive error string", answer)
	}
}

func TestAnswerQuestion_SourceAttribution(t *testing.T) {
	emb := &fakeEmbeddings{vectors: map[string][]float32{
		"Alpha": {1, 0},
		"Beta":  {0.9, 0.1},
		"tell":  {1, 0},
	}}
	gen := &fakeGenerator{answer: "combined answer"}
	a := newTestAgent(t, emb, gen)
	ctx := context.Background()

	if _, err := a.AddDocument(ctx, "Alpha document body text.", "first.txt", "u1"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if _, err := a.AddDocument(ctx, "Beta document body text.", "second.txt", "u1"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	answer := a.AnswerQuestion(ctx, "tell me about the documents", "u1")
	if !strings.Contains(answer, "Sources: first.txt, second.txt") {
		t.Errorf("answer = %q, want attribution line listing both sources", answer)
	}
}

func TestAnswerQuestion_OwnerIsolation(t *testing.T) {
	emb := &fakeEmbeddings{vectors: map[string][]float32{
		"Alice's secret": {1, 0},
		"what is":        {1, 0},
	}}
	gen := &fakeGenerator{answer: "leaked"}
	a := newTestAgent(t, emb, gen)
	ctx := context.Background()

	if _, err := a.AddDocument(ctx, "Alice's secret document text.", "secret", "alice"); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	answer := a.AnswerQuestion(ctx, "what is in the documents?", "bob")
	if answer != msgNoMatch {
		t.Errorf("answer for bob = %q, want no-match (alice's docs filtered out)", answer)
	}
}

func TestAddDocument_RetentionEvictsAndCleansRegistry(t *testing.T) {
	emb := &fakeEmbeddings{vectors: map[string][]float32{}}
	a := newTestAgent(t, emb, &fakeGenerator{})
	ctx := context.Background()

	var firstID string
	for i := 0; i < 6; i++ {
		res, err := a.AddDocument(ctx, fmt.Sprintf("Document number %d with enough text.", i), fmt.Sprintf("doc-%d", i), "u1")
		if err != nil {
			t.Fatalf("AddDocument %d: %v", i, err)
		}
		if i == 0 {
			firstID = res.DocumentID
		}
		if i == 5 {
			if len(res.Evicted) != 1 || res.Evicted[0] != firstID {
				t.Errorf("evicted = %v, want [%s]", res.Evicted, firstID)
			}
		}
	}

	docs := a.store.DocumentsByOwner("u1")
	if len(docs) != 5 {
		t.Errorf("owner has %d docs in store, want 5", len(docs))
	}
	if _, err := a.registry.GetDocument(firstID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("evicted document still in registry: err = %v", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	emb := &fakeEmbeddings{vectors: map[string][]float32{}}
	a := newTestAgent(t, emb, &fakeGenerator{})
	ctx := context.Background()

	res, err := a.AddDocument(ctx, "A document that will be deleted soon.", "doomed", "u1")
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}

	removed, err := a.DeleteDocument(res.DocumentID)
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if removed != res.Chunks {
		t.Errorf("removed %d chunks, want %d", removed, res.Chunks)
	}

	// Deleting again removes nothing and does not error.
	removed, err = a.DeleteDocument(res.DocumentID)
	if err != nil {
		t.Fatalf("second DeleteDocument: %v", err)
	}
	if removed != 0 {
		t.Errorf("second delete removed %d, want 0", removed)
	}
}
