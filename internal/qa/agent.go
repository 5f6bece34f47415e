// Package qa orchestrates the retrieval-augmented question answering
// pipeline: document ingestion (validate, chunk, embed, persist) and
// grounded answering over the vector store.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aigist/aigist/internal/chunker"
	"github.com/aigist/aigist/internal/retrieval"
	"github.com/aigist/aigist/internal/storage"
)

// ErrValidation is returned for rejected input (too-short text, missing
// fields).
var ErrValidation = errors.New("validation failed")

const (
	minDocumentLength = 10
	previewLength     = 80

	answerTopK          = 3
	answerMinSimilarity = 0.1
)

const systemPrompt = "You are a helpful assistant that answers questions based on provided context."

// Fixed responses for the no-data paths. AnswerQuestion returns these
// without calling the generation provider.
const (
	msgNoDocuments = "I don't have any documents yet. Add a document first, then ask your question again."
	msgNoMatch     = "I couldn't find relevant information in your documents to answer that question."
)

// Generator abstracts the text generation provider.
type Generator interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Agent composes the chunker, vector store, retention manager, document
// registry, and generation provider into the ingestion and answering
// operations.
type Agent struct {
	chunker   *chunker.Chunker
	store     *retrieval.Store
	retention *retrieval.RetentionManager
	registry  *storage.Store
	generator Generator
	logger    *slog.Logger

	topK          int
	minSimilarity float32
}

// NewAgent wires an Agent from its collaborators. The registry may be nil;
// ingestion then skips the document record and retrieval still works from
// vector store metadata alone.
func NewAgent(c *chunker.Chunker, store *retrieval.Store, retention *retrieval.RetentionManager, registry *storage.Store, generator Generator) *Agent {
	return &Agent{
		chunker:       c,
		store:         store,
		retention:     retention,
		registry:      registry,
		generator:     generator,
		logger:        slog.Default(),
		topK:          answerTopK,
		minSimilarity: answerMinSimilarity,
	}
}

// SetAnswerTuning overrides the retrieval knobs used by AnswerQuestion.
// Non-positive values keep the defaults.
func (a *Agent) SetAnswerTuning(topK int, minSimilarity float32) {
	if topK > 0 {
		a.topK = topK
	}
	if minSimilarity > 0 {
		a.minSimilarity = minSimilarity
	}
}

// AddResult reports the outcome of an ingestion.
type AddResult struct {
	DocumentID string   `json:"document_id"`
	Chunks     int      `json:"chunks"`
	Failed     int      `json:"failed_chunks,omitempty"`
	Evicted    []string `json:"evicted,omitempty"`
}

// AddDocument validates, chunks, embeds, and stores a document for owner,
// then persists the vector store. Returns the stored chunk count. The store
// is not mutated when no chunk could be embedded.
func (a *Agent) AddDocument(ctx context.Context, text, title, owner string) (AddResult, error) {
	if len(strings.TrimSpace(text)) < minDocumentLength {
		return AddResult{}, fmt.Errorf("%w: document text must be at least %d characters", ErrValidation, minDocumentLength)
	}
	if title == "" {
		title = "Untitled"
	}

	normalized := chunker.NormalizeWhitespace(text)
	chunks := a.chunker.Chunk(normalized)
	if len(chunks) == 0 {
		return AddResult{}, fmt.Errorf("%w: document produced no usable chunks", ErrValidation)
	}

	evicted := a.retention.EnsureRoom(owner)
	for _, id := range evicted {
		if a.registry == nil {
			continue
		}
		if err := a.registry.DeleteDocument(id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			a.logger.Warn("removing evicted document from registry failed", "document_id", id, "error", err)
		}
	}

	docID := uuid.New().String()
	now := time.Now().UTC()
	metas := make([]retrieval.Metadata, len(chunks))
	for i, chunk := range chunks {
		metas[i] = retrieval.Metadata{
			DocumentID: docID,
			Owner:      owner,
			ChunkIndex: i,
			Title:      title,
			CreatedAt:  now,
			Preview:    preview(chunk),
		}
	}

	stored, failed, err := a.store.AddBatch(ctx, chunks, metas)
	if err != nil {
		return AddResult{Evicted: evicted}, fmt.Errorf("embedding document: %w", err)
	}
	if failed > 0 {
		a.logger.Warn("some chunks failed to embed and were skipped",
			"document_id", docID, "stored", stored, "failed", failed)
	}

	if a.registry != nil {
		if err := a.registry.SaveDocument(storage.Document{
			ID:         docID,
			Owner:      owner,
			Title:      title,
			Content:    normalized,
			ChunkCount: stored,
			CreatedAt:  now,
		}); err != nil {
			a.logger.Warn("recording document in registry failed", "document_id", docID, "error", err)
		}
	}

	result := AddResult{DocumentID: docID, Chunks: stored, Failed: failed, Evicted: evicted}
	if err := a.store.Save(); err != nil {
		// The in-memory store stays authoritative; the document is
		// searchable even though this save failed.
		return result, fmt.Errorf("persisting vector store: %w", err)
	}

	a.logger.Info("document added", "document_id", docID, "owner", owner, "chunks", stored)
	return result, nil
}

// DeleteDocument removes a document's chunks from the vector store and its
// registry record, then persists the store. Returns the number of chunk
// records removed.
func (a *Agent) DeleteDocument(docID string) (int, error) {
	removed := a.store.DeleteByDocument(docID)
	if a.registry != nil {
		if err := a.registry.DeleteDocument(docID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, err
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := a.store.Save(); err != nil {
		return removed, fmt.Errorf("persisting vector store: %w", err)
	}
	return removed, nil
}

// AnswerQuestion answers a question grounded in owner's stored documents.
// It never returns an error: every failure path resolves to a descriptive
// message so callers have one uniform shape.
//
// The fallback policy is fixed and ordered: search at the primary threshold,
// retry once with the threshold relaxed to zero, then give the explicit
// no-match response. No unrelated content is ever substituted.
func (a *Agent) AnswerQuestion(ctx context.Context, question, owner string) string {
	if strings.TrimSpace(question) == "" {
		return "Please ask a question."
	}
	if a.store.Count() == 0 {
		return msgNoDocuments
	}

	matches, err := a.store.Search(ctx, question, a.topK, a.minSimilarity, owner)
	if err != nil {
		return fmt.Sprintf("Sorry, I ran into an error while searching your documents: %v", err)
	}
	if len(matches) == 0 {
		matches, err = a.store.Search(ctx, question, a.topK, 0, owner)
		if err != nil {
			return fmt.Sprintf("Sorry, I ran into an error while searching your documents: %v", err)
		}
	}
	if len(matches) == 0 {
		return msgNoMatch
	}

	answer, err := a.generator.Chat(ctx, systemPrompt, buildPrompt(matches, question))
	if err != nil {
		return fmt.Sprintf("Sorry, I ran into an error while generating the answer: %v", err)
	}

	if titles := distinctTitles(matches); len(titles) > 1 {
		answer += "\n\nSources: " + strings.Join(titles, ", ")
	}
	return answer
}

// buildPrompt assembles the user prompt: each matched chunk labeled with its
// source title, followed by the question.
func buildPrompt(matches []retrieval.ScoredChunk, question string) string {
	var b strings.Builder
	b.WriteString("Based on the following context, please answer the question. " +
		"If the answer is not in the context, say so clearly.\n\nContext:\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "[Source: %s]\n%s\n\n", m.Title, m.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", question)
	return b.String()
}

func distinctTitles(matches []retrieval.ScoredChunk) []string {
	seen := make(map[string]bool)
	var titles []string
	for _, m := range matches {
		if m.Title == "" || seen[m.Title] {
			continue
		}
		seen[m.Title] = true
		titles = append(titles, m.Title)
	}
	sort.Strings(titles)
	return titles
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
