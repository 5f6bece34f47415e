package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// maxProviderBatch is the largest number of inputs sent in one provider
// request. Larger batches are split and dispatched concurrently.
const maxProviderBatch = 100

// EmbeddingProvider abstracts the embedding API. EmbedBatch must preserve
// input order and return nil for items the provider failed to embed instead
// of failing the whole call.
type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder wraps an EmbeddingProvider with batch splitting so callers can
// embed arbitrarily many texts in one call.
type Embedder struct {
	provider  EmbeddingProvider
	batchSize int
}

// NewEmbedder creates an Embedder using the given provider.
func NewEmbedder(p EmbeddingProvider) *Embedder {
	return &Embedder{provider: p, batchSize: maxProviderBatch}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.provider.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vecs) != 1 || vecs[0] == nil {
		return nil, fmt.Errorf("embedding text: %w", ErrNoEmbeddings)
	}
	return vecs[0], nil
}

// EmbedBatch returns embedding vectors for all texts, length and order
// preserved. Oversized inputs are split into provider-sized sub-batches
// dispatched concurrently; each sub-batch is a single provider request.
// Per-item failures surface as nil entries, not an error.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to keep provider rate limits happy.

	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			vecs, err := e.provider.EmbedBatch(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding batch [%d:%d]: got %d vectors for %d texts", start, end, len(vecs), end-start)
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
