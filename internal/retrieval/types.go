package retrieval

import (
	"errors"
	"time"
)

// ErrNoEmbeddings is returned when embedding fails for every chunk in a
// batch, so nothing could be stored.
var ErrNoEmbeddings = errors.New("no embeddings produced")

// Metadata describes one stored chunk. Required fields are explicit; Extra
// carries forward-compatible optional fields.
type Metadata struct {
	DocumentID string            `json:"document_id"`
	Owner      string            `json:"owner"`
	ChunkIndex int               `json:"chunk_index"`
	Title      string            `json:"title"`
	CreatedAt  time.Time         `json:"created_at"`
	Preview    string            `json:"preview"`
	Text       string            `json:"text"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// ScoredChunk is a stored chunk's metadata with its similarity score.
type ScoredChunk struct {
	Metadata
	Score float32
}

// DocumentInfo summarizes one document's presence in the store: its id, the
// creation time of its earliest chunk, and how many chunks it has.
type DocumentInfo struct {
	ID        string
	CreatedAt time.Time
	Chunks    int
}

// Stats reports the size of a store.
type Stats struct {
	Count       int    `json:"count"`
	Dimension   int    `json:"dimension"`
	MemoryBytes uint64 `json:"memory_bytes"`
}
