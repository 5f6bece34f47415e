package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is an ingested document as recorded in the registry. A document
// is immutable once created; it disappears only through explicit deletion or
// retention eviction.
type Document struct {
	ID         string
	Owner      string
	Title      string
	Content    string
	ChunkCount int
	CreatedAt  time.Time
}
