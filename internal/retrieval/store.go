// Package retrieval implements the vector storage and semantic search core:
// an embedding-backed store of parallel (vector, metadata) records with
// cosine-similarity ranking, per-owner filtering, and durable persistence to
// a single file.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store holds embedding vectors and their metadata as parallel slices:
// vectors[i] and metadata[i] always describe the same chunk. The embedding
// dimension is fixed by the first stored vector and only resets on Clear.
//
// A Store is safe for concurrent use. Writers (Add, AddBatch,
// DeleteByDocument, Clear, Save, Load) are serialized; a given persistence
// path must have at most one Store writing to it, since Save rewrites the
// whole file.
type Store struct {
	mu       sync.RWMutex
	path     string
	embedder *Embedder

	dimension int
	vectors   [][]float32
	metadata  []Metadata
}

// NewStore creates an empty Store that persists to path.
func NewStore(path string, embedder *Embedder) *Store {
	return &Store{path: path, embedder: embedder}
}

// Open creates a Store and loads any previously persisted state from path.
// A missing file yields an empty store without error.
func Open(path string, embedder *Embedder) (*Store, error) {
	s := NewStore(path, embedder)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the persistence path.
func (s *Store) Path() string { return s.path }

// Add embeds text and appends one record. The store dimension is set by the
// first vector and enforced for every subsequent one.
func (s *Store) Add(ctx context.Context, text string, meta Metadata) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	meta.Text = text

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(vec, meta)
}

// AddBatch embeds all texts in one batch call and appends a record per text
// with the matching metadata, in order. Chunks whose embedding failed are
// skipped and counted in failed; if every chunk fails, nothing is appended
// and ErrNoEmbeddings is returned.
func (s *Store) AddBatch(ctx context.Context, texts []string, metas []Metadata) (stored, failed int, err error) {
	if len(texts) != len(metas) {
		return 0, 0, fmt.Errorf("got %d texts and %d metadata records", len(texts), len(metas))
	}
	if len(texts) == 0 {
		return 0, 0, nil
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, vec := range vecs {
		if vec == nil {
			failed++
			continue
		}
		meta := metas[i]
		meta.Text = texts[i]
		if err := s.appendLocked(vec, meta); err != nil {
			return stored, failed, err
		}
		stored++
	}

	if stored == 0 {
		return 0, failed, fmt.Errorf("all %d chunks failed: %w", failed, ErrNoEmbeddings)
	}
	return stored, failed, nil
}

func (s *Store) appendLocked(vec []float32, meta Metadata) error {
	if s.dimension == 0 {
		s.dimension = len(vec)
	} else if len(vec) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: store has %d, got %d", s.dimension, len(vec))
	}
	s.vectors = append(s.vectors, vec)
	s.metadata = append(s.metadata, meta)
	return nil
}

// Search embeds the query and returns up to topK records with cosine
// similarity of at least minSimilarity, ordered by descending score. Ties
// keep insertion order, earlier record first. A non-empty owner restricts
// results to that owner's records.
func (s *Store) Search(ctx context.Context, query string, topK int, minSimilarity float32, owner string) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, nil
	}

	// Embed outside the lock; the query embedding does not depend on store
	// state and must not block concurrent readers on a network call.
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(queryVec) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: store has %d, got %d", s.dimension, len(queryVec))
	}

	type scored struct {
		index int
		score float32
	}
	var candidates []scored
	for i, vec := range s.vectors {
		if owner != "" && s.metadata[i].Owner != owner {
			continue
		}
		score := cosineSimilarity(queryVec, vec)
		if score < minSimilarity {
			continue
		}
		candidates = append(candidates, scored{index: i, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]ScoredChunk, len(candidates))
	for i, c := range candidates {
		results[i] = ScoredChunk{Metadata: s.metadata[c.index], Score: c.score}
	}
	return results, nil
}

// DeleteByDocument removes every record whose document id matches, compacting
// the parallel slices. Unrelated records keep their relative order. Returns
// the number of records removed; deleting an unknown id removes zero.
func (s *Store) DeleteByDocument(docID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	keep := 0
	for i := range s.metadata {
		if s.metadata[i].DocumentID == docID {
			removed++
			continue
		}
		s.vectors[keep] = s.vectors[i]
		s.metadata[keep] = s.metadata[i]
		keep++
	}
	s.vectors = s.vectors[:keep]
	s.metadata = s.metadata[:keep]
	return removed
}

// Clear empties the store and resets the dimension.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.metadata = nil
	s.dimension = 0
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// DocumentsByOwner returns the distinct documents stored for owner, ordered
// by creation time ascending (insertion order breaks ties). Each entry
// carries the earliest chunk timestamp and the chunk count.
func (s *Store) DocumentsByOwner(owner string) []DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[string]int)
	var docs []DocumentInfo
	for _, m := range s.metadata {
		if m.Owner != owner {
			continue
		}
		if i, ok := index[m.DocumentID]; ok {
			docs[i].Chunks++
			if m.CreatedAt.Before(docs[i].CreatedAt) {
				docs[i].CreatedAt = m.CreatedAt
			}
			continue
		}
		index[m.DocumentID] = len(docs)
		docs = append(docs, DocumentInfo{ID: m.DocumentID, CreatedAt: m.CreatedAt, Chunks: 1})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs
}

// Stats reports the record count, dimension, and approximate memory used by
// the stored vectors and chunk texts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mem uint64
	for i, vec := range s.vectors {
		mem += uint64(len(vec)) * 4
		mem += uint64(len(s.metadata[i].Text) + len(s.metadata[i].Preview))
	}
	return Stats{
		Count:       len(s.vectors),
		Dimension:   s.dimension,
		MemoryBytes: mem,
	}
}

// storeFile is the on-disk representation: one serialized unit holding the
// dimension and both parallel slices.
type storeFile struct {
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
	Metadata  []Metadata  `json:"metadata"`
}

// Save writes the full store state to its path. The write goes through a
// temporary file and rename so a crash never leaves a truncated store. A
// failed save leaves the in-memory state untouched and authoritative.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(storeFile{
		Dimension: s.dimension,
		Vectors:   s.vectors,
		Metadata:  s.metadata,
	})
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}

// Load replaces the in-memory state with the persisted state at the store's
// path. A missing file initializes an empty store without error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.vectors = nil
		s.metadata = nil
		s.dimension = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading store file: %w", err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding store file %s: %w", s.path, err)
	}
	if len(f.Vectors) != len(f.Metadata) {
		return fmt.Errorf("corrupt store file %s: %d vectors, %d metadata records", s.path, len(f.Vectors), len(f.Metadata))
	}

	s.dimension = f.Dimension
	s.vectors = f.Vectors
	s.metadata = f.Metadata
	return nil
}

// cosineSimilarity returns the normalized dot product of a and b, in
// [-1, 1]. A zero-norm vector scores 0 against anything; mismatched lengths
// also score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, aNormSq, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aNormSq += float64(a[i]) * float64(a[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	if aNormSq == 0 || bNormSq == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(aNormSq) * math.Sqrt(bNormSq)))
}
