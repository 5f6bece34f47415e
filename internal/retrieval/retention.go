package retrieval

import "log/slog"

// defaultMaxDocuments is the per-owner cap on distinct documents.
const defaultMaxDocuments = 5

// RetentionManager enforces a per-owner quota on distinct documents. When an
// owner is at or over the cap, the oldest documents (by creation time) are
// evicted chunk-by-chunk until the cap leaves room for one more. Other
// owners' documents are never touched.
type RetentionManager struct {
	store   *Store
	maxDocs int
	logger  *slog.Logger
}

// NewRetentionManager creates a RetentionManager over the given store.
// maxDocs <= 0 selects the default cap of 5.
func NewRetentionManager(store *Store, maxDocs int) *RetentionManager {
	if maxDocs <= 0 {
		maxDocs = defaultMaxDocuments
	}
	return &RetentionManager{store: store, maxDocs: maxDocs, logger: slog.Default()}
}

// MaxDocuments returns the configured per-owner cap.
func (m *RetentionManager) MaxDocuments() int { return m.maxDocs }

// EnsureRoom evicts owner's oldest documents until a new document can be
// recorded without exceeding the cap. Returns the evicted document ids,
// oldest first. Callers run this immediately before appending the new
// document's chunks.
func (m *RetentionManager) EnsureRoom(owner string) []string {
	docs := m.store.DocumentsByOwner(owner)
	if len(docs) < m.maxDocs {
		return nil
	}

	// Evict down to cap-1 so the incoming document lands exactly at the cap.
	var evicted []string
	for _, doc := range docs[:len(docs)-(m.maxDocs-1)] {
		removed := m.store.DeleteByDocument(doc.ID)
		m.logger.Info("evicted document over retention cap",
			"owner", owner, "document_id", doc.ID, "chunks_removed", removed)
		evicted = append(evicted, doc.ID)
	}
	return evicted
}
