package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDoc(id, owner string, created time.Time) Document {
	return Document{
		ID:         id,
		Owner:      owner,
		Title:      "title " + id,
		Content:    "content of " + id,
		ChunkCount: 3,
		CreatedAt:  created,
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	s := openTestStore(t)
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveDocument(testDoc("d1", "u1", created)); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument("d1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Owner != "u1" || got.Title != "title d1" || got.ChunkCount != 3 {
		t.Errorf("got %+v, want saved fields back", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetDocument("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDocuments_OwnerScopedOldestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	s.SaveDocument(testDoc("d2", "u1", base.Add(time.Hour)))
	s.SaveDocument(testDoc("d1", "u1", base))
	s.SaveDocument(testDoc("other", "u2", base))

	docs, err := s.ListDocuments("u1")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].ID != "d1" || docs[1].ID != "d2" {
		t.Errorf("order = [%s, %s], want oldest first [d1, d2]", docs[0].ID, docs[1].ID)
	}
}

func TestDeleteDocument(t *testing.T) {
	s := openTestStore(t)
	s.SaveDocument(testDoc("d1", "u1", time.Now().UTC()))

	if err := s.DeleteDocument("d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if err := s.DeleteDocument("d1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestCountDocuments(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	s.SaveDocument(testDoc("d1", "u1", now))
	s.SaveDocument(testDoc("d2", "u1", now))
	s.SaveDocument(testDoc("d3", "u2", now))

	n, err := s.CountDocuments("u1")
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 2 {
		t.Errorf("CountDocuments(u1) = %d, want 2", n)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	s := openTestStore(t)
	// Re-running migrations on an already-migrated database is a no-op.
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
