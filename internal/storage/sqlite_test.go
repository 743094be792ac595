package storage

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same directory and verifies
// the schema_version count stays the same.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) || len(v1) == 0 {
		t.Errorf("migration count changed or empty: %d -> %d", len(v1), len(v2))
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("007_add_things.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 7 {
		t.Errorf("version = %d, want 7", v)
	}

	if _, err := parseMigrationVersion("nope.sql"); err == nil {
		t.Error("expected error for filename without version prefix")
	}
}

func TestReplaceAndListDocuments(t *testing.T) {
	s := openTestStore(t)

	docs := []Document{
		{Position: 0, Name: "苹果", Category: "水果", Content: "苹果是一种水果", RecordJSON: `{"name":"苹果"}`},
		{Position: 1, Name: "香蕉", Category: "水果", Content: "香蕉是一种水果", RecordJSON: `{"name":"香蕉"}`},
	}
	if err := s.ReplaceDocuments(docs); err != nil {
		t.Fatalf("ReplaceDocuments: %v", err)
	}

	got, err := s.ListDocuments()
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d documents, want 2", len(got))
	}
	if got[0].Name != "苹果" || got[1].Name != "香蕉" {
		t.Errorf("unexpected order: %q, %q", got[0].Name, got[1].Name)
	}
	if got[1].RecordJSON != `{"name":"香蕉"}` {
		t.Errorf("RecordJSON = %q", got[1].RecordJSON)
	}

	// A second replace drops the previous set entirely.
	if err := s.ReplaceDocuments(docs[:1]); err != nil {
		t.Fatalf("ReplaceDocuments: %v", err)
	}
	n, err := s.CountDocuments()
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestReplaceDocumentsRejectsSparsePositions(t *testing.T) {
	s := openTestStore(t)

	err := s.ReplaceDocuments([]Document{{Position: 1, Name: "x", Content: "x", RecordJSON: "{}"}})
	if err == nil {
		t.Fatal("expected error for non-dense positions")
	}
}

func TestMeta(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetMeta("dim"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMeta on empty store: got %v, want ErrNotFound", err)
	}
	if err := s.SetMeta("dim", "384"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := s.SetMeta("dim", "768"); err != nil {
		t.Fatalf("SetMeta overwrite: %v", err)
	}
	v, err := s.GetMeta("dim")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if v != "768" {
		t.Errorf("dim = %q, want 768", v)
	}
}
