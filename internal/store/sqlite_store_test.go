package store

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStore_MigrateVersion(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	version, dirty, err := s.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("Version = %d (dirty=%v), want 2", version, dirty)
	}

	// Re-running is a no-op
	if err := s.MigrateUp(); err != nil {
		t.Errorf("Second MigrateUp failed: %v", err)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	rec := createTestRecord("run-persist", time.Now())
	if err := s.SaveRun(rec, testResults()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close()

	results, err := s.LoadHistory("run-persist")
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Expected 3 results after reopen, got %d", len(results))
	}
}
