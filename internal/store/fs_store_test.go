package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

func TestFSStore_Layout(t *testing.T) {
	store, tempDir := setupTestStore(t)

	rec := createTestRecord("run-layout", time.Now())
	if err := store.SaveRun(rec, testResults()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := store.SaveArtifact("run-layout", "best.png", []byte("png")); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}

	for _, name := range []string{"run.json", "trace.jsonl", "best.png"} {
		path := filepath.Join(tempDir, "runs", "run-layout", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to exist: %v", path, err)
		}
	}

	// No temp files are left behind
	matches, _ := filepath.Glob(filepath.Join(tempDir, "runs", "run-layout", "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("Temp files left behind: %v", matches)
	}
}

func TestFSStore_ReservedArtifactNames(t *testing.T) {
	store, _ := setupTestStore(t)

	rec := createTestRecord("run-r", time.Now())
	if err := store.SaveRun(rec, testResults()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	for _, name := range []string{"run.json", "trace.jsonl"} {
		if err := store.SaveArtifact("run-r", name, []byte("x")); err == nil {
			t.Errorf("Expected error for reserved name %s", name)
		}
	}
}

func TestFSStore_ListRuns_SkipsInvalidDirectories(t *testing.T) {
	store, tempDir := setupTestStore(t)

	rec := createTestRecord("run-valid", time.Now())
	if err := store.SaveRun(rec, testResults()); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	// Directory without run.json
	if err := os.MkdirAll(filepath.Join(tempDir, "runs", "no-record"), 0755); err != nil {
		t.Fatal(err)
	}
	// Directory with corrupt run.json
	corrupt := filepath.Join(tempDir, "runs", "corrupt")
	if err := os.MkdirAll(corrupt, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(corrupt, "run.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	// Stray file
	if err := os.WriteFile(filepath.Join(tempDir, "runs", "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "run-valid" {
		t.Errorf("Expected only run-valid, got %+v", infos)
	}
}

func TestFSStore_ListRuns_NoRunsDirectory(t *testing.T) {
	store, _ := setupTestStore(t)

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if infos == nil || len(infos) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", infos)
	}
}
