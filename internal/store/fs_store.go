package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cwbudde/routeviz/internal/history"
)

// FSStore implements Store on the filesystem. Each run lives in
// <baseDir>/runs/<id>/ with run.json, trace.jsonl and optional artifacts.
//
// Writes go through a temp file and rename, so concurrent readers never see
// a partial run.json.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem store, creating baseDir if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) runDir(id string) string {
	return filepath.Join(fs.baseDir, "runs", id)
}

func (fs *FSStore) recordPath(id string) string {
	return filepath.Join(fs.runDir(id), "run.json")
}

// SaveRun writes run.json atomically and rewrites trace.jsonl.
func (fs *FSStore) SaveRun(rec *RunRecord, results []history.GenerationResult) error {
	if rec == nil {
		return fmt.Errorf("run record cannot be nil")
	}
	if err := checkID(rec.ID); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(fs.runDir(rec.ID), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	tw, err := NewTraceWriter(fs.baseDir, rec.ID, false)
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := tw.WriteResult(r); err != nil {
			tw.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}

	if err := writeFileAtomic(fs.recordPath(rec.ID), rec); err != nil {
		return err
	}

	slog.Debug("Run saved", "run_id", rec.ID, "generations", len(results), "path", fs.runDir(rec.ID))
	return nil
}

func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run record: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}
	return nil
}

// LoadRun reads run.json.
func (fs *FSStore) LoadRun(id string) (*RunRecord, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.recordPath(id))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}
	return &rec, nil
}

// LoadHistory reads trace.jsonl.
func (fs *FSStore) LoadHistory(id string) ([]history.GenerationResult, error) {
	if _, err := fs.LoadRun(id); err != nil {
		return nil, err
	}

	tr, err := NewTraceReader(fs.baseDir, id)
	if err != nil {
		return nil, err
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		return nil, err
	}
	results := make([]history.GenerationResult, len(entries))
	for i, e := range entries {
		results[i] = e.Result()
	}
	return results, nil
}

// ListRuns scans the runs directory. Unreadable runs are skipped.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if _, err := os.Stat(fs.recordPath(id)); os.IsNotExist(err) {
			continue
		}

		rec, err := fs.LoadRun(id)
		if err != nil {
			slog.Warn("Failed to load run for listing", "run_id", id, "error", err)
			continue
		}
		infos = append(infos, rec.ToInfo())
	}

	sortNewestFirst(infos)
	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

func sortNewestFirst(infos []RunInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].StartedAt.After(infos[j].StartedAt)
	})
}

// DeleteRun removes the run directory.
func (fs *FSStore) DeleteRun(id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	dir := fs.runDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	slog.Debug("Run deleted", "run_id", id, "path", dir)
	return nil
}

// SaveArtifact writes <runDir>/<name>. The run must exist.
func (fs *FSStore) SaveArtifact(id, name string, data []byte) error {
	if err := checkArtifactName(name); err != nil {
		return err
	}
	if name == "run.json" || name == "trace.jsonl" {
		return fmt.Errorf("artifact name %q is reserved", name)
	}
	if _, err := fs.LoadRun(id); err != nil {
		return err
	}

	path := filepath.Join(fs.runDir(id), name)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads <runDir>/<name>.
func (fs *FSStore) LoadArtifact(id, name string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := checkArtifactName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(fs.runDir(id), name))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: id, Artifact: name}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Close is a no-op for the filesystem store.
func (fs *FSStore) Close() error {
	return nil
}
