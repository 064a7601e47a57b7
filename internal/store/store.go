package store

import (
	"fmt"

	"github.com/cwbudde/routeviz/internal/history"
)

// Store defines the interface for run archive persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a run doesn't exist (Load*/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun stores a finished run and its generation trace. An existing run
	// with the same ID is overwritten.
	SaveRun(rec *RunRecord, results []history.GenerationResult) error

	// LoadRun retrieves the record of a run.
	LoadRun(id string) (*RunRecord, error)

	// LoadHistory retrieves the generation trace of a run in generation order.
	LoadHistory(id string) ([]history.GenerationResult, error)

	// ListRuns returns metadata for all runs, newest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes a run and all of its artifacts.
	DeleteRun(id string) error

	// SaveArtifact attaches a named blob, such as best.png, to a run.
	SaveArtifact(id, name string, data []byte) error

	// LoadArtifact retrieves a blob saved with SaveArtifact.
	LoadArtifact(id, name string) ([]byte, error)

	Close() error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run or artifact.
type NotFoundError struct {
	RunID    string
	Artifact string
}

func (e *NotFoundError) Error() string {
	switch {
	case e.RunID != "" && e.Artifact != "":
		return "artifact not found: " + e.RunID + "/" + e.Artifact
	case e.RunID != "":
		return "run not found: " + e.RunID
	default:
		return "run not found"
	}
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// Driver names accepted by Open.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
)

// Open returns the store backend named by driver. For DriverFS path is a
// directory, for DriverSQLite a database file.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverFS, "":
		s, err := NewFSStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q (want %s or %s)", driver, DriverFS, DriverSQLite)
	}
}
