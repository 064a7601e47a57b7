package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/points"
)

// RunRecord is the archived summary of a finished run. The generation trace
// is stored alongside it and loaded separately with LoadHistory.
type RunRecord struct {
	// ID is the run ID assigned when the run started
	ID string `json:"id"`

	// Outcome is how the run ended: completed, stopped or cancelled
	Outcome string `json:"outcome"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Settings are the settings the run was started with
	Settings config.Settings `json:"settings"`

	// Points is the frozen point set the optimizer worked on
	Points points.Snapshot `json:"points"`

	// Best is the lowest-distance result of the run
	Best history.GenerationResult `json:"best"`

	// Generations is the number of results recorded
	Generations int `json:"generations"`
}

// RunInfo is the listing view of a RunRecord, without points or route.
type RunInfo struct {
	ID             string    `json:"id"`
	Outcome        string    `json:"outcome"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	NumPoints      int       `json:"num_points"`
	Generations    int       `json:"generations"`
	BestDistance   float64   `json:"best_distance"`
	BestGeneration int       `json:"best_generation"`
}

// ToInfo converts a full record to its listing view.
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		ID:             r.ID,
		Outcome:        r.Outcome,
		StartedAt:      r.StartedAt,
		EndedAt:        r.EndedAt,
		NumPoints:      r.Points.Len(),
		Generations:    r.Generations,
		BestDistance:   r.Best.Distance,
		BestGeneration: r.Best.Generation,
	}
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Validate checks that the record is complete enough to archive.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.Outcome == "" {
		return &ValidationError{Field: "Outcome", Reason: "cannot be empty"}
	}
	if r.StartedAt.IsZero() {
		return &ValidationError{Field: "StartedAt", Reason: "cannot be zero"}
	}
	if r.EndedAt.Before(r.StartedAt) {
		return &ValidationError{Field: "EndedAt", Reason: "cannot be before StartedAt"}
	}
	if err := r.Points.Validate(); err != nil {
		return &ValidationError{Field: "Points", Reason: err.Error()}
	}
	if r.Generations < 0 {
		return &ValidationError{Field: "Generations", Reason: "cannot be negative"}
	}
	if r.Generations > 0 {
		if err := r.Best.Validate(r.Points.Len()); err != nil {
			return &ValidationError{Field: "Best", Reason: err.Error()}
		}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// checkID rejects IDs that would escape the store directory.
func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return fmt.Errorf("invalid run ID %q", id)
		}
	}
	return nil
}

// checkArtifactName accepts simple file names like "best.png".
func checkArtifactName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	for _, r := range name {
		if !(r == '-' || r == '_' || r == '.' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return fmt.Errorf("invalid artifact name %q", name)
		}
	}
	return nil
}
