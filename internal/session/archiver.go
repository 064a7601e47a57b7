package session

import (
	"log/slog"

	"github.com/cwbudde/routeviz/internal/store"
)

// PreviewFunc renders the image archived next to a run as best.png.
type PreviewFunc func(summary Summary) ([]byte, error)

// Archiver persists every finished run into a store.
type Archiver struct {
	NopListener

	store   store.Store
	preview PreviewFunc
}

// NewArchiver creates an archiver. preview may be nil.
func NewArchiver(s store.Store, preview PreviewFunc) *Archiver {
	return &Archiver{store: s, preview: preview}
}

// Completed saves the run record, its trace and the optional preview.
// Failures are logged; they never affect the run.
func (a *Archiver) Completed(summary Summary) {
	if err := a.Save(summary); err != nil {
		slog.Error("Failed to archive run", "run_id", summary.RunID, "error", err)
	}
}

// Save writes summary to the store.
func (a *Archiver) Save(summary Summary) error {
	rec := &store.RunRecord{
		ID:          summary.RunID,
		Outcome:     string(summary.Outcome),
		StartedAt:   summary.StartedAt,
		EndedAt:     summary.EndedAt,
		Settings:    summary.Settings,
		Points:      summary.Points,
		Best:        summary.Best,
		Generations: summary.Generations,
	}
	if err := a.store.SaveRun(rec, summary.History.Results()); err != nil {
		return err
	}
	slog.Info("Run archived", "run_id", rec.ID, "outcome", rec.Outcome, "generations", rec.Generations)

	if a.preview == nil {
		return nil
	}
	data, err := a.preview(summary)
	if err != nil {
		slog.Warn("Failed to render run preview", "run_id", rec.ID, "error", err)
		return nil
	}
	if err := a.store.SaveArtifact(rec.ID, "best.png", data); err != nil {
		slog.Warn("Failed to save run preview", "run_id", rec.ID, "error", err)
	}
	return nil
}
