package session

import (
	"time"

	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/points"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeCancelled Outcome = "cancelled"
)

// Summary describes a finished run.
type Summary struct {
	RunID       string                   `json:"run_id"`
	Outcome     Outcome                  `json:"outcome"`
	StartedAt   time.Time                `json:"started_at"`
	EndedAt     time.Time                `json:"ended_at"`
	Settings    config.Settings          `json:"settings"`
	Points      points.Snapshot          `json:"points"`
	Generations int                      `json:"generations"`
	Best        history.GenerationResult `json:"best"`

	// History is the full generation log of the run.
	History history.Snapshot `json:"-"`
}

// Listener receives run events. Calls are made without the controller lock
// held, from the goroutine that caused the event.
type Listener interface {
	StateChanged(from, to State)
	GenerationAppended(result, best history.GenerationResult)
	Completed(summary Summary)
	Failed(err error)
}

// NopListener implements Listener with no-ops. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) StateChanged(from, to State)                              {}
func (NopListener) GenerationAppended(result, best history.GenerationResult) {}
func (NopListener) Completed(summary Summary)                                {}
func (NopListener) Failed(err error)                                         {}

// Listeners fans events out in order.
type Listeners []Listener

func (ls Listeners) StateChanged(from, to State) {
	for _, l := range ls {
		l.StateChanged(from, to)
	}
}

func (ls Listeners) GenerationAppended(result, best history.GenerationResult) {
	for _, l := range ls {
		l.GenerationAppended(result.Clone(), best.Clone())
	}
}

func (ls Listeners) Completed(summary Summary) {
	for _, l := range ls {
		l.Completed(summary)
	}
}

func (ls Listeners) Failed(err error) {
	for _, l := range ls {
		l.Failed(err)
	}
}

// CompletionFunc is called with the best result of a finished run.
type CompletionFunc func(finalGeneration int, finalDistance float64, finalRoute []int)

func (f CompletionFunc) StateChanged(from, to State)                              {}
func (f CompletionFunc) GenerationAppended(result, best history.GenerationResult) {}
func (f CompletionFunc) Failed(err error)                                         {}

func (f CompletionFunc) Completed(summary Summary) {
	best := summary.Best.Clone()
	f(best.Generation, best.Distance, best.Route)
}
