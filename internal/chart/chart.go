// Package chart tracks the best distance per generation and maps chart
// selections back to historical routes.
package chart

import (
	"log/slog"
	"sync"

	"github.com/cwbudde/routeviz/internal/history"
)

// HistorySource provides immutable history snapshots.
type HistorySource interface {
	Snapshot() history.Snapshot
}

// RouteDrawer redraws the point layer and a labelled route.
type RouteDrawer interface {
	DrawPoints()
	DrawRoute(route []int) (int, error)
}

// Chart is the generation/distance series of the current run. It is safe
// for concurrent use.
type Chart struct {
	mu          sync.RWMutex
	generations []int
	distances   []float64
	onChange    func()

	history HistorySource
	drawer  RouteDrawer
}

// New creates a chart that resolves selections through h and draws them
// with d. Either may be nil when selection is not needed.
func New(h HistorySource, d RouteDrawer) *Chart {
	return &Chart{history: h, drawer: d}
}

// OnChange registers fn to run after every Reset and accepted Append.
func (c *Chart) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Reset clears the series.
func (c *Chart) Reset() {
	c.mu.Lock()
	c.generations = nil
	c.distances = nil
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Append adds one point. Generations that do not advance the series are
// ignored and false is returned.
func (c *Chart) Append(generation int, distance float64) bool {
	c.mu.Lock()
	if n := len(c.generations); n > 0 && generation <= c.generations[n-1] {
		c.mu.Unlock()
		return false
	}
	c.generations = append(c.generations, generation)
	c.distances = append(c.distances, distance)
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Len returns the number of plotted points.
func (c *Chart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.generations)
}

// Series returns a copy of the plotted data.
func (c *Chart) Series() history.Series {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := history.Series{
		Generations: make([]int, len(c.generations)),
		Distances:   make([]float64, len(c.distances)),
	}
	copy(s.Generations, c.generations)
	copy(s.Distances, c.distances)
	return s
}

// OnPointSelected looks up generation g in a fresh history snapshot and, if
// present, redraws the points with that generation's route. It works while a
// run is still appending.
func (c *Chart) OnPointSelected(g int) (history.GenerationResult, bool) {
	if c.history == nil {
		return history.GenerationResult{}, false
	}

	result, ok := Lookup(c.history.Snapshot(), g)
	if !ok {
		slog.Debug("Selected generation not in history", "generation", g)
		return history.GenerationResult{}, false
	}

	if c.drawer != nil {
		c.drawer.DrawPoints()
		if _, err := c.drawer.DrawRoute(result.Route); err != nil {
			slog.Warn("Failed to draw selected route", "generation", g, "error", err)
		}
	}
	return result, true
}

// Lookup returns the result recorded for generation g in snap.
func Lookup(snap history.Snapshot, g int) (history.GenerationResult, bool) {
	return snap.Lookup(g)
}
