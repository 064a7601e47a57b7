// Package session runs the start/stop state machine around a remote
// optimizer: it locks configuration, polls one generation at a time, keeps
// the history and best-so-far, and notifies listeners.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/optimizer"
	"github.com/cwbudde/routeviz/internal/points"
)

// State is the controller state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

var (
	// ErrTooFewPoints is returned by Start when the set has fewer than 2 points.
	ErrTooFewPoints = points.ErrTooFewPoints
	// ErrNotIdle is returned by Start while a run is active.
	ErrNotIdle = errors.New("a run is already active")
	// ErrNotRunning is returned by Stop when no run is active.
	ErrNotRunning = errors.New("no run is active")
	// ErrConfigure wraps optimizer failures while a run is being set up.
	ErrConfigure = errors.New("failed to configure optimizer")
	// ErrRunning is returned by SetSettings while a run is active.
	ErrRunning = errors.New("settings are locked while a run is active")
)

// run is the per-run state shared between the controller and its poll loop.
type run struct {
	id        string
	settings  config.Settings
	points    points.Snapshot
	startedAt time.Time
	stop      chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

func (r *run) signalStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Controller owns the run state. It is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	state    State
	settings config.Settings
	current  *run

	points  *points.PointSet
	history *history.Store
	opt     optimizer.Optimizer
	baseCtx context.Context

	lmu       sync.RWMutex
	listeners Listeners
}

// Option configures a Controller.
type Option func(*Controller)

// WithListener registers a listener at construction time.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		c.listeners = append(c.listeners, l)
	}
}

// WithContext sets the parent context of poll loops. Cancelling it ends the
// active run with OutcomeCancelled.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		c.baseCtx = ctx
	}
}

// WithHistory uses h instead of a fresh history store.
func WithHistory(h *history.Store) Option {
	return func(c *Controller) {
		c.history = h
	}
}

// New creates an idle controller.
func New(ps *points.PointSet, opt optimizer.Optimizer, settings config.Settings, opts ...Option) *Controller {
	c := &Controller{
		state:    StateIdle,
		settings: settings,
		points:   ps,
		opt:      opt,
		baseCtx:  context.Background(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.history == nil {
		c.history = history.NewStore()
	}
	return c
}

// AddListener registers l for subsequent events.
func (c *Controller) AddListener(l Listener) {
	c.lmu.Lock()
	c.listeners = append(c.listeners, l)
	c.lmu.Unlock()
}

func (c *Controller) emit() Listeners {
	c.lmu.RLock()
	defer c.lmu.RUnlock()
	out := make(Listeners, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// Start locks the configuration, uploads settings and points to the
// optimizer and launches the poll loop. On an optimizer failure the
// controller returns to idle and the error wraps ErrConfigure.
func (c *Controller) Start(ctx context.Context) error {
	if c.points.Len() < 2 {
		return ErrTooFewPoints
	}

	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotIdle, state)
	}
	settings := c.settings
	if err := settings.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}

	c.points.Freeze()
	snap := c.points.Snapshot()
	c.history.Clear()

	runCtx, cancel := context.WithCancel(c.baseCtx)
	r := &run{
		id:        uuid.New().String(),
		settings:  settings,
		points:    snap,
		startedAt: time.Now(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	c.current = r
	c.state = StateRunning
	c.mu.Unlock()

	if !settings.MutationRateInRange() {
		lo, hi := config.MutationRateBounds(settings.PopulationSize)
		slog.Warn("Mutation rate outside slider range",
			"mutation_rate", settings.MutationRate, "min", lo, "max", hi)
	}

	slog.Info("Starting run",
		"run_id", r.id,
		"points", snap.Len(),
		"start", snap.Start,
		"final", snap.Final,
		"max_generations", settings.MaxGenerations,
	)
	c.emit().StateChanged(StateIdle, StateRunning)

	if err := c.configure(ctx, r); err != nil {
		c.abort(r, err)
		return fmt.Errorf("%w: %w", ErrConfigure, err)
	}

	c.mu.Lock()
	if c.current != r || c.state != StateRunning {
		// Stopped while the optimizer was being configured.
		c.mu.Unlock()
		cancel()
		close(r.done)
		return nil
	}
	c.mu.Unlock()

	go c.loop(runCtx, r)
	return nil
}

func (c *Controller) configure(ctx context.Context, r *run) error {
	if r.settings.PushSettings {
		if err := c.opt.Configure(ctx, optimizer.NewConfigureRequest(r.settings, r.points)); err != nil {
			return err
		}
	}
	return c.opt.SetCities(ctx, optimizer.NewCitiesRequest(r.points))
}

// abort rolls a run back to idle after a setup failure.
func (c *Controller) abort(r *run, err error) {
	c.mu.Lock()
	from := c.state
	owned := c.current == r && c.state != StateIdle
	if owned {
		c.state = StateIdle
		c.points.Thaw()
	}
	c.mu.Unlock()

	r.cancel()
	close(r.done)

	slog.Error("Failed to start run", "run_id", r.id, "error", err)
	ls := c.emit()
	if owned {
		ls.StateChanged(from, StateIdle)
	}
	ls.Failed(fmt.Errorf("%w: %w", ErrConfigure, err))
}

// Stop ends the active run. The stop request to the optimizer is best
// effort. An update already in flight is awaited and appended before the
// run is reported as stopped, unless ctx expires first.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return ErrNotRunning
	}
	r := c.current
	c.state = StateStopping
	c.mu.Unlock()

	c.emit().StateChanged(StateRunning, StateStopping)
	r.signalStop()

	if err := c.opt.Stop(ctx); err != nil {
		slog.Warn("Optimizer stop request failed", "run_id", r.id, "error", err)
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		slog.Warn("Gave up waiting for in-flight update", "run_id", r.id, "error", ctx.Err())
	}

	c.finish(r, OutcomeStopped)
	return nil
}

// Toggle starts an idle controller and stops a running one.
func (c *Controller) Toggle(ctx context.Context) error {
	switch c.State() {
	case StateIdle:
		return c.Start(ctx)
	case StateRunning:
		return c.Stop(ctx)
	default:
		return ErrNotIdle
	}
}

// Close cancels the active run, if any, and waits for its loop to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

// finish moves r to idle and reports the outcome. It is a no-op when r is
// not the active run anymore.
func (c *Controller) finish(r *run, outcome Outcome) {
	c.mu.Lock()
	if c.current != r || c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = StateIdle
	c.points.Thaw()
	snap := c.history.Snapshot()
	c.mu.Unlock()

	r.cancel()

	summary := Summary{
		RunID:       r.id,
		Outcome:     outcome,
		StartedAt:   r.startedAt,
		EndedAt:     time.Now(),
		Settings:    r.settings,
		Points:      r.points,
		Generations: snap.Len(),
		History:     snap,
	}
	best, hasBest := snap.Best()
	summary.Best = best

	slog.Info("Run finished",
		"run_id", r.id,
		"outcome", outcome,
		"generations", summary.Generations,
		"best_distance", best.Distance,
		"best_generation", best.Generation,
		"elapsed", summary.EndedAt.Sub(summary.StartedAt),
	)

	ls := c.emit()
	ls.StateChanged(from, StateIdle)
	if hasBest {
		ls.Completed(summary)
	}
}

// loop polls the optimizer until the run leaves the running state.
func (c *Controller) loop(ctx context.Context, r *run) {
	defer close(r.done)

	for {
		if !c.isRunning(r) {
			return
		}

		res, err := c.opt.Update(ctx, optimizer.UpdateRequest{
			Running:         true,
			MutationRate:    r.settings.MutationRate,
			SelectionMethod: r.settings.SelectionMethod,
		})
		switch {
		case err != nil && ctx.Err() != nil:
			c.finish(r, OutcomeCancelled)
			return
		case err != nil:
			slog.Warn("Optimizer update failed", "run_id", r.id, "error", err)
		default:
			if c.record(r, res) && res.Generation >= r.settings.MaxGenerations && c.isRunning(r) {
				c.finish(r, OutcomeCompleted)
				return
			}
		}

		timer := time.NewTimer(r.settings.EvolutionSpeed())
		select {
		case <-timer.C:
		case <-r.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			c.finish(r, OutcomeCancelled)
			return
		}
	}
}

// record validates res and appends it to the history if r is still the
// current, unfinished run. It reports whether res was appended.
func (c *Controller) record(r *run, res history.GenerationResult) bool {
	if err := res.Validate(r.points.Len()); err != nil {
		slog.Warn("Discarding invalid optimizer result", "run_id", r.id, "error", err)
		return false
	}

	c.mu.Lock()
	if c.current != r || c.state == StateIdle {
		c.mu.Unlock()
		slog.Debug("Dropping result of finished run", "run_id", r.id, "generation", res.Generation)
		return false
	}
	if err := c.history.Append(res); err != nil {
		c.mu.Unlock()
		slog.Warn("Discarding optimizer result", "run_id", r.id, "error", err)
		return false
	}
	best, _ := c.history.Best()
	c.mu.Unlock()

	slog.Debug("Generation appended",
		"run_id", r.id,
		"generation", res.Generation,
		"distance", res.Distance,
		"best_distance", best.Distance,
	)
	c.emit().GenerationAppended(res, best)
	return true
}

func (c *Controller) isRunning(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == r && c.state == StateRunning
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RunID returns the ID of the active or most recent run.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// Points returns the point set the controller freezes during runs.
func (c *Controller) Points() *points.PointSet {
	return c.points
}

// History returns the history of the active or most recent run.
func (c *Controller) History() *history.Store {
	return c.history
}

// Best returns the best result of the active or most recent run.
func (c *Controller) Best() (history.GenerationResult, bool) {
	return c.history.Best()
}

// Settings returns the current settings.
func (c *Controller) Settings() config.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetSettings replaces the settings. It fails with ErrRunning during a run.
func (c *Controller) SetSettings(s config.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrRunning
	}
	c.settings = s
	return nil
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel closed when the poll loop of the active or most
// recent run has exited.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return closedChan
	}
	return c.current.done
}

// Wait blocks until the controller is idle and the poll loop has exited, or
// ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		select {
		case <-c.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if c.State() == StateIdle {
			return nil
		}
		// Stop is still finishing; its state change follows shortly.
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
