// Package points holds the locations a route visits, their display labels
// and the start/final anchors.
package points

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
)

const (
	// GenerationMargin keeps random points away from the borders.
	GenerationMargin = 0.1
	// MinSeparation is the minimum distance between randomly generated points.
	MinSeparation = 0.05
	// HitRadius is the pick radius used for drag and rename hit-tests.
	HitRadius = 0.03

	maxPlacementAttempts = 10000
)

var (
	// ErrFrozen is returned by every mutator while a run holds the set.
	ErrFrozen = errors.New("point set is frozen while a run is active")
	// ErrIndexOutOfRange is returned for indices outside the set.
	ErrIndexOutOfRange = errors.New("point index out of range")
	// ErrTooFewPoints is returned when fewer than two points are requested.
	ErrTooFewPoints = errors.New("at least 2 points are required")
)

// Point is a location in normalized [0,1]x[0,1] coordinates.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// DefaultLabel returns the label a point gets at index i.
func DefaultLabel(i int) string {
	return fmt.Sprintf("City %d", i+1)
}

// Snapshot is an immutable copy of a PointSet.
type Snapshot struct {
	Points []Point `json:"points"`
	Start  int     `json:"start"`
	Final  int     `json:"final"`
}

// Len returns the number of points.
func (s Snapshot) Len() int { return len(s.Points) }

// Closed reports whether routes over this set are closed tours.
func (s Snapshot) Closed() bool { return s.Start == s.Final }

// Coords returns the points as [x, y] pairs, the optimizer wire format.
func (s Snapshot) Coords() [][2]float64 {
	coords := make([][2]float64, len(s.Points))
	for i, p := range s.Points {
		coords[i] = [2]float64{p.X, p.Y}
	}
	return coords
}

// Labels returns the labels in index order.
func (s Snapshot) Labels() []string {
	labels := make([]string, len(s.Points))
	for i, p := range s.Points {
		labels[i] = p.Label
	}
	return labels
}

// RouteLabels returns the labels of route in visit order. Indices outside the
// set are rendered as "?".
func (s Snapshot) RouteLabels(route []int) []string {
	labels := make([]string, len(route))
	for i, idx := range route {
		if idx < 0 || idx >= len(s.Points) {
			labels[i] = "?"
			continue
		}
		labels[i] = s.Points[idx].Label
	}
	return labels
}

// Validate checks anchor ranges and coordinates.
func (s Snapshot) Validate() error {
	if len(s.Points) == 0 {
		return fmt.Errorf("empty point set")
	}
	if s.Start < 0 || s.Start >= len(s.Points) {
		return fmt.Errorf("start %d: %w", s.Start, ErrIndexOutOfRange)
	}
	if s.Final < 0 || s.Final >= len(s.Points) {
		return fmt.Errorf("final %d: %w", s.Final, ErrIndexOutOfRange)
	}
	for i, p := range s.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			return fmt.Errorf("point %d has NaN coordinates", i)
		}
	}
	return nil
}

// PointSet is the mutable, lockable set the UI edits between runs.
// It is safe for concurrent use.
type PointSet struct {
	mu     sync.RWMutex
	points []Point
	start  int
	final  int
	frozen bool
}

// New creates a set from explicit points. Empty labels get default labels.
func New(pts []Point, start, final int) (*PointSet, error) {
	cp := make([]Point, len(pts))
	copy(cp, pts)
	for i := range cp {
		if cp[i].Label == "" {
			cp[i].Label = DefaultLabel(i)
		}
	}

	snap := Snapshot{Points: cp, Start: start, Final: final}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &PointSet{points: cp, start: start, final: final}, nil
}

// Generate creates n random points separated by at least MinSeparation,
// with random start and final anchors.
func Generate(n int, rng *rand.Rand) (*PointSet, error) {
	if n < 2 {
		return nil, ErrTooFewPoints
	}
	pts, err := generatePoints(n, rng)
	if err != nil {
		return nil, err
	}
	return &PointSet{
		points: pts,
		start:  rng.Intn(n),
		final:  rng.Intn(n),
	}, nil
}

func generatePoints(n int, rng *rand.Rand) ([]Point, error) {
	pts := make([]Point, 0, n)
	for attempts := 0; len(pts) < n; attempts++ {
		if attempts > maxPlacementAttempts*n {
			return nil, fmt.Errorf("could not place %d points with separation %.2f", n, MinSeparation)
		}
		x := GenerationMargin + rng.Float64()*(1-2*GenerationMargin)
		y := GenerationMargin + rng.Float64()*(1-2*GenerationMargin)
		if tooClose(pts, x, y) {
			continue
		}
		pts = append(pts, Point{X: x, Y: y, Label: DefaultLabel(len(pts))})
	}
	return pts, nil
}

func tooClose(pts []Point, x, y float64) bool {
	for _, p := range pts {
		if math.Hypot(p.X-x, p.Y-y) < MinSeparation {
			return true
		}
	}
	return false
}

// Snapshot returns an immutable copy of the set.
func (ps *PointSet) Snapshot() Snapshot {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	cp := make([]Point, len(ps.points))
	copy(cp, ps.points)
	return Snapshot{Points: cp, Start: ps.start, Final: ps.final}
}

// Len returns the number of points.
func (ps *PointSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.points)
}

// Start returns the start anchor index.
func (ps *PointSet) Start() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.start
}

// Final returns the final anchor index.
func (ps *PointSet) Final() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.final
}

// Freeze makes the set read-only.
func (ps *PointSet) Freeze() {
	ps.mu.Lock()
	ps.frozen = true
	ps.mu.Unlock()
}

// Thaw makes the set editable again.
func (ps *PointSet) Thaw() {
	ps.mu.Lock()
	ps.frozen = false
	ps.mu.Unlock()
}

// Frozen reports whether the set is currently read-only.
func (ps *PointSet) Frozen() bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.frozen
}

// mutate runs fn under the write lock unless the set is frozen.
func (ps *PointSet) mutate(fn func() error) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.frozen {
		return ErrFrozen
	}
	return fn()
}

func (ps *PointSet) checkIndex(i int) error {
	if i < 0 || i >= len(ps.points) {
		return fmt.Errorf("index %d: %w", i, ErrIndexOutOfRange)
	}
	return nil
}

// Move repositions point i. Coordinates are clamped to [0,1].
func (ps *PointSet) Move(i int, x, y float64) error {
	return ps.mutate(func() error {
		if err := ps.checkIndex(i); err != nil {
			return err
		}
		ps.points[i].X = clamp01(x)
		ps.points[i].Y = clamp01(y)
		return nil
	})
}

// Rename sets the label of point i. Blank labels are rejected.
func (ps *PointSet) Rename(i int, label string) error {
	return ps.mutate(func() error {
		if err := ps.checkIndex(i); err != nil {
			return err
		}
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("label cannot be empty")
		}
		ps.points[i].Label = label
		return nil
	})
}

// SetAnchors changes the start and final indices.
func (ps *PointSet) SetAnchors(start, final int) error {
	return ps.mutate(func() error {
		if err := ps.checkIndex(start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		if err := ps.checkIndex(final); err != nil {
			return fmt.Errorf("final: %w", err)
		}
		ps.start = start
		ps.final = final
		return nil
	})
}

// Resize grows the set with random points or truncates it. Anchors that
// fall off the end are clamped to the last point.
func (ps *PointSet) Resize(n int, rng *rand.Rand) error {
	if n < 2 {
		return ErrTooFewPoints
	}
	return ps.mutate(func() error {
		for i := len(ps.points); i < n; i++ {
			ps.points = append(ps.points, Point{X: rng.Float64(), Y: rng.Float64(), Label: DefaultLabel(i)})
		}
		ps.points = ps.points[:n]
		if ps.start >= n {
			ps.start = n - 1
		}
		if ps.final >= n {
			ps.final = n - 1
		}
		return nil
	})
}

// Randomize replaces every point with a freshly generated layout of the
// same size. Labels are reset and anchors re-drawn.
func (ps *PointSet) Randomize(rng *rand.Rand) error {
	return ps.mutate(func() error {
		n := len(ps.points)
		if n < 2 {
			return ErrTooFewPoints
		}
		pts, err := generatePoints(n, rng)
		if err != nil {
			return err
		}
		ps.points = pts
		ps.start = rng.Intn(n)
		ps.final = rng.Intn(n)
		return nil
	})
}

// Nearest returns the first point within radius of (x, y), or -1.
func (ps *PointSet) Nearest(x, y, radius float64) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	for i, p := range ps.points {
		if math.Hypot(p.X-x, p.Y-y) < radius {
			return i
		}
	}
	return -1
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
