// Package history keeps the per-run log of optimizer generations and the
// best result seen so far.
package history

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	// ErrNonIncreasing is returned when a result does not advance the generation.
	ErrNonIncreasing = errors.New("generation must be strictly increasing")
	// ErrInvalidResult is returned for results that fail Validate.
	ErrInvalidResult = errors.New("invalid generation result")
)

// GenerationResult is one optimizer response: the best route of a generation
// and its total distance.
type GenerationResult struct {
	Generation int     `json:"generation"`
	Distance   float64 `json:"distance"`
	Route      []int   `json:"route"`
}

// Clone returns a deep copy.
func (r GenerationResult) Clone() GenerationResult {
	route := make([]int, len(r.Route))
	copy(route, r.Route)
	r.Route = route
	return r
}

// Validate checks the result against a point set of size n. The route must be
// a permutation of 0..n-1.
func (r GenerationResult) Validate(n int) error {
	if r.Generation < 1 {
		return fmt.Errorf("%w: generation %d", ErrInvalidResult, r.Generation)
	}
	if math.IsNaN(r.Distance) || math.IsInf(r.Distance, 0) || r.Distance < 0 {
		return fmt.Errorf("%w: distance %v", ErrInvalidResult, r.Distance)
	}
	if len(r.Route) != n {
		return fmt.Errorf("%w: route has %d entries, expected %d", ErrInvalidResult, len(r.Route), n)
	}
	seen := make([]bool, n)
	for _, idx := range r.Route {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: route index %d out of range", ErrInvalidResult, idx)
		}
		if seen[idx] {
			return fmt.Errorf("%w: route visits %d twice", ErrInvalidResult, idx)
		}
		seen[idx] = true
	}
	return nil
}

// Series is the generation/distance pair list the progress chart plots.
type Series struct {
	Generations []int
	Distances   []float64
}

// Store is the append-only history of the current run. It is safe for
// concurrent use; the poll loop is the only writer.
type Store struct {
	mu      sync.RWMutex
	results []GenerationResult
	best    int // index into results, -1 when empty
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{best: -1}
}

// Append adds a result. Generations must strictly increase. The best-so-far
// entry changes only when the new distance is strictly lower.
func (s *Store) Append(r GenerationResult) error {
	if r.Generation < 1 || math.IsNaN(r.Distance) || r.Distance < 0 {
		return fmt.Errorf("%w: generation %d distance %v", ErrInvalidResult, r.Generation, r.Distance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.results); n > 0 && r.Generation <= s.results[n-1].Generation {
		return fmt.Errorf("%w: got %d after %d", ErrNonIncreasing, r.Generation, s.results[n-1].Generation)
	}

	s.results = append(s.results, r.Clone())
	if s.best < 0 || r.Distance < s.results[s.best].Distance {
		s.best = len(s.results) - 1
	}
	return nil
}

// Clear drops every result and resets best-so-far.
func (s *Store) Clear() {
	s.mu.Lock()
	s.results = nil
	s.best = -1
	s.mu.Unlock()
}

// Len returns the number of stored results.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Best returns the lowest-distance result.
func (s *Store) Best() (GenerationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.best < 0 {
		return GenerationResult{}, false
	}
	return s.results[s.best].Clone(), true
}

// Last returns the most recent result.
func (s *Store) Last() (GenerationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.results) == 0 {
		return GenerationResult{}, false
	}
	return s.results[len(s.results)-1].Clone(), true
}

// Lookup returns the result recorded for generation g.
func (s *Store) Lookup(g int) (GenerationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := lookup(s.results, g)
	if !ok {
		return GenerationResult{}, false
	}
	return r.Clone(), true
}

// Results returns a copy of every result in append order.
func (s *Store) Results() []GenerationResult {
	return s.Snapshot().Results()
}

// Series returns the generation and distance columns.
func (s *Store) Series() Series {
	return s.Snapshot().Series()
}

// Snapshot returns an immutable copy of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]GenerationResult, len(s.results))
	for i, r := range s.results {
		results[i] = r.Clone()
	}
	return Snapshot{results: results, best: s.best}
}

// Snapshot is a point-in-time copy of a Store. All of its methods are pure.
type Snapshot struct {
	results []GenerationResult
	best    int
}

// Len returns the number of results.
func (s Snapshot) Len() int { return len(s.results) }

// Lookup returns the result for generation g.
func (s Snapshot) Lookup(g int) (GenerationResult, bool) {
	r, ok := lookup(s.results, g)
	if !ok {
		return GenerationResult{}, false
	}
	return r.Clone(), true
}

// Best returns the lowest-distance result.
func (s Snapshot) Best() (GenerationResult, bool) {
	if len(s.results) == 0 || s.best < 0 {
		return GenerationResult{}, false
	}
	return s.results[s.best].Clone(), true
}

// Last returns the most recent result.
func (s Snapshot) Last() (GenerationResult, bool) {
	if len(s.results) == 0 {
		return GenerationResult{}, false
	}
	return s.results[len(s.results)-1].Clone(), true
}

// Results returns a copy of the results.
func (s Snapshot) Results() []GenerationResult {
	out := make([]GenerationResult, len(s.results))
	for i, r := range s.results {
		out[i] = r.Clone()
	}
	return out
}

// Series returns the generation and distance columns.
func (s Snapshot) Series() Series {
	series := Series{
		Generations: make([]int, len(s.results)),
		Distances:   make([]float64, len(s.results)),
	}
	for i, r := range s.results {
		series.Generations[i] = r.Generation
		series.Distances[i] = r.Distance
	}
	return series
}

// lookup does a binary search over results sorted by generation.
func lookup(results []GenerationResult, g int) (GenerationResult, bool) {
	i := sort.Search(len(results), func(i int) bool {
		return results[i].Generation >= g
	})
	if i < len(results) && results[i].Generation == g {
		return results[i], true
	}
	return GenerationResult{}, false
}

// FromResults rebuilds a snapshot from archived results, e.g. a stored trace.
// Results must already be in strictly increasing generation order.
func FromResults(results []GenerationResult) (Snapshot, error) {
	s := NewStore()
	for _, r := range results {
		if err := s.Append(r); err != nil {
			return Snapshot{}, err
		}
	}
	return s.Snapshot(), nil
}
