package optimizer

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/routeviz/internal/history"
)

// Fake is an in-memory Optimizer for tests and offline demos. Each Update
// returns the next queued result; once the queue is empty it synthesizes a
// result from the uploaded cities.
type Fake struct {
	mu sync.Mutex

	// ConfigureErr, SetCitiesErr and StopErr fail the matching call when set.
	ConfigureErr error
	SetCitiesErr error
	StopErr      error
	// UpdateFunc overrides Update entirely when set.
	UpdateFunc func(ctx context.Context, req UpdateRequest) (history.GenerationResult, error)

	queue      []fakeStep
	generation int
	cities     CitiesRequest
	configure  ConfigureRequest

	ConfigureCalls int
	SetCitiesCalls int
	UpdateCalls    int
	StopCalls      int
	Updates        []UpdateRequest
}

type fakeStep struct {
	result history.GenerationResult
	err    error
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Queue adds results returned by subsequent Update calls.
func (f *Fake) Queue(results ...history.GenerationResult) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		f.queue = append(f.queue, fakeStep{result: r})
	}
	return f
}

// QueueError makes the next Update call fail with err.
func (f *Fake) QueueError(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeStep{err: err})
	return f
}

// Calls returns the total number of remote calls made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConfigureCalls + f.SetCitiesCalls + f.UpdateCalls + f.StopCalls
}

// LastCities returns the most recent set_cities request.
func (f *Fake) LastCities() CitiesRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cities
}

// LastConfigure returns the most recent configure request.
func (f *Fake) LastConfigure() ConfigureRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configure
}

func (f *Fake) Configure(ctx context.Context, req ConfigureRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConfigureCalls++
	if f.ConfigureErr != nil {
		return f.ConfigureErr
	}
	f.configure = req
	return nil
}

func (f *Fake) SetCities(ctx context.Context, req CitiesRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetCitiesCalls++
	if f.SetCitiesErr != nil {
		return f.SetCitiesErr
	}
	f.cities = req
	f.generation = 0
	return nil
}

func (f *Fake) Update(ctx context.Context, req UpdateRequest) (history.GenerationResult, error) {
	f.mu.Lock()
	f.UpdateCalls++
	f.Updates = append(f.Updates, req)
	fn := f.UpdateFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return history.GenerationResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) > 0 {
		step := f.queue[0]
		f.queue = f.queue[1:]
		if step.err != nil {
			return history.GenerationResult{}, step.err
		}
		f.generation = step.result.Generation
		return step.result.Clone(), nil
	}

	if len(f.cities.Cities) == 0 {
		return history.GenerationResult{}, &StatusError{Op: "update", StatusCode: 500, Message: "no cities set"}
	}
	f.generation++
	route := identityRoute(f.cities)
	return history.GenerationResult{
		Generation: f.generation,
		Distance:   routeLength(f.cities, route) / float64(f.generation),
		Route:      route,
	}, nil
}

func (f *Fake) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopCalls++
	return f.StopErr
}

// identityRoute visits every city in index order, starting at the depot.
func identityRoute(req CitiesRequest) []int {
	n := len(req.Cities)
	route := make([]int, 0, n)
	route = append(route, req.Depot)
	for i := 0; i < n; i++ {
		if i != req.Depot && i != req.Final {
			route = append(route, i)
		}
	}
	if req.Final != req.Depot {
		route = append(route, req.Final)
	}
	return route
}

func routeLength(req CitiesRequest, route []int) float64 {
	var total float64
	for i := 1; i < len(route); i++ {
		a, b := req.Cities[route[i-1]], req.Cities[route[i]]
		total += math.Hypot(a[0]-b[0], a[1]-b[1])
	}
	if req.Final == req.Depot && len(route) > 1 {
		a, b := req.Cities[route[len(route)-1]], req.Cities[route[0]]
		total += math.Hypot(a[0]-b[0], a[1]-b[1])
	}
	return total
}

var _ Optimizer = (*Fake)(nil)
var _ Optimizer = (*Client)(nil)

func (f *Fake) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("fake optimizer (generation %d, %d queued)", f.generation, len(f.queue))
}

// UpdateCount returns the number of Update calls.
func (f *Fake) UpdateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.UpdateCalls
}

// StopCount returns the number of Stop calls.
func (f *Fake) StopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.StopCalls
}
