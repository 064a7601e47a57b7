package optimizer

import (
	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/points"
)

// CitiesRequest is the body of POST /api/set_cities.
type CitiesRequest struct {
	Cities [][2]float64 `json:"cities"`
	Depot  int          `json:"depot"`
	Final  int          `json:"final"`
}

// NewCitiesRequest builds the set_cities body from a point snapshot.
func NewCitiesRequest(snap points.Snapshot) CitiesRequest {
	return CitiesRequest{
		Cities: snap.Coords(),
		Depot:  snap.Start,
		Final:  snap.Final,
	}
}

// UpdateRequest is the body of POST /api/update. The optimizer runs one
// generation per request.
type UpdateRequest struct {
	Running         bool    `json:"running"`
	MutationRate    float64 `json:"mutation_rate"`
	SelectionMethod string  `json:"selection_method"`
}

// ConfigureRequest is the body of POST /api/configure.
type ConfigureRequest struct {
	NumCities       int     `json:"num_cities"`
	PopSize         int     `json:"pop_size"`
	MutationRate    float64 `json:"mutation_rate"`
	SelectionMethod string  `json:"selection_method"`
	CrossoverMethod string  `json:"crossover_method"`
	MutationMethod  string  `json:"mutation_method"`
	ElitePercentage float64 `json:"elite_percentage"`
	Elitism         bool    `json:"elitism"`
	Final           int     `json:"final"`
}

// NewConfigureRequest builds the configure body from settings and the
// anchors of the point set the run will use.
func NewConfigureRequest(s config.Settings, snap points.Snapshot) ConfigureRequest {
	return ConfigureRequest{
		NumCities:       snap.Len(),
		PopSize:         s.PopulationSize,
		MutationRate:    s.MutationRate,
		SelectionMethod: s.SelectionMethod,
		CrossoverMethod: s.CrossoverMethod,
		MutationMethod:  s.MutationMethod,
		ElitePercentage: s.ElitePercentage,
		Elitism:         s.Elitism,
		Final:           snap.Final,
	}
}

// CitiesResponse is returned by GET /api/cities.
type CitiesResponse struct {
	Cities     [][2]float64 `json:"cities"`
	StartIndex int          `json:"start_index"`
}

// StateResponse is returned by GET /api/current_state.
type StateResponse struct {
	Cities       [][2]float64 `json:"cities"`
	StartIndex   int          `json:"start_index"`
	Generation   int          `json:"generation"`
	BestDistance float64      `json:"best_distance"`
}

type errorResponse struct {
	Error string `json:"error"`
}
