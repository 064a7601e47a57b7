package config

import (
	"errors"
	"fmt"
	"time"
)

// Recognized optimizer method names. They are passed through to the
// optimizer unchanged; the lists only feed option pickers and help text.
var (
	SelectionMethods = []string{"tournament", "roulette"}
	CrossoverMethods = []string{"ox", "cycle", "sp"}
	MutationMethods  = []string{"swap", "inversion"}
)

// MaxMutationRate is the upper end of the mutation rate slider.
const MaxMutationRate = 100.0

// Settings holds the run parameters the user can change between runs.
// The controller only interprets MaxGenerations and EvolutionSpeedMS;
// everything else is forwarded to the optimizer.
type Settings struct {
	PopulationSize   int     `json:"population_size"`
	NumPoints        int     `json:"num_points"`
	MutationRate     float64 `json:"mutation_rate"`
	MaxGenerations   int     `json:"max_generations"`
	SelectionMethod  string  `json:"selection_method"`
	CrossoverMethod  string  `json:"crossover_method"`
	MutationMethod   string  `json:"mutation_method"`
	ElitePercentage  float64 `json:"elite_percentage"`
	Elitism          bool    `json:"elitism"`
	EvolutionSpeedMS int     `json:"evolution_speed_ms"`

	// PushSettings sends the optimizer settings with /api/configure before
	// the point set is uploaded.
	PushSettings bool `json:"push_settings"`
}

// DefaultSettings returns the default run parameters.
func DefaultSettings() Settings {
	return Settings{
		PopulationSize:   100,
		NumPoints:        25,
		MutationRate:     0.02,
		MaxGenerations:   100,
		SelectionMethod:  "tournament",
		CrossoverMethod:  "ox",
		MutationMethod:   "swap",
		ElitePercentage:  10,
		Elitism:          true,
		EvolutionSpeedMS: 100,
		PushSettings:     true,
	}
}

// EvolutionSpeed returns the inter-poll delay.
func (s Settings) EvolutionSpeed() time.Duration {
	return time.Duration(s.EvolutionSpeedMS) * time.Millisecond
}

// MutationRateBounds returns the slider range for the mutation rate,
// [1/populationSize, 100].
func MutationRateBounds(populationSize int) (lo, hi float64) {
	if populationSize <= 0 {
		return 0, MaxMutationRate
	}
	return 1 / float64(populationSize), MaxMutationRate
}

// MutationRateInRange reports whether the mutation rate lies inside the
// slider range. Out-of-range values are still sent as-is.
func (s Settings) MutationRateInRange() bool {
	lo, hi := MutationRateBounds(s.PopulationSize)
	return s.MutationRate >= lo && s.MutationRate <= hi
}

// ErrInvalidSettings is wrapped by every error returned from Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// Validate rejects values the controller itself cannot work with.
// Optimizer-specific values are not checked.
func (s Settings) Validate() error {
	if s.MaxGenerations < 1 {
		return fmt.Errorf("%w: max_generations must be at least 1, got %d", ErrInvalidSettings, s.MaxGenerations)
	}
	if s.EvolutionSpeedMS < 0 {
		return fmt.Errorf("%w: evolution_speed_ms cannot be negative, got %d", ErrInvalidSettings, s.EvolutionSpeedMS)
	}
	if s.PopulationSize < 1 {
		return fmt.Errorf("%w: population_size must be positive, got %d", ErrInvalidSettings, s.PopulationSize)
	}
	if s.NumPoints < 2 {
		return fmt.Errorf("%w: num_points must be at least 2, got %d", ErrInvalidSettings, s.NumPoints)
	}
	return nil
}
