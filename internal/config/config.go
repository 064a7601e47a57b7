package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// DefaultOptimizerURL is the default address of the optimizer service.
const DefaultOptimizerURL = "http://127.0.0.1:5000"

// Config is the resolved configuration for a routeviz process.
type Config struct {
	OptimizerURL   string
	RequestTimeout time.Duration
	Settings       Settings

	// Seed drives point generation. Zero means time-based.
	Seed int64

	CanvasWidth  int
	CanvasHeight int
	OutputDir    string

	StoreDriver string // fs or sqlite
	StorePath   string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OptimizerURL:   DefaultOptimizerURL,
		RequestTimeout: 10 * time.Second,
		Settings:       DefaultSettings(),
		CanvasWidth:    800,
		CanvasHeight:   600,
		OutputDir:      "./out",
		StoreDriver:    "fs",
		StorePath:      "./data",
	}
}

// File mirrors Config for on-disk overrides. Nil fields keep the current
// value, so partial files are fine.
type File struct {
	OptimizerURL   *string `json:"optimizer_url,omitempty"`
	RequestTimeout *string `json:"request_timeout,omitempty"` // duration string like "5s"
	Seed           *int64  `json:"seed,omitempty"`

	PopulationSize   *int     `json:"population_size,omitempty"`
	NumPoints        *int     `json:"num_points,omitempty"`
	MutationRate     *float64 `json:"mutation_rate,omitempty"`
	MaxGenerations   *int     `json:"max_generations,omitempty"`
	SelectionMethod  *string  `json:"selection_method,omitempty"`
	CrossoverMethod  *string  `json:"crossover_method,omitempty"`
	MutationMethod   *string  `json:"mutation_method,omitempty"`
	ElitePercentage  *float64 `json:"elite_percentage,omitempty"`
	Elitism          *bool    `json:"elitism,omitempty"`
	EvolutionSpeedMS *int     `json:"evolution_speed_ms,omitempty"`
	PushSettings     *bool    `json:"push_settings,omitempty"`

	CanvasWidth  *int    `json:"canvas_width,omitempty"`
	CanvasHeight *int    `json:"canvas_height,omitempty"`
	OutputDir    *string `json:"output_dir,omitempty"`
	StoreDriver  *string `json:"store_driver,omitempty"`
	StorePath    *string `json:"store_path,omitempty"`
}

const maxFileSize = 1 << 20

// Load reads a JSON config file (comments and trailing commas allowed) and
// applies it on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", cleanPath, err)
	}
	if err := f.Apply(&cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", cleanPath, err)
	}
	return cfg, nil
}

// Parse decodes a HuJSON document into a File.
func Parse(data []byte) (*File, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	var f File
	if err := json.Unmarshal(std, &f); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &f, nil
}

// Apply copies every non-nil field into cfg.
func (f *File) Apply(cfg *Config) error {
	if f.OptimizerURL != nil {
		cfg.OptimizerURL = *f.OptimizerURL
	}
	if f.RequestTimeout != nil {
		d, err := time.ParseDuration(*f.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", *f.RequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if f.Seed != nil {
		cfg.Seed = *f.Seed
	}

	s := &cfg.Settings
	if f.PopulationSize != nil {
		s.PopulationSize = *f.PopulationSize
	}
	if f.NumPoints != nil {
		s.NumPoints = *f.NumPoints
	}
	if f.MutationRate != nil {
		s.MutationRate = *f.MutationRate
	}
	if f.MaxGenerations != nil {
		s.MaxGenerations = *f.MaxGenerations
	}
	if f.SelectionMethod != nil {
		s.SelectionMethod = *f.SelectionMethod
	}
	if f.CrossoverMethod != nil {
		s.CrossoverMethod = *f.CrossoverMethod
	}
	if f.MutationMethod != nil {
		s.MutationMethod = *f.MutationMethod
	}
	if f.ElitePercentage != nil {
		s.ElitePercentage = *f.ElitePercentage
	}
	if f.Elitism != nil {
		s.Elitism = *f.Elitism
	}
	if f.EvolutionSpeedMS != nil {
		s.EvolutionSpeedMS = *f.EvolutionSpeedMS
	}
	if f.PushSettings != nil {
		s.PushSettings = *f.PushSettings
	}

	if f.CanvasWidth != nil {
		cfg.CanvasWidth = *f.CanvasWidth
	}
	if f.CanvasHeight != nil {
		cfg.CanvasHeight = *f.CanvasHeight
	}
	if f.OutputDir != nil {
		cfg.OutputDir = *f.OutputDir
	}
	if f.StoreDriver != nil {
		cfg.StoreDriver = *f.StoreDriver
	}
	if f.StorePath != nil {
		cfg.StorePath = *f.StorePath
	}
	return nil
}
