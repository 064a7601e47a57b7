package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultOptimizerURL, cfg.OptimizerURL)
	assert.Equal(t, 25, cfg.Settings.NumPoints)
	assert.Equal(t, 100, cfg.Settings.PopulationSize)
	assert.Equal(t, "tournament", cfg.Settings.SelectionMethod)
	assert.Equal(t, 100*time.Millisecond, cfg.Settings.EvolutionSpeed())
	require.NoError(t, cfg.Settings.Validate())
}

func TestLoad_HuJSONWithComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routeviz.json")
	content := `{
		// local optimizer
		"optimizer_url": "http://localhost:9000",
		"request_timeout": "2s",
		"max_generations": 5,
		"selection_method": "roulette",
		"elitism": false,
		"store_driver": "sqlite",
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.OptimizerURL)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.Settings.MaxGenerations)
	assert.Equal(t, "roulette", cfg.Settings.SelectionMethod)
	assert.False(t, cfg.Settings.Elitism)
	assert.Equal(t, "sqlite", cfg.StoreDriver)

	// untouched fields keep defaults
	assert.Equal(t, 25, cfg.Settings.NumPoints)
	assert.Equal(t, "ox", cfg.Settings.CrossoverMethod)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"max_generations": }`), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	badDuration := filepath.Join(dir, "duration.json")
	require.NoError(t, os.WriteFile(badDuration, []byte(`{"request_timeout": "soon"}`), 0644))
	_, err = Load(badDuration)
	assert.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
		ok     bool
	}{
		{"defaults", func(s *Settings) {}, true},
		{"zero generations", func(s *Settings) { s.MaxGenerations = 0 }, false},
		{"negative delay", func(s *Settings) { s.EvolutionSpeedMS = -1 }, false},
		{"zero delay", func(s *Settings) { s.EvolutionSpeedMS = 0 }, true},
		{"empty population", func(s *Settings) { s.PopulationSize = 0 }, false},
		{"single point", func(s *Settings) { s.NumPoints = 1 }, false},
		{"out of range mutation rate is not an error", func(s *Settings) { s.MutationRate = 500 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSettings)
			}
		})
	}
}

func TestMutationRateBounds(t *testing.T) {
	lo, hi := MutationRateBounds(100)
	assert.InDelta(t, 0.01, lo, 1e-12)
	assert.Equal(t, MaxMutationRate, hi)

	s := DefaultSettings()
	assert.True(t, s.MutationRateInRange())

	s.MutationRate = 0.001
	assert.False(t, s.MutationRateInRange())
}
