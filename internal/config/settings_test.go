package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgehrsitz/tyche/internal/optimizer"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, []float64{10, 50, 90}, s.Percentiles)
	assert.Equal(t, optimizer.GlobalStochastic, s.OptimizerOptions().Strategy)
	assert.Equal(t, uint64(1), s.EvaluationConfig().Seed)
}

func TestLoadSettings_FileAndEnvironment(t *testing.T) {
	// keep .env lookups away from the package directory
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "tyche.yaml")
	content := `
sample_count: 250
strategy: global-deterministic
percentiles: [5, 95]
log:
  level: debug
  file: tyche.log
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("TYCHE_SEED", "42")
	t.Setenv("TYCHE_LOG_FORMAT", "json")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 250, s.SampleCount)
	assert.Equal(t, "global-deterministic", s.Strategy)
	assert.Equal(t, []float64{5, 95}, s.Percentiles)
	assert.Equal(t, uint64(42), s.Seed)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)
	assert.Equal(t, "tyche.log", s.Log.File)
	assert.Equal(t, DefaultSettings().MaxIterations, s.MaxIterations, "unset keys keep defaults")
}

func TestLoadSettings_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TYCHE_MAX_ITERATIONS=7\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("TYCHE_MAX_ITERATIONS") })

	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, 7, s.MaxIterations)
}

func TestLoadSettings_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("TYCHE_STRATEGY", "annealing")
	_, err = LoadSettings("")
	assert.Error(t, err)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"zero samples", func(s *Settings) { s.SampleCount = 0 }},
		{"percentile above 100", func(s *Settings) { s.Percentiles = []float64{50, 101} }},
		{"no parallelism", func(s *Settings) { s.Parallelism = 0 }},
		{"unknown strategy", func(s *Settings) { s.Strategy = "grid" }},
		{"zero iterations", func(s *Settings) { s.MaxIterations = 0 }},
		{"zero tolerance", func(s *Settings) { s.Tolerance = 0 }},
		{"unknown level", func(s *Settings) { s.Log.Level = "trace" }},
		{"unknown format", func(s *Settings) { s.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}
