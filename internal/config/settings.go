package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rgehrsitz/tyche/internal/evaluation"
	"github.com/rgehrsitz/tyche/internal/optimizer"
)

// EnvPrefix prefixes every environment override, e.g. TYCHE_SAMPLE_COUNT
const EnvPrefix = "TYCHE"

// LogSettings configures the application logger
type LogSettings struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Settings holds the application defaults shared by every command
type Settings struct {
	SampleCount   int         `mapstructure:"sample_count"`
	Seed          uint64      `mapstructure:"seed"`
	Percentiles   []float64   `mapstructure:"percentiles"`
	Parallelism   int         `mapstructure:"parallelism"`
	Strategy      string      `mapstructure:"strategy"`
	MaxIterations int         `mapstructure:"max_iterations"`
	Tolerance     float64     `mapstructure:"tolerance"`
	MetricsAddr   string      `mapstructure:"metrics_addr"`
	Log           LogSettings `mapstructure:"log"`
}

// DefaultSettings returns default application settings
func DefaultSettings() Settings {
	return Settings{
		SampleCount:   100,
		Seed:          1,
		Percentiles:   append([]float64(nil), evaluation.DefaultPercentiles...),
		Parallelism:   runtime.GOMAXPROCS(0),
		Strategy:      string(optimizer.GlobalStochastic),
		MaxIterations: 50,
		Tolerance:     1e-3,
		Log: LogSettings{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  16,
			MaxBackups: 8,
			MaxAgeDays: 30,
		},
	}
}

// LoadSettings reads settings from defaults, an optional config file, a .env file in
// the working directory and TYCHE_ environment variables, in increasing precedence.
// With an empty path, tyche.yaml is looked up in the working directory and the user
// config directory and skipped when absent.
func LoadSettings(path string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultSettings())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tyche")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/tyche")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("failed to read settings: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("sample_count", d.SampleCount)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("percentiles", d.Percentiles)
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("max_iterations", d.MaxIterations)
	v.SetDefault("tolerance", d.Tolerance)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// Validate checks the settings ranges
func (s Settings) Validate() error {
	if s.SampleCount < 1 {
		return fmt.Errorf("sample_count must be at least 1, got %d", s.SampleCount)
	}
	for _, p := range s.Percentiles {
		if p < 0 || p > 100 {
			return fmt.Errorf("percentiles must lie in [0, 100], got %g", p)
		}
	}
	if s.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", s.Parallelism)
	}
	if _, err := optimizer.ParseStrategy(s.Strategy); err != nil {
		return err
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", s.MaxIterations)
	}
	if s.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", s.Tolerance)
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", s.Log.Level)
	}
	switch strings.ToLower(s.Log.Format) {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want auto, console or json)", s.Log.Format)
	}
	return nil
}

// EvaluationConfig maps the settings onto evaluator configuration
func (s Settings) EvaluationConfig() evaluation.Config {
	return evaluation.Config{
		Seed:        s.Seed,
		Percentiles: append([]float64(nil), s.Percentiles...),
		Parallelism: s.Parallelism,
	}
}

// OptimizerOptions maps the settings onto optimizer defaults
func (s Settings) OptimizerOptions() optimizer.Options {
	return optimizer.Options{
		Strategy:      optimizer.StrategyKind(s.Strategy),
		SampleCount:   s.SampleCount,
		MaxIterations: s.MaxIterations,
		Tolerance:     s.Tolerance,
		Seed:          s.Seed,
		Parallelism:   s.Parallelism,
	}
}
