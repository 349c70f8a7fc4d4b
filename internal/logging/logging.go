// Package logging provides structured logging utilities.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rgehrsitz/tyche/internal/config"
	"github.com/rgehrsitz/tyche/internal/domain"
)

// the sugared logger is the adapter handed to the analysis packages
var _ domain.Logger = (*zap.SugaredLogger)(nil)

// Config contains logging configuration
type Config struct {
	// Level is the minimum log level
	Level string `json:"level"`

	// Format is the console format: auto, console or json. Auto picks console on a
	// terminal and json otherwise.
	Format string `json:"format"`

	// File is an optional rotating log file, always written as json
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`

	// Development enables development mode
	Development bool `json:"development"`

	// Output replaces stderr as the console sink
	Output io.Writer `json:"-"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "auto",
		MaxSizeMB:  16,
		MaxBackups: 8,
		MaxAgeDays: 30,
	}
}

// FromSettings maps application settings onto a logging configuration
func FromSettings(s config.LogSettings) Config {
	return Config{
		Level:      s.Level,
		Format:     s.Format,
		File:       s.File,
		MaxSizeMB:  s.MaxSizeMB,
		MaxBackups: s.MaxBackups,
		MaxAgeDays: s.MaxAgeDays,
	}
}

// New builds a logger writing to the console sink and, when configured, a rotating file
func New(cfg Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	out := cfg.Output
	terminal := false
	if out == nil {
		out = os.Stderr
		terminal = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if terminal {
			format = "console"
		}
	}

	var console zapcore.Encoder
	if format == "console" {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if terminal {
			consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		console = zapcore.NewConsoleEncoder(consoleConfig)
	} else {
		console = zapcore.NewJSONEncoder(encoderConfig)
	}

	cores := []zapcore.Core{zapcore.NewCore(console, zapcore.AddSync(out), level)}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level))
	}

	core := zapcore.NewTee(cores...)
	if cfg.Development {
		return zap.New(core, zap.Development(), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(core, zap.AddCaller())
}

// Sync flushes the logger, ignoring the error stderr reports on some platforms
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
