package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/nodeflow/internal/engine"
	"github.com/specialistvlad/nodeflow/internal/runtime"
	"github.com/specialistvlad/nodeflow/internal/tracestore"
)

// Trace store kinds.
const (
	TracesMemory = "memory"
	TracesSQLite = "sqlite"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigFile string // optional HCL file, see ApplyFile
	GraphsPath string // directory of graph documents

	Listen      string
	CORSOrigins []string

	LogFormat string
	LogLevel  string

	Workers  int
	Queue    int
	MaxSteps int

	Traces        string
	SQLitePath    string
	TraceCapacity int

	// Inventory seeds the built-in agent.
	Inventory map[string]int
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		GraphsPath:    "graphs",
		Listen:        ":8080",
		CORSOrigins:   []string{"*"},
		LogFormat:     "json",
		LogLevel:      "info",
		Workers:       runtime.DefaultWorkers,
		MaxSteps:      engine.DefaultMaxSteps,
		Traces:        TracesMemory,
		SQLitePath:    "nodeflow.db",
		TraceCapacity: tracestore.DefaultCapacity,
	}
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.GraphsPath == "" {
		errs = append(errs, errors.New("GraphsPath is a required configuration field and cannot be empty"))
	}
	if cfg.Listen == "" {
		errs = append(errs, errors.New("Listen is a required configuration field and cannot be empty"))
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if !slices.Contains([]string{"text", "json"}, cfg.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel))
	}

	if cfg.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", cfg.Workers))
	}
	if cfg.Queue < 0 {
		errs = append(errs, fmt.Errorf("queue cannot be negative, got %d", cfg.Queue))
	}
	if cfg.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("max-steps must be positive, got %d", cfg.MaxSteps))
	}

	switch cfg.Traces {
	case TracesMemory:
	case TracesSQLite:
		if cfg.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite trace store needs a database path"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid trace store %q: must be 'memory' or 'sqlite'", cfg.Traces))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}
