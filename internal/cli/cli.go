package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/nodeflow/internal/app"
	"github.com/spf13/pflag"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Values come from the defaults, then the config file, then explicitly set
// flags.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	defaults := app.DefaultConfig()
	flagSet := pflag.NewFlagSet("nodeflow", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.SortFlags = false

	flagSet.Usage = func() {
		fmt.Fprint(output, `
nodeflow - Visual graph execution server with live debugging.

Usage:
  nodeflow [options] [GRAPHS_PATH]

Arguments:
  GRAPHS_PATH
    Directory containing graph documents (.json, .yaml, .yml).

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.StringP("config", "c", "", "Path to an HCL configuration file.")
	graphsFlag := flagSet.StringP("graphs", "g", defaults.GraphsPath, "Directory containing graph documents.")
	listenFlag := flagSet.StringP("listen", "l", defaults.Listen, "Address of the HTTP and debug server.")
	corsFlag := flagSet.StringSlice("cors-origin", defaults.CORSOrigins, "Allowed CORS origins (repeatable).")
	logFormatFlag := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.IntP("workers", "w", defaults.Workers, "Number of concurrent executions.")
	queueFlag := flagSet.Int("queue", defaults.Queue, "Executions allowed to wait for a worker. 0 is unbounded.")
	maxStepsFlag := flagSet.Int("max-steps", defaults.MaxSteps, "Node visits allowed per execution.")
	tracesFlag := flagSet.String("traces", defaults.Traces, "Trace store. Options: 'memory' or 'sqlite'.")
	sqliteFlag := flagSet.String("sqlite-path", defaults.SQLitePath, "SQLite database for the sqlite trace store.")
	capacityFlag := flagSet.Int("trace-capacity", defaults.TraceCapacity, "Traces kept by the memory trace store.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg := defaults
	if *configFlag != "" {
		if err := app.ApplyFile(*configFlag, &cfg); err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		slog.Debug("Config file applied.", "path", *configFlag)
	}

	changed := flagSet.Changed
	if changed("graphs") {
		cfg.GraphsPath = *graphsFlag
	} else if flagSet.NArg() > 0 {
		cfg.GraphsPath = flagSet.Arg(0)
	}
	if changed("listen") {
		cfg.Listen = *listenFlag
	}
	if changed("cors-origin") {
		cfg.CORSOrigins = *corsFlag
	}
	if changed("log-format") {
		cfg.LogFormat = *logFormatFlag
	}
	if changed("log-level") {
		cfg.LogLevel = *logLevelFlag
	}
	if changed("workers") {
		cfg.Workers = *workersFlag
	}
	if changed("queue") {
		cfg.Queue = *queueFlag
	}
	if changed("max-steps") {
		cfg.MaxSteps = *maxStepsFlag
	}
	if changed("traces") {
		cfg.Traces = *tracesFlag
	}
	if changed("sqlite-path") {
		cfg.SQLitePath = *sqliteFlag
	}
	if changed("trace-capacity") {
		cfg.TraceCapacity = *capacityFlag
	}
	slog.Debug("Graphs path determined.", "path", cfg.GraphsPath)

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
