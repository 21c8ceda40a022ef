package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msgtrace/tracecheck/internal/config"
	"github.com/msgtrace/tracecheck/internal/interpreter"
	"github.com/msgtrace/tracecheck/internal/logging"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// loggedError is a failure already reported through the run logger.
type loggedError struct{ error }

func (e loggedError) Unwrap() error { return e.error }

func main() {
	if err := execute(newRoot()); err != nil {
		os.Exit(1)
	}
}

// execute runs cmd and prints any error the logger has not reported yet.
func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	var logged loggedError
	if err != nil && !errors.As(err, &logged) {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
	}
	return err
}

func newRoot() *cobra.Command {
	var (
		configPath, logLevel, currentName string
		compares                          []string
	)
	cmd := &cobra.Command{
		Use:           "tracecheck <trace-dir>",
		Short:         "Check device connectivity consistency in gateway trace files",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if currentName != "" {
				cfg.Trace.CurrentName = currentName
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.AddComparisons(compares); err != nil {
				return fmt.Errorf("invalid arguments: %w", err)
			}

			logger, err := logging.New(cmd.OutOrStdout(), cfg.Logging.Level, cfg.Logging.NoColor)
			if err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}

			logger.Debug().
				Str("version", Version).
				Str("dir", args[0]).
				Str("current", cfg.Trace.CurrentName).
				Int("comparisons", len(cfg.Comparisons)).
				Msg("starting trace check")

			summary, err := interpreter.NewRunner(cfg, logger).Run(args[0])
			if err != nil {
				logger.Error().Err(err).Msg("trace check aborted")
				return loggedError{err}
			}

			fmt.Fprintln(cmd.OutOrStdout(), summary.Verdict())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringArrayVar(&compares, "compare", nil, "subscription groups to cross-check, as left,right (repeatable)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&currentName, "current", "", "name of the live trace file, replayed last")
	return cmd
}
