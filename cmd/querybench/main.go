package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/querybench/querybench/pkg/config"
	"github.com/querybench/querybench/pkg/runs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile  string
	logLevel string
	log      *logrus.Logger
)

// Exit codes. Malformed input and an unreadable summary are distinct
// outcomes and are not collapsed.
const (
	exitFailure           = 1
	exitMalformedInput    = 2
	exitSummaryUnreadable = 3
)

// errMalformedInput marks input-side failures (unparseable data, bad
// paths, unknown metric names) so they exit with their own code.
var errMalformedInput = errors.New("malformed input")

func main() {
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("Failed to execute command")
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, runs.ErrSummaryNotFound):
		return exitSummaryUnreadable
	case errors.Is(err, errMalformedInput):
		return exitMalformedInput
	default:
		return exitFailure
	}
}

var rootCmd = &cobra.Command{
	Use:   "querybench",
	Short: "JDBC benchmark run statistics and comparison tool",
	Long: `Querybench summarizes raw JMeter JTL result files into run summaries
and analyzes them: single-run statistics, cross-run and cross-engine
comparison, and concurrency scaling profiles.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		log.SetLevel(level)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("querybench %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level ("+strings.Join(logLevels(), ", ")+")")

	rootCmd.AddCommand(versionCmd)
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}

// loadConfig reads the configured file, or returns a default
// configuration when no file was given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// writeOutput writes data to the output file, or stdout when no file
// was given.
func writeOutput(output string, data []byte) error {
	if output == "" {
		_, err := os.Stdout.Write(data)

		return err
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	log.WithField("file", output).Info("Output written")

	return nil
}
