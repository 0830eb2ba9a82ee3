package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/querybench/querybench/pkg/config"
	"github.com/querybench/querybench/pkg/ingest"
	"github.com/querybench/querybench/pkg/naming"
	"github.com/querybench/querybench/pkg/runpath"
	"github.com/querybench/querybench/pkg/summary"
	"github.com/spf13/cobra"
)

var (
	summarizeInput       string
	summarizeInputDir    string
	summarizeOutput      string
	summarizeOutputDir   string
	summarizeRunPath     string
	summarizeEngine      string
	summarizeClusterSize string
	summarizeBenchmark   string
	summarizeRunType     string
	summarizeConcurrency int
	summarizeRunID       string
	summarizeDriverClass string
	summarizeWorkers     int
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize raw JTL result files into run summaries",
	Long: `Summarize parses a raw JMeter JTL result file, classifies its rows,
and computes the run summary (latency percentiles, throughput, warmup
window, failures, per-query statistics).

The run identity comes from the --engine/--cluster-size/... flags, or
from --run-path when the run already lives in the partitioned layout.
With --input-dir every .jtl file in the directory is summarized in
parallel and a summary.json is written next to each input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if summarizeInputDir != "" {
			return summarizeDir(cmd, cfg)
		}

		if summarizeInput == "" {
			return fmt.Errorf("%w: either --input or --input-dir is required", errMalformedInput)
		}

		return summarizeSingle(cmd, cfg)
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeInput, "input", "", "JTL result file to summarize")
	summarizeCmd.Flags().StringVar(&summarizeInputDir, "input-dir", "",
		"directory of .jtl files to summarize in parallel")
	summarizeCmd.Flags().StringVar(&summarizeOutput, "output", "",
		"summary output file (default stdout)")
	summarizeCmd.Flags().StringVar(&summarizeOutputDir, "output-dir", "",
		"directory summaries are written to in --input-dir mode (default next to each input)")
	summarizeCmd.Flags().StringVar(&summarizeRunPath, "run-path", "",
		"partitioned run path to derive the run identity from")
	summarizeCmd.Flags().StringVar(&summarizeEngine, "engine", "", "engine tag")
	summarizeCmd.Flags().StringVar(&summarizeClusterSize, "cluster-size", "", "cluster size tag")
	summarizeCmd.Flags().StringVar(&summarizeBenchmark, "benchmark", "", "benchmark tag")
	summarizeCmd.Flags().StringVar(&summarizeRunType, "run-type", "", "run type (sequential or concurrency_N)")
	summarizeCmd.Flags().IntVar(&summarizeConcurrency, "concurrency", 0, "concurrency level")
	summarizeCmd.Flags().StringVar(&summarizeRunID, "run-id", "", "run identifier (default current UTC timestamp)")
	summarizeCmd.Flags().StringVar(&summarizeDriverClass, "driver-class", "",
		"JDBC driver class to detect the engine from when --engine is not set")
	summarizeCmd.Flags().IntVar(&summarizeWorkers, "workers", 0,
		"parallel workers in --input-dir mode (default 4)")

	rootCmd.AddCommand(summarizeCmd)
}

func summarizeSingle(cmd *cobra.Command, cfg *config.Config) error {
	identity, err := resolveIdentity(cfg)
	if err != nil {
		return err
	}

	ingestor := ingest.NewIngestor(log, cfg.Ingest)

	batch, err := ingestor.ParseFile(summarizeInput)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedInput, err)
	}

	sum := summary.NewSummarizer(log, cfg.Summary).Summarize(identity, batch)

	data, err := sum.Encode()
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	return writeOutput(summarizeOutput, append(data, '\n'))
}

func summarizeDir(cmd *cobra.Command, cfg *config.Config) error {
	entries, err := os.ReadDir(summarizeInputDir)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", errMalformedInput, summarizeInputDir, err)
	}

	inputs := make([]summary.Input, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jtl") {
			continue
		}

		identity, err := resolveIdentity(cfg)
		if err != nil {
			return err
		}

		identity.RunID = strings.TrimSuffix(e.Name(), ".jtl")

		inputs = append(inputs, summary.Input{
			Identity:   identity,
			ResultFile: filepath.Join(summarizeInputDir, e.Name()),
		})
	}

	if len(inputs) == 0 {
		return fmt.Errorf("%w: no .jtl files under %s", errMalformedInput, summarizeInputDir)
	}

	ingestor := ingest.NewIngestor(log, cfg.Ingest)
	summarizer := summary.NewSummarizer(log, cfg.Summary)

	result, batchErr := summarizer.SummarizeBatch(cmd.Context(), ingestor, inputs, summarizeWorkers)

	outDir := summarizeOutputDir
	if outDir == "" {
		outDir = summarizeInputDir
	}

	for _, sum := range result.Summaries {
		data, err := sum.Encode()
		if err != nil {
			return fmt.Errorf("encoding summary %s: %w", sum.Identity.RunID, err)
		}

		path := filepath.Join(outDir, sum.Identity.RunID+"."+summary.FileName)
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	log.WithField("summarized", len(result.Summaries)).
		WithField("failed", len(result.Failed)).
		Info("Batch summarization complete")

	if batchErr != nil {
		return fmt.Errorf("%w: %v", errMalformedInput, batchErr)
	}

	return nil
}

// resolveIdentity builds the run identity from --run-path when given,
// with individual flags overriding its fields.
func resolveIdentity(cfg *config.Config) (summary.RunIdentity, error) {
	var identity summary.RunIdentity

	if summarizeRunPath != "" {
		rp, err := runpath.Parse(summarizeRunPath)
		if err != nil {
			return identity, fmt.Errorf("%w: %v", errMalformedInput, err)
		}

		identity = rp.Identity()
	}

	if summarizeEngine != "" {
		identity.Engine = summarizeEngine
	}

	if identity.Engine == "" && summarizeDriverClass != "" {
		patterns := cfg.EnginePatterns
		if patterns == nil {
			patterns = naming.DefaultEnginePatterns()
		}

		if engine, ok := naming.NewEngineDetector(patterns).Detect(summarizeDriverClass); ok {
			identity.Engine = engine
		} else {
			log.WithField("driver_class", summarizeDriverClass).
				Warn("No engine pattern matched driver class")
		}
	}

	if summarizeClusterSize != "" {
		identity.ClusterSize = summarizeClusterSize
	}

	if summarizeBenchmark != "" {
		identity.Benchmark = summarizeBenchmark
	}

	if summarizeRunType != "" {
		identity.RunType = summarizeRunType
	}

	if summarizeConcurrency != 0 {
		identity.Concurrency = summarizeConcurrency
	}

	if identity.Concurrency == 0 && identity.RunType == runpath.RunTypeSequential {
		identity.Concurrency = 1
	}

	if summarizeRunID != "" {
		identity.RunID = summarizeRunID
	}

	if identity.RunID == "" {
		identity.RunID = time.Now().UTC().Format("20060102-150405")
	}

	return identity, nil
}
