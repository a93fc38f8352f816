package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/popsim/popsim/sim"
	"github.com/popsim/popsim/sim/index"
	"github.com/popsim/popsim/sim/trials"
)

var (
	// CLI flags for the trial plan
	exp         int    // Smallest population exponent (n = 10^exp)
	expEnd      int    // Largest population exponent
	repetitions int    // Trials per population size
	workers     int    // Trials running concurrently
	seed        int64  // Master seed; each trial derives its own stream
	outputDir   string // Directory receiving snapshot files
	compress    bool   // zstd-compress snapshot files
	indexPath   string // sqlite trial index, relative to outputDir unless absolute
	configPath  string // Optional YAML run file
	logLevel    string // Log verbosity level

	// CLI flags for a single trial
	randomMax   int   // > 1: random starting agents in [1, randomMax]
	iterations  int64 // Total logical time per trial
	resolution  int64 // Logical units per round
	adversarial bool  // Enable the population-size adversary
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "popsim",
	Short: "Simulator for a self-stabilizing population size estimation protocol",
}

// runCmd executes every trial of the configured plan
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run simulation trials",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		var events []sim.AdversaryEvent
		if configPath != "" {
			cfg, err := LoadRunConfig(configPath)
			if err != nil {
				logrus.Fatalf("Failed to load run config: %v", err)
			}
			events = cfg.Apply(cmd.Flags())
		}

		plan := buildPlan(events)
		if err := plan.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			logrus.Fatalf("Failed to create output directory %s: %v", outputDir, err)
		}

		var rec trials.Recorder
		var idx *index.SQLiteIndex
		if indexPath != "" {
			path := indexPath
			if !filepath.IsAbs(path) {
				path = filepath.Join(outputDir, path)
			}
			idx, err = index.OpenSQLite(path)
			if err != nil {
				logrus.Fatalf("Failed to open trial index %s: %v", path, err)
			}
			rec = idx
		}

		runner := trials.NewRunner(seed, rec)
		logrus.Infof("Starting run %s: sizes=%v, repetitions=%d, workers=%d, random_max=%d, adversary=%v",
			runner.RunID, plan.Sizes, plan.Repetitions, plan.Workers, randomMax, adversarial)
		startTime := time.Now()

		results, runErr := runner.Run(cmd.Context(), plan)
		if idx != nil {
			if err := idx.Close(); err != nil {
				logrus.Warnf("Closing trial index: %v", err)
			}
		}
		if runErr != nil {
			logrus.Fatalf("Run %s finished with failures: %v", runner.RunID, runErr)
		}
		logrus.Infof("Run %s complete: %d trials in %v", runner.RunID, len(results), time.Since(startTime))
	},
}

// buildPlan assembles the trial plan from the flag variables.
func buildPlan(events []sim.AdversaryEvent) trials.Plan {
	return trials.Plan{
		Sizes:       trials.SizesFromExponents(exp, expEnd),
		Repetitions: repetitions,
		Workers:     workers,
		Dir:         outputDir,
		Compress:    compress,
		Trial: sim.TrialConfig{
			Population: sim.NewPopulationConfig(0, randomMax),
			Schedule:   sim.NewScheduleConfig(iterations, resolution),
			Adversary:  sim.NewAdversaryConfig(adversarial, events),
		},
	}
}

// Execute runs the CLI root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().IntVar(&exp, "exp", 5, "Smallest population exponent (n = 10^exp)")
	runCmd.Flags().IntVar(&expEnd, "exp-end", 5, "Largest population exponent (n = 10^exp-end)")
	runCmd.Flags().IntVar(&repetitions, "repetitions", 8, "Number of trials per population size")
	runCmd.Flags().IntVar(&workers, "workers", 8, "Maximum number of trials running in parallel")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for all trial random streams")
	runCmd.Flags().StringVar(&outputDir, "dir", "../outputs", "Output directory for snapshot files")
	runCmd.Flags().BoolVar(&compress, "compress", false, "Write zstd-compressed snapshot files")
	runCmd.Flags().StringVar(&indexPath, "index", "trials.db", "sqlite trial index (relative to --dir); empty disables")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run file; explicitly set flags take precedence")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().IntVar(&randomMax, "random", 10, "Random starting estimates in [1, random]; <= 1 starts every agent at the default state")
	runCmd.Flags().Int64Var(&iterations, "iterations", 5000, "Total logical time per trial")
	runCmd.Flags().Int64Var(&resolution, "resolution", 1, "Logical time units per round (adversary check and snapshot)")
	runCmd.Flags().BoolVar(&adversarial, "adversary", true, "Enable the population-size adversary")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
