package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/geocoop/config"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "geocoop",
		Short: "Spatial donation game on a cooperation lattice",
		Long: `geocoop simulates the evolution of cooperation on a 2D lattice.

Each generation every cell donates to random neighbours, then imitates a
better-off neighbour with a probability proportional to the payoff gap.
Frames, per-generation CSV telemetry and a trajectory chart are written
to the output directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("log-format")
			return setupLogging(format)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (empty = use defaults)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or text")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newTuneCmd(),
	)
	return rootCmd
}

// setupLogging installs the default slog logger on stdout.
func setupLogging(format string) error {
	var handler slog.Handler
	switch format {
	case "json", "":
		handler = slog.NewJSONHandler(os.Stdout, nil)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, nil)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads --config and applies the shared overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if err := config.Init(path); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Cfg()

	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("generations") {
		cfg.Evolution.Generations, _ = cmd.Flags().GetInt("generations")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Evolution.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.Output.Dir, _ = cmd.Flags().GetString("output-dir")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSeed replaces a zero seed with a time-based one.
func resolveSeed(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

// addRunFlags registers the overrides shared by run and sweep.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("seed", 0, "RNG seed (0 = time-based)")
	cmd.Flags().Int("generations", 0, "Generations to run (overrides config)")
	cmd.Flags().Int("workers", 0, "Goroutines for the update phase (overrides config)")
	cmd.Flags().String("output-dir", "", "Output directory for frames, CSV logs and snapshot")
}
