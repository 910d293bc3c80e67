package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/geocoop/config"
	"github.com/pthm-cable/geocoop/renderer"
	"github.com/pthm-cable/geocoop/sim"
	"github.com/pthm-cable/geocoop/telemetry"
)

const snapshotName = "snapshot.json"

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation",
		Long: `Run one simulation with the configured lattice and evolution parameters.

With --resume the run continues from a snapshot written by a previous run,
reproducing the uninterrupted trajectory exactly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			resume, _ := cmd.Flags().GetString("resume")
			quiet, _ := cmd.Flags().GetBool("quiet")

			ctx, cancel := signalContext()
			defer cancel()
			return runSimulation(ctx, cfg, resume, !quiet)
		},
	}
	addRunFlags(cmd)
	cmd.Flags().String("resume", "", "Resume from a snapshot file")
	cmd.Flags().Bool("quiet", false, "Suppress periodic stats logging")
	return cmd
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Warn("signal received, stopping after current generation", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newSimulation(cfg *config.Config, resume string) (*sim.Simulation, error) {
	if resume == "" {
		cfg.Seed = resolveSeed(cfg.Seed)
		return sim.FromConfig(cfg, cfg.Seed)
	}

	snap, err := telemetry.LoadSnapshot(resume)
	if err != nil {
		return nil, err
	}
	s, err := sim.Restore(snap, sim.OptionsFromConfig(cfg, snap.Seed))
	if err != nil {
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}
	cfg.Seed = snap.Seed
	cfg.Lattice.Height, cfg.Lattice.Width = snap.Height, snap.Width
	cfg.Lattice.CostBenefit = snap.CostBenefit
	cfg.Lattice.Interactions = snap.Interactions
	cfg.Evolution.MutationRate = snap.MutationRate
	cfg.Evolution.MutationSigma = snap.MutationSigma
	slog.Info("resumed from snapshot", "path", resume, "generation", snap.Generation)
	return s, nil
}

func runSimulation(ctx context.Context, cfg *config.Config, resume string, logStats bool) error {
	s, err := newSimulation(cfg, resume)
	if err != nil {
		return err
	}

	var (
		om   *telemetry.OutputManager
		hist telemetry.History
	)
	if resume == "" {
		om, err = telemetry.NewOutputManager(cfg.Output.Dir)
	} else {
		om, hist, err = telemetry.ResumeOutputManager(cfg.Output.Dir, s.Generation())
	}
	if err != nil {
		return fmt.Errorf("failed to create output manager: %w", err)
	}
	defer func() {
		if err := om.Close(); err != nil {
			slog.Error("failed to close output files", "error", err)
		}
	}()
	if err := om.WriteConfig(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	tc := cfg.Telemetry
	detector := telemetry.NewMilestoneDetector(telemetry.MilestoneThresholds{
		History:            tc.MilestoneHistory,
		EquilibriumWindows: tc.EquilibriumWindows,
		EquilibriumCV:      tc.EquilibriumCV,
		CollapseThreshold:  tc.CollapseThreshold,
		TakeoverThreshold:  tc.TakeoverThreshold,
	})
	recorder := sim.NewRecorder(telemetry.NewCollector(tc.LogEvery), detector, om,
		telemetry.NewPerfCollector(tc.PerfWindow), logStats)
	recorder.Attach(s)
	if resume != "" {
		if n := len(hist.Generations); n > 0 && n != s.Generation() {
			slog.Warn("output history does not cover every earlier generation",
				"rows", n, "generation", s.Generation())
		}
		recorder.Resume(hist.Generations)
	}

	var frames *renderer.FrameWriter
	if cfg.Output.Frames && om != nil {
		palette, err := renderer.PaletteByName(cfg.Output.Palette)
		if err != nil {
			return err
		}
		frames, err = renderer.NewFrameWriter(om.Path("frames"), cfg.Output.FrameEvery, cfg.Output.PixelSize, palette)
		if err != nil {
			return err
		}
		s.OnFrame(frames.Frame)
	}

	l := s.Lattice()
	slog.Info("starting simulation",
		"seed", cfg.Seed,
		"height", l.Height(),
		"width", l.Width(),
		"cost_benefit", l.CostBenefit(),
		"interactions", l.Interactions(),
		"generations", cfg.Evolution.Generations,
		"start_generation", s.Generation(),
		"mutation_rate", cfg.Evolution.MutationRate,
		"mutation_sigma", cfg.Evolution.MutationSigma,
		"output_dir", om.Dir(),
	)

	start := time.Now()
	runErr := s.RunConfigured(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	last := recorder.Last()
	slog.Info("simulation finished",
		"generation", s.Generation(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
		"coop_mean", last.CoopMean,
		"coop_std", last.CoopStd,
		"milestones", len(recorder.Milestones()),
		"interrupted", runErr != nil,
	)
	if frames != nil {
		slog.Info("frames written", "dir", frames.Dir(), "count", frames.Written())
	}

	if om != nil && cfg.Output.Chart {
		gens, means := recorder.Trajectory()
		title := fmt.Sprintf("cb=%g mr=%g", l.CostBenefit(), cfg.Evolution.MutationRate)
		switch err := renderer.WriteTrajectoryChart(om.Path("chart.png"), gens, means, title); {
		case errors.Is(err, renderer.ErrTooFewPoints):
			slog.Warn("skipping chart", "reason", err)
		case err != nil:
			slog.Error("failed to write chart", "error", err)
		}
	}

	if om != nil && cfg.Output.Snapshot {
		snap, err := s.Snapshot()
		if err != nil {
			return err
		}
		path, err := telemetry.SaveSnapshot(snap, om.Dir(), snapshotName)
		if err != nil {
			return err
		}
		slog.Info("snapshot saved", "path", path, "generation", snap.Generation)
	}

	return runErr
}
