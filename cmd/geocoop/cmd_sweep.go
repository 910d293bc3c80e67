package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/geocoop/config"
	"github.com/pthm-cable/geocoop/sim"
)

// SweepResult is one row of sweep.csv.
type SweepResult struct {
	CostBenefit  float64 `csv:"cost_benefit"`
	Seed         int64   `csv:"seed"`
	Generations  int     `csv:"generations"`
	InitialMean  float64 `csv:"initial_coop_mean"`
	FinalMean    float64 `csv:"final_coop_mean"`
	FinalStd     float64 `csv:"final_coop_std"`
	MutationRate float64 `csv:"mutation_rate"`
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one simulation per cost-benefit value",
		Long: `Run the configured simulation once for every --cb value, all from the
same seed, and write the initial and final mean cooperation of each run to
sweep.csv in the output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cbs, _ := cmd.Flags().GetFloat64Slice("cb")
			parallel, _ := cmd.Flags().GetInt("parallel")
			if len(cbs) == 0 {
				return fmt.Errorf("at least one --cb value is required")
			}
			if cfg.Output.Dir == "" {
				return fmt.Errorf("sweep requires an output directory (--output-dir)")
			}

			ctx, cancel := signalContext()
			defer cancel()

			results, err := runSweep(ctx, cfg, cbs, parallel)
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Output.Dir, "sweep.csv")
			if err := writeSweep(path, results); err != nil {
				return err
			}
			slog.Info("sweep finished", "runs", len(results), "path", path)
			return nil
		},
	}
	addRunFlags(cmd)
	cmd.Flags().Float64Slice("cb", nil, "Cost-benefit values to sweep (comma separated)")
	cmd.Flags().Int("parallel", runtime.NumCPU(), "Simulations to run concurrently")
	return cmd
}

// runSweep runs one simulation per cost-benefit value. Results are ordered
// by cost-benefit.
func runSweep(ctx context.Context, base *config.Config, cbs []float64, parallel int) ([]SweepResult, error) {
	seed := resolveSeed(base.Seed)
	results := make([]SweepResult, len(cbs))

	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, cb := range cbs {
		g.Go(func() error {
			cfg := *base
			cfg.Lattice.CostBenefit = cb
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("cb %g: %w", cb, err)
			}

			s, err := sim.FromConfig(&cfg, seed)
			if err != nil {
				return fmt.Errorf("cb %g: %w", cb, err)
			}
			initial := stat.Mean(s.Lattice().Cooperation(), nil)
			if err := s.RunConfigured(ctx); err != nil {
				return fmt.Errorf("cb %g: %w", cb, err)
			}
			mean, variance := stat.PopMeanVariance(s.Lattice().Cooperation(), nil)

			results[i] = SweepResult{
				CostBenefit:  cb,
				Seed:         seed,
				Generations:  s.Generation(),
				InitialMean:  initial,
				FinalMean:    mean,
				FinalStd:     math.Sqrt(variance),
				MutationRate: cfg.Evolution.MutationRate,
			}
			slog.Info("sweep run finished",
				"cost_benefit", cb,
				"initial_coop_mean", initial,
				"final_coop_mean", mean,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].CostBenefit < results[b].CostBenefit
	})
	return results, nil
}

func writeSweep(path string, results []SweepResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating sweep.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&results, f); err != nil {
		return fmt.Errorf("writing sweep.csv: %w", err)
	}
	return nil
}
