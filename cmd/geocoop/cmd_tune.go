package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/geocoop/config"
	"github.com/pthm-cable/geocoop/sim"
)

// TuneEval is one row of tune_log.csv.
type TuneEval struct {
	Eval          int     `csv:"eval"`
	Fitness       float64 `csv:"fitness"`
	CostBenefit   float64 `csv:"cost_benefit"`
	MutationRate  float64 `csv:"mutation_rate"`
	MutationSigma float64 `csv:"mutation_sigma"`
	FinalMean     float64 `csv:"final_coop_mean"`
}

// FitnessEvaluator runs simulations and scores how far their final mean
// cooperation lands from a target.
type FitnessEvaluator struct {
	params *ParamVector
	base   *config.Config
	seeds  []int64
	target float64
	ctx    context.Context

	mu       sync.Mutex
	lastMean float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(ctx context.Context, params *ParamVector, base *config.Config, seeds []int64, target float64) *FitnessEvaluator {
	return &FitnessEvaluator{params: params, base: base, seeds: seeds, target: target, ctx: ctx}
}

// Evaluate returns the mean absolute distance from target over all seeds.
// Failed or cancelled runs score +Inf.
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	cfg := *fe.base
	fe.params.ApplyToConfig(&cfg, raw)

	var sum float64
	for _, seed := range fe.seeds {
		s, err := sim.FromConfig(&cfg, seed)
		if err != nil {
			return math.Inf(1)
		}
		if err := s.RunConfigured(fe.ctx); err != nil {
			return math.Inf(1)
		}
		sum += stat.Mean(s.Lattice().Cooperation(), nil)
	}
	mean := sum / float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastMean = mean
	fe.mu.Unlock()
	return math.Abs(mean - fe.target)
}

// LastMean returns the final mean cooperation of the most recent evaluation.
func (fe *FitnessEvaluator) LastMean() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMean
}

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Search parameters that reach a target mean cooperation",
		Long: `Search cost-benefit and mutation parameters with CMA-ES so that the final
mean cooperation of the configured run lands as close as possible to
--target. Every evaluation is logged to tune_log.csv and the best
parameters are written to best_config.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Output.Dir == "" {
				return fmt.Errorf("tune requires an output directory (--output-dir)")
			}
			target, _ := cmd.Flags().GetFloat64("target")
			maxEvals, _ := cmd.Flags().GetInt("max-evals")
			seeds, _ := cmd.Flags().GetInt("seeds")
			population, _ := cmd.Flags().GetInt("population")
			if !(target >= 0 && target <= 1) {
				return fmt.Errorf("target must be in [0,1], got %v", target)
			}
			if seeds < 1 || maxEvals < 1 {
				return fmt.Errorf("seeds and max-evals must be >= 1")
			}

			ctx, cancel := signalContext()
			defer cancel()
			return runTune(ctx, cfg, target, maxEvals, seeds, population)
		},
	}
	addRunFlags(cmd)
	cmd.Flags().Float64("target", 0.5, "Target final mean cooperation")
	cmd.Flags().Int("max-evals", 100, "Maximum fitness evaluations")
	cmd.Flags().Int("seeds", 3, "Seeds per evaluation")
	cmd.Flags().Int("population", 0, "CMA-ES population size (0 = auto)")
	return cmd
}

func runTune(ctx context.Context, cfg *config.Config, target float64, maxEvals, numSeeds, population int) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	logFile, err := os.Create(filepath.Join(cfg.Output.Dir, "tune_log.csv"))
	if err != nil {
		return fmt.Errorf("creating tune log: %w", err)
	}
	defer logFile.Close()

	params := NewParamVector(cfg)
	seeds := make([]int64, numSeeds)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(ctx, params, cfg, seeds, target)

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	start := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Denormalize(x)
			fitness := evaluator.Evaluate(raw)
			evalCount++
			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = raw
			}

			row := []TuneEval{{
				Eval:          evalCount,
				Fitness:       fitness,
				CostBenefit:   raw[0],
				MutationRate:  raw[1],
				MutationSigma: raw[2],
				FinalMean:     evaluator.LastMean(),
			}}
			write := gocsv.MarshalWithoutHeaders
			if evalCount == 1 {
				write = gocsv.Marshal
			}
			if err := write(row, logFile); err != nil {
				slog.Error("failed to write tune log", "error", err)
			}

			slog.Info("tune eval",
				"eval", evalCount,
				"max_evals", maxEvals,
				"fitness", fitness,
				"best", bestFitness,
				"cost_benefit", raw[0],
				"elapsed", time.Since(start).Round(time.Second).String(),
			)
			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Concurrent:      0,
	}
	if population == 0 {
		population = 4 + int(3.0*math.Log(float64(params.Dim())))
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   population,
	}

	slog.Info("starting CMA-ES", "params", params.Dim(), "population", population,
		"max_evals", maxEvals, "seeds", numSeeds, "target", target)
	result, err := optimize.Minimize(problem, params.Normalize(params.DefaultVector()), settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if bestParams == nil {
		if result == nil {
			return fmt.Errorf("optimization produced no evaluations: %w", err)
		}
		bestParams = params.Denormalize(result.X)
	}

	best := *cfg
	params.ApplyToConfig(&best, bestParams)
	path := filepath.Join(cfg.Output.Dir, "best_config.yaml")
	if err := best.WriteYAML(path); err != nil {
		return fmt.Errorf("failed to write best config: %w", err)
	}

	attrs := []any{"evals", evalCount, "fitness", bestFitness, "path", path}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, bestParams[i])
	}
	slog.Info("tuning complete", attrs...)
	return nil
}
