package sim

import (
	"fmt"
	"math/rand/v2"

	"github.com/pthm-cable/geocoop/config"
	"github.com/pthm-cable/geocoop/lattice"
)

// initStream is the PCG stream used for initial sampling, kept apart from
// the stream that drives the generations.
const initStream = 1

// NewLattice builds the starting lattice described by cfg.
func NewLattice(cfg *config.Config, seed int64) (*lattice.Lattice, error) {
	h, w := cfg.Lattice.Height, cfg.Lattice.Width
	src := rand.NewPCG(uint64(seed), initStream)

	var (
		coop []float64
		err  error
	)
	switch cfg.Initial.Mode {
	case config.InitBeta:
		coop, err = lattice.SampleBeta(h, w, cfg.Initial.Alpha, cfg.Initial.Beta, src)
	case config.InitUniform:
		coop, err = lattice.SampleUniform(h, w, src)
	case config.InitConstant:
		coop, err = lattice.Constant(h, w, cfg.Initial.Value)
	case config.InitNoise:
		coop, err = lattice.SampleNoise(h, w, cfg.Initial.NoiseScale, seed)
	case config.InitPerlin:
		coop, err = lattice.SamplePerlin(h, w, cfg.Initial.NoiseScale, seed)
	case config.InitImage:
		coop, err = lattice.FromImage(cfg.Initial.ImagePath, h, w)
	default:
		return nil, fmt.Errorf("%w: unknown initial mode %q", lattice.ErrInvalidConfig, cfg.Initial.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("initial cooperation: %w", err)
	}
	return lattice.New(h, w, cfg.Lattice.CostBenefit, cfg.Lattice.Interactions, coop)
}

// OptionsFromConfig maps the evolution section onto Options.
func OptionsFromConfig(cfg *config.Config, seed int64) Options {
	return Options{
		Seed:          seed,
		Generations:   cfg.Evolution.Generations,
		MutationRate:  cfg.Evolution.MutationRate,
		MutationSigma: cfg.Evolution.MutationSigma,
		Workers:       cfg.Evolution.Workers,
	}
}

// FromConfig builds the lattice and the simulation in one call.
func FromConfig(cfg *config.Config, seed int64) (*Simulation, error) {
	l, err := NewLattice(cfg, seed)
	if err != nil {
		return nil, err
	}
	return New(l, OptionsFromConfig(cfg, seed))
}
