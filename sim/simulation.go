// Package sim drives a cooperation lattice through successive generations of
// donation and imitation.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pthm-cable/geocoop/lattice"
	"github.com/pthm-cable/geocoop/systems"
	"github.com/pthm-cable/geocoop/telemetry"
)

// Options holds the run parameters that are not part of the lattice itself.
type Options struct {
	Seed          int64
	Generations   int
	MutationRate  float64 // in [0,1]
	MutationSigma float64 // >= 0
	Workers       int     // goroutines for the update phase (0 = 1)
}

// FrameFunc receives the cooperation matrix before a generation's
// interactions. The view is read-only and only valid during the call.
type FrameFunc func(generation int, coop lattice.View) error

// GenerationReport describes a completed generation.
type GenerationReport struct {
	Generation  int
	Interaction systems.InteractionStats
	Evolution   systems.EvolutionStats
	Lattice     *lattice.Lattice
}

// GenerationFunc observes completed generations.
type GenerationFunc func(GenerationReport)

// Simulation owns the lattice, the RNG and both phase systems.
type Simulation struct {
	lattice *lattice.Lattice
	opts    Options

	pcg *rand.PCG
	rng *rand.Rand

	interaction *systems.InteractionSystem
	evolution   *systems.EvolutionSystem

	generation int

	frames    []FrameFunc
	observers []GenerationFunc
	perf      *telemetry.PerfCollector
}

// New validates opts and wires a simulation around l. Invalid options yield
// an error wrapping lattice.ErrInvalidConfig.
func New(l *lattice.Lattice, opts Options) (*Simulation, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil lattice", lattice.ErrInvalidConfig)
	}
	if err := validate(opts); err != nil {
		return nil, err
	}
	pcg := rand.NewPCG(uint64(opts.Seed), 0)
	return newSimulation(l, opts, pcg), nil
}

func newSimulation(l *lattice.Lattice, opts Options, pcg *rand.PCG) *Simulation {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	rng := rand.New(pcg)
	return &Simulation{
		lattice:     l,
		opts:        opts,
		pcg:         pcg,
		rng:         rng,
		interaction: systems.NewInteractionSystem(rng),
		evolution: systems.NewEvolutionSystem(rng, systems.EvolutionParams{
			MutationRate:  opts.MutationRate,
			MutationSigma: opts.MutationSigma,
			Workers:       opts.Workers,
		}),
	}
}

func validate(opts Options) error {
	if !(opts.MutationRate >= 0 && opts.MutationRate <= 1) {
		return fmt.Errorf("%w: mutation rate must be in [0,1], got %v", lattice.ErrInvalidConfig, opts.MutationRate)
	}
	if !(opts.MutationSigma >= 0) || math.IsInf(opts.MutationSigma, 0) {
		return fmt.Errorf("%w: mutation spread must be >= 0, got %v", lattice.ErrInvalidConfig, opts.MutationSigma)
	}
	if opts.Generations < 0 {
		return fmt.Errorf("%w: generation count must be >= 0, got %d", lattice.ErrInvalidConfig, opts.Generations)
	}
	if opts.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", lattice.ErrInvalidConfig, opts.Workers)
	}
	return nil
}

// OnFrame registers a collaborator invoked with the pre-interaction state of
// every generation. Collaborators run in registration order.
func (s *Simulation) OnFrame(f FrameFunc) {
	s.frames = append(s.frames, f)
}

// OnGeneration registers an observer invoked after every completed generation.
func (s *Simulation) OnGeneration(f GenerationFunc) {
	s.observers = append(s.observers, f)
}

// SetPerfCollector enables per-phase timing.
func (s *Simulation) SetPerfCollector(p *telemetry.PerfCollector) {
	s.perf = p
}

// Lattice returns the simulated lattice.
func (s *Simulation) Lattice() *lattice.Lattice { return s.lattice }

// Generation returns the index of the next generation to run.
func (s *Simulation) Generation() int { return s.generation }

// Options returns the effective options.
func (s *Simulation) Options() Options { return s.opts }

// Step runs one interaction phase and one evolution phase without invoking
// frame collaborators.
func (s *Simulation) Step() GenerationReport {
	s.startPhase(telemetry.PhaseInteraction)
	in := s.interaction.Run(s.lattice)

	s.startPhase(telemetry.PhaseEvolution)
	ev := s.evolution.Run(s.lattice)

	report := GenerationReport{
		Generation:  s.generation,
		Interaction: in,
		Evolution:   ev,
		Lattice:     s.lattice,
	}
	s.generation++

	s.startPhase(telemetry.PhaseTelemetry)
	for _, obs := range s.observers {
		obs(report)
	}
	return report
}

// Run advances the simulation by the given number of generations. For each
// one the frame collaborators see the current state first, then the
// interaction and evolution phases run. The state after the final update is
// not framed. A frame error aborts the run and is returned; a cancelled
// context stops it between generations.
func (s *Simulation) Run(ctx context.Context, generations int) error {
	for k := 0; k < generations; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.perf != nil {
			s.perf.StartGeneration()
		}
		s.startPhase(telemetry.PhaseFrame)
		view := s.lattice.View()
		for _, frame := range s.frames {
			if err := frame(s.generation, view); err != nil {
				if s.perf != nil {
					s.perf.AbortGeneration()
				}
				return fmt.Errorf("frame generation %d: %w", s.generation, err)
			}
		}

		s.Step()
		if s.perf != nil {
			s.perf.EndGeneration()
		}
	}
	return nil
}

// RunConfigured runs the remaining generations of Options.Generations.
func (s *Simulation) RunConfigured(ctx context.Context) error {
	remaining := s.opts.Generations - s.generation
	if remaining <= 0 {
		return nil
	}
	return s.Run(ctx, remaining)
}

func (s *Simulation) startPhase(phase string) {
	if s.perf != nil {
		s.perf.StartPhase(phase)
	}
}
