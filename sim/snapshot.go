package sim

import (
	"fmt"
	"math/rand/v2"

	"github.com/pthm-cable/geocoop/lattice"
	"github.com/pthm-cable/geocoop/telemetry"
)

// Snapshot captures the state between generations. Restoring it and running
// the remaining generations reproduces an uninterrupted run exactly.
func (s *Simulation) Snapshot() (*telemetry.Snapshot, error) {
	state, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal rng: %w", err)
	}
	return &telemetry.Snapshot{
		Version:       telemetry.SnapshotVersion,
		Seed:          s.opts.Seed,
		Generation:    s.generation,
		Height:        s.lattice.Height(),
		Width:         s.lattice.Width(),
		CostBenefit:   s.lattice.CostBenefit(),
		Interactions:  s.lattice.Interactions(),
		MutationRate:  s.opts.MutationRate,
		MutationSigma: s.opts.MutationSigma,
		Cooperation:   s.lattice.Rows(),
		RNGState:      state,
	}, nil
}

// Restore rebuilds a simulation from a snapshot. Options not stored in the
// snapshot (Generations and Workers) come from opts; worker count does not
// affect the trajectory.
func Restore(snap *telemetry.Snapshot, opts Options) (*Simulation, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", lattice.ErrInvalidConfig)
	}
	if len(snap.Cooperation) != snap.Height {
		return nil, fmt.Errorf("%w: snapshot has %d rows, header says %d",
			lattice.ErrInvalidConfig, len(snap.Cooperation), snap.Height)
	}
	l, err := lattice.FromRows(snap.Cooperation, snap.CostBenefit, snap.Interactions)
	if err != nil {
		return nil, err
	}
	if l.Width() != snap.Width {
		return nil, fmt.Errorf("%w: snapshot width %d, header says %d",
			lattice.ErrInvalidConfig, l.Width(), snap.Width)
	}

	opts.Seed = snap.Seed
	opts.MutationRate = snap.MutationRate
	opts.MutationSigma = snap.MutationSigma
	if err := validate(opts); err != nil {
		return nil, err
	}

	pcg := rand.NewPCG(0, 0)
	if err := pcg.UnmarshalBinary(snap.RNGState); err != nil {
		return nil, fmt.Errorf("unmarshal rng: %w", err)
	}
	s := newSimulation(l, opts, pcg)
	s.generation = snap.Generation
	return s, nil
}
