package systems

import (
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/geocoop/lattice"
)

// EvolutionParams controls the imitation phase.
type EvolutionParams struct {
	MutationRate  float64 // probability an adoption is perturbed, in [0,1]
	MutationSigma float64 // standard deviation of the perturbation
	Workers       int     // goroutines used across rows (<=1 = serial)
}

// EvolutionStats summarizes one imitation phase.
type EvolutionStats struct {
	Losers     int // cells whose partner had a strictly higher payoff
	Adoptions  int
	Mutations  int
	Clipped    int
	Degenerate bool // payoff range was zero, so nobody adopted
	PayoffMin  float64
	PayoffMax  float64
}

// EvolutionSystem runs the strategy-update phase of a generation.
//
// Decisions read from the cooperation and payoff matrices as they stood
// when the phase began and are written into a separate buffer that is only
// committed once every cell has been visited. Each row draws from its own
// PCG stream keyed by a per-phase seed, so the outcome does not depend on
// Workers.
type EvolutionSystem struct {
	params EvolutionParams
	rng    *rand.Rand
}

// NewEvolutionSystem creates an evolution system. rng supplies one phase seed
// per generation.
func NewEvolutionSystem(rng *rand.Rand, params EvolutionParams) *EvolutionSystem {
	return &EvolutionSystem{params: params, rng: rng}
}

// Params returns the configured parameters.
func (s *EvolutionSystem) Params() EvolutionParams { return s.params }

// rowStats is accumulated per row so rows can run concurrently.
type rowStats struct {
	losers, adoptions, mutations int
}

// Run computes next generation's cooperation levels, commits them (clipped to
// [0,1]) and zeroes every payoff.
func (s *EvolutionSystem) Run(l *lattice.Lattice) EvolutionStats {
	lo, hi := l.PayoffRange()
	span := hi - lo
	stats := EvolutionStats{
		PayoffMin:  lo,
		PayoffMax:  hi,
		Degenerate: !(span > 0) || math.IsInf(span, 0),
	}

	seed := s.rng.Uint64()
	next := l.NextBuffer()
	rows := make([]rowStats, l.Height())

	if s.params.Workers <= 1 {
		for r := range rows {
			rows[r] = s.updateRow(l, next, r, span, seed)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.params.Workers)
		for r := range rows {
			g.Go(func() error {
				rows[r] = s.updateRow(l, next, r, span, seed)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, rs := range rows {
		stats.Losers += rs.losers
		stats.Adoptions += rs.adoptions
		stats.Mutations += rs.mutations
	}
	stats.Clipped = l.Commit(next)
	return stats
}

// updateRow processes one lattice row. It reads only the live (snapshot)
// buffers and writes only its own row of next.
func (s *EvolutionSystem) updateRow(l *lattice.Lattice, next []float64, row int, span float64, seed uint64) rowStats {
	var rs rowStats
	rng := rand.New(rand.NewPCG(seed, uint64(row)))
	coop := l.Cooperation()
	payoff := l.Payoffs()
	mutation := distuv.Normal{Sigma: s.params.MutationSigma, Src: rng}

	w := l.Width()
	for i := row * w; i < (row+1)*w; i++ {
		nbs := l.Neighbors(i)
		j := nbs[rng.IntN(len(nbs))]

		pi, pj := payoff[i], payoff[j]
		if pi >= pj {
			continue
		}
		rs.losers++

		prob := AdoptionProbability(pi, pj, span)
		if rng.Float64() >= prob {
			continue
		}

		rs.adoptions++
		if rng.Float64() >= s.params.MutationRate {
			next[i] = coop[j]
			continue
		}
		mutation.Mu = coop[j]
		next[i] = mutation.Rand()
		rs.mutations++
	}
	return rs
}

// AdoptionProbability returns the chance that a cell with payoff pi imitates
// a partner with payoff pj, given the lattice-wide payoff span (max - min).
// It is zero when pi >= pj and, by policy, when the span is not a positive
// finite number.
func AdoptionProbability(pi, pj, span float64) float64 {
	if pi >= pj {
		return 0
	}
	if !(span > 0) || math.IsInf(span, 0) {
		return 0
	}
	p := (pj - pi) / span
	if p > 1 {
		return 1
	}
	return p
}
