package systems

import (
	"math/rand/v2"

	"github.com/pthm-cable/geocoop/lattice"
)

// InteractionStats summarizes one donation phase.
type InteractionStats struct {
	Donations int
	Cost      float64 // total paid by donors
	Benefit   float64 // total received by recipients
}

// InteractionSystem runs the donation-game phase of a generation.
//
// Every donation writes the payoff of two cells, so donors are visited
// serially in row-major order. Given the same RNG state the phase is
// reproducible.
type InteractionSystem struct {
	rng *rand.Rand
}

// NewInteractionSystem creates an interaction system drawing recipients from rng.
func NewInteractionSystem(rng *rand.Rand) *InteractionSystem {
	return &InteractionSystem{rng: rng}
}

// Run lets every cell donate Interactions() times to uniformly chosen
// neighbours, accumulating payoffs in place.
func (s *InteractionSystem) Run(l *lattice.Lattice) InteractionStats {
	var stats InteractionStats
	coop := l.Cooperation()
	cb := l.CostBenefit()
	rounds := l.Interactions()

	for donor := 0; donor < l.Len(); donor++ {
		nbs := l.Neighbors(donor)
		c := coop[donor]
		for k := 0; k < rounds; k++ {
			recipient := nbs[s.rng.IntN(len(nbs))]
			l.Donate(donor, recipient)
			stats.Donations++
			stats.Cost += cb * c
			stats.Benefit += c
		}
	}
	return stats
}
