package telemetry

import "github.com/pthm-cable/geocoop/systems"

// Collector turns per-phase results into GenerationStats and keeps the
// mean-cooperation trajectory of the run.
type Collector struct {
	logEvery int

	generations []float64
	means       []float64
}

// NewCollector creates a new stats collector.
// logEvery: log stats every N generations (<1 disables periodic logging)
func NewCollector(logEvery int) *Collector {
	return &Collector{logEvery: logEvery}
}

// Collect builds the stats for a completed generation. coop is the committed
// cooperation matrix; in and ev are the phase results that produced it.
func (c *Collector) Collect(generation int, coop []float64, in systems.InteractionStats, ev systems.EvolutionStats) GenerationStats {
	dist := ComputeDistribution(coop)

	var payoffMean float64
	if n := len(coop); n > 0 {
		payoffMean = (in.Benefit - in.Cost) / float64(n)
	}

	var adoptionRate float64
	if ev.Losers > 0 {
		adoptionRate = float64(ev.Adoptions) / float64(ev.Losers)
	}

	stats := GenerationStats{
		Generation: generation,

		CoopMean: dist.Mean,
		CoopStd:  dist.Std,
		CoopMin:  dist.Min,
		CoopP10:  dist.P10,
		CoopP50:  dist.P50,
		CoopP90:  dist.P90,
		CoopMax:  dist.Max,

		PayoffMean: payoffMean,
		PayoffMin:  ev.PayoffMin,
		PayoffMax:  ev.PayoffMax,

		Donations: in.Donations,
		Cost:      in.Cost,
		Benefit:   in.Benefit,

		Losers:       ev.Losers,
		Adoptions:    ev.Adoptions,
		Mutations:    ev.Mutations,
		Clipped:      ev.Clipped,
		Degenerate:   ev.Degenerate,
		AdoptionRate: adoptionRate,
	}

	c.generations = append(c.generations, float64(generation))
	c.means = append(c.means, dist.Mean)
	return stats
}

// ShouldLog reports whether the given generation falls on the log interval.
func (c *Collector) ShouldLog(generation int) bool {
	return c.logEvery > 0 && generation%c.logEvery == 0
}

// Trajectory returns the generation indices and mean cooperation recorded so far.
func (c *Collector) Trajectory() (generations, means []float64) {
	return c.generations, c.means
}

// Restore prepends the trajectory of generations recorded by an earlier run.
func (c *Collector) Restore(history []GenerationStats) {
	gens := make([]float64, 0, len(history)+len(c.generations))
	means := make([]float64, 0, len(history)+len(c.means))
	for _, st := range history {
		gens = append(gens, float64(st.Generation))
		means = append(means, st.CoopMean)
	}
	c.generations = append(gens, c.generations...)
	c.means = append(means, c.means...)
}
