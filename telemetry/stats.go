package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats holds aggregated statistics for one completed generation.
type GenerationStats struct {
	Generation int `csv:"generation"`

	// Cooperation distribution after the update phase
	CoopMean float64 `csv:"coop_mean"`
	CoopStd  float64 `csv:"coop_std"`
	CoopMin  float64 `csv:"coop_min"`
	CoopP10  float64 `csv:"coop_p10"`
	CoopP50  float64 `csv:"coop_p50"`
	CoopP90  float64 `csv:"coop_p90"`
	CoopMax  float64 `csv:"coop_max"`

	// Payoffs accumulated during the interaction phase
	PayoffMean float64 `csv:"payoff_mean"`
	PayoffMin  float64 `csv:"payoff_min"`
	PayoffMax  float64 `csv:"payoff_max"`

	// Donation phase
	Donations int     `csv:"donations"`
	Cost      float64 `csv:"cost"`
	Benefit   float64 `csv:"benefit"`

	// Imitation phase
	Losers       int     `csv:"losers"`
	Adoptions    int     `csv:"adoptions"`
	Mutations    int     `csv:"mutations"`
	Clipped      int     `csv:"clipped"`
	Degenerate   bool    `csv:"degenerate"`
	AdoptionRate float64 `csv:"adoption_rate"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Distribution summarizes a sample.
type Distribution struct {
	Mean, Std          float64
	Min, P10, P50, P90 float64
	Max                float64
}

// ComputeDistribution calculates the population mean, std, extremes and
// percentiles of values. values is not modified.
func ComputeDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	std := 0.0
	if variance > 0 {
		std = math.Sqrt(variance)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Mean: mean,
		Std:  std,
		Min:  sorted[0],
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
		Max:  sorted[len(sorted)-1],
	}
}

// PayoffSummary returns mean, min and max of a payoff sample.
func PayoffSummary(values []float64) (mean, lo, hi float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	return stat.Mean(values, nil), floats.Min(values), floats.Max(values)
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Float64("coop_mean", s.CoopMean),
		slog.Float64("coop_std", s.CoopStd),
		slog.Float64("coop_p10", s.CoopP10),
		slog.Float64("coop_p50", s.CoopP50),
		slog.Float64("coop_p90", s.CoopP90),
		slog.Float64("payoff_mean", s.PayoffMean),
		slog.Float64("payoff_min", s.PayoffMin),
		slog.Float64("payoff_max", s.PayoffMax),
		slog.Int("donations", s.Donations),
		slog.Int("losers", s.Losers),
		slog.Int("adoptions", s.Adoptions),
		slog.Int("mutations", s.Mutations),
		slog.Int("clipped", s.Clipped),
		slog.Bool("degenerate", s.Degenerate),
	)
}

// LogStats logs the generation stats using slog.
func (s GenerationStats) LogStats() {
	slog.Info("stats",
		"generation", s.Generation,
		"coop_mean", s.CoopMean,
		"coop_std", s.CoopStd,
		"coop_p10", s.CoopP10,
		"coop_p50", s.CoopP50,
		"coop_p90", s.CoopP90,
		"payoff_min", s.PayoffMin,
		"payoff_max", s.PayoffMax,
		"adoptions", s.Adoptions,
		"mutations", s.Mutations,
		"adoption_rate", s.AdoptionRate,
		"degenerate", s.Degenerate,
	)
}
