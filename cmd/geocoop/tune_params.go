package main

import "github.com/pthm-cable/geocoop/config"

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns the parameters the tuner searches over, with
// defaults taken from cfg.
func NewParamVector(cfg *config.Config) *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "cost_benefit", Path: "lattice.cost_benefit", Min: 0.001, Max: 1.0, Default: cfg.Lattice.CostBenefit},
			{Name: "mutation_rate", Path: "evolution.mutation_rate", Min: 0, Max: 1, Default: cfg.Evolution.MutationRate},
			{Name: "mutation_sigma", Path: "evolution.mutation_sigma", Min: 0, Max: 0.5, Default: cfg.Evolution.MutationSigma},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return out
}

// Denormalize converts [0,1] values back to raw parameter values, clamped to bounds.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v := spec.Min + normalized[i]*(spec.Max-spec.Min)
		if v < spec.Min {
			v = spec.Min
		}
		if v > spec.Max {
			v = spec.Max
		}
		raw[i] = v
	}
	return raw
}

// ApplyToConfig writes values into cfg. Order matches Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	cfg.Lattice.CostBenefit = values[0]
	cfg.Evolution.MutationRate = values[1]
	cfg.Evolution.MutationSigma = values[2]
}
