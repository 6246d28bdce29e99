// Package main provides CMA-ES calibration of the film tunables.
package main

import (
	"github.com/pthm-cable/puddle/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Field response
			{Name: "k_slope", Path: "solver.k_slope", Min: 0.05, Max: 3.0, Default: 0.6},
			{Name: "k_gravity", Path: "solver.k_gravity", Min: 0.1, Max: 3.0, Default: 1.0},
			{Name: "damping", Path: "solver.damping", Min: 0.8, Max: 1.0, Default: 0.98},
			// Particle response
			{Name: "friction", Path: "particles.friction", Min: 0.0, Max: 3.0, Default: 0.5},
			{Name: "smoothing", Path: "particles.smoothing", Min: 0.05, Max: 1.0, Default: 0.2},
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
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	cfg.Solver.KSlope = c[0]
	cfg.Solver.KGravity = c[1]
	cfg.Solver.Damping = c[2]
	cfg.Particles.Friction = c[3]
	cfg.Particles.Smoothing = c[4]
	cfg.Recompute()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Solver.KSlope,
		cfg.Solver.KGravity,
		cfg.Solver.Damping,
		cfg.Particles.Friction,
		cfg.Particles.Smoothing,
	}
}
