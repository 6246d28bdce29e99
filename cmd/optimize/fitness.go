package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/config"
	"github.com/pthm-cable/puddle/orientation"
	"github.com/pthm-cable/puddle/sim"
)

// Targets describes the film behavior the calibration aims for.
type Targets struct {
	TiltRad    float32 // tilt applied in the drift run
	DriftSpeed float64 // desired centroid speed while tilted, domain units/s
	RunSec     float64 // seconds simulated per run
}

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	targets    Targets
	seeds      []int64
	baseConfig *config.Config

	mu          sync.Mutex
	lastMetrics runMetrics
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, targets Targets, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		targets:    targets,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// runMetrics summarizes one tilted run and one level run.
type runMetrics struct {
	Drift      float64 // centroid x speed over the middle of the tilted run
	LevelSpeed float64 // mean particle speed at the end of the level run
	WallFrac   float64 // fraction of particles on the domain edge after the tilted run
}

// LastMetrics returns the seed-averaged metrics of the most recent evaluation.
func (fe *FitnessEvaluator) LastMetrics() runMetrics {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMetrics
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runMetrics, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSeed(x, s)
		}(i, seed)
	}
	wg.Wait()

	var avg runMetrics
	for _, r := range results {
		avg.Drift += r.Drift
		avg.LevelSpeed += r.LevelSpeed
		avg.WallFrac += r.WallFrac
	}
	n := float64(len(results))
	avg.Drift /= n
	avg.LevelSpeed /= n
	avg.WallFrac /= n

	fe.mu.Lock()
	fe.lastMetrics = avg
	fe.mu.Unlock()

	return fe.computeFitness(avg)
}

// computeFitness penalizes missing the drift target, a level film that
// keeps moving, and film crushed against the walls.
func (fe *FitnessEvaluator) computeFitness(m runMetrics) float64 {
	target := fe.targets.DriftSpeed
	if target <= 0 {
		target = 0.1
	}
	driftErr := (m.Drift - target) / target
	rest := m.LevelSpeed / target
	return driftErr*driftErr + 0.5*rest*rest + 0.25*m.WallFrac*m.WallFrac
}

// newConfig copies the base config and applies x.
func (fe *FitnessEvaluator) newConfig(x []float64) *config.Config {
	cfg := *fe.baseConfig
	cfg.Orientation.Mode = config.OrientationManual
	cfg.Solver.Backend = config.BackendCPU
	cfg.Stream.Addr = ""
	fe.params.ApplyToConfig(&cfg, fe.params.Clamp(x))
	return &cfg
}

func (fe *FitnessEvaluator) runSeed(x []float64, seed int64) runMetrics {
	var m runMetrics
	dt := fe.baseConfig.Derived.DT32
	ticks := int(fe.targets.RunSec / float64(dt))
	if ticks < 4 {
		ticks = 4
	}

	// Tilted run: tilt about y drives the film toward +x.
	s := sim.New(sim.Options{Seed: seed})
	if err := s.Init(fe.newConfig(x)); err != nil {
		return runMetrics{Drift: math.Inf(1), LevelSpeed: math.Inf(1), WallFrac: 1}
	}
	if manual, ok := s.Provider().(*orientation.Manual); ok {
		manual.SetTilt(0, fe.targets.TiltRad)
	}
	var positions []components.Position
	var x0, t0 float64
	for i := 0; i < ticks; i++ {
		s.Step(dt)
		if i == ticks/4 {
			positions = s.Particles(positions)
			x0, t0 = centroidX(positions), s.Time()
		}
	}
	positions = s.Particles(positions)
	if span := s.Time() - t0; span > 0 {
		m.Drift = (centroidX(positions) - x0) / span
	}
	m.WallFrac = wallFraction(positions)
	s.Teardown()

	// Level run: the film should come to rest.
	s = sim.New(sim.Options{Seed: seed})
	if err := s.Init(fe.newConfig(x)); err != nil {
		return runMetrics{Drift: m.Drift, LevelSpeed: math.Inf(1), WallFrac: m.WallFrac}
	}
	for i := 0; i < ticks; i++ {
		s.Step(dt)
	}
	speeds := s.ParticleSpeeds(nil)
	for _, v := range speeds {
		m.LevelSpeed += v
	}
	if len(speeds) > 0 {
		m.LevelSpeed /= float64(len(speeds))
	}
	s.Teardown()
	return m
}

func centroidX(ps []components.Position) float64 {
	if len(ps) == 0 {
		return 0
	}
	var sum float64
	for _, p := range ps {
		sum += float64(p.X)
	}
	return sum / float64(len(ps))
}

// wallFraction counts particles clamped to the domain boundary.
func wallFraction(ps []components.Position) float64 {
	if len(ps) == 0 {
		return 0
	}
	const edge = 0.499
	n := 0
	for _, p := range ps {
		if p.X <= -edge || p.X >= edge || p.Y <= -edge || p.Y >= edge {
			n++
		}
	}
	return float64(n) / float64(len(ps))
}
