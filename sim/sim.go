// Package sim wires the film pipeline into a single Simulation object with
// an explicit lifecycle: Init builds every resource, Step advances one tick,
// Teardown releases what Init acquired.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/config"
	"github.com/pthm-cable/puddle/orientation"
	"github.com/pthm-cable/puddle/systems"
	"github.com/pthm-cable/puddle/telemetry"
)

// SolverFactory builds a device-backed solver. It is how the GPU backend,
// which needs a graphics context, is injected from outside the core.
type SolverFactory func(cfg *config.Config, rim *systems.RimMask) (systems.FieldSolver, error)

// RimLoader reads a rim mask image into a res×res mask scaled by maxHeight.
type RimLoader func(path string, res int, maxHeight float32) (*systems.RimMask, error)

// Options holds configuration for creating a Simulation.
type Options struct {
	Seed          int64 // 0 = particles.seed from config
	SolverFactory SolverFactory
	RimLoader     RimLoader
	Attitude      orientation.AttitudeSource // overrides orientation.replay_path
	Input         orientation.ManualInput
	OutputDir     string // CSV logs and config snapshot; empty disables
	LogStats      bool
	StreamAddr    string // overrides stream.addr
}

// ErrNoRimLoader is returned when a rim image is configured but no loader was supplied.
var ErrNoRimLoader = errors.New("rim image configured without a loader")

// Simulation owns every stage of the pipeline.
type Simulation struct {
	opts Options
	cfg  *config.Config
	seed int64

	rim        *systems.RimMask
	solver     systems.FieldSolver
	backend    string // backend actually serving solves
	sampler    *systems.FieldSampler
	store      *systems.ParticleStore
	integrator *systems.ParticleIntegrator
	provider   orientation.Provider

	// Scratch buffers reused every tick
	positions []components.Position
	speeds    []float64
	xs, ys    []float64

	tick    int32
	simTime float64
	gravity mgl32.Vec3

	perf          *telemetry.PerfCollector
	collector     *telemetry.Collector
	output        *telemetry.OutputManager
	streamer      *telemetry.Streamer
	streamElapsed float64
	lastStats     telemetry.WindowStats

	ready bool
}

// New creates an uninitialized simulation.
func New(opts Options) *Simulation {
	return &Simulation{opts: opts}
}

// Init acquires all resources for cfg. Calling Init on a running simulation
// tears it down first.
func (s *Simulation) Init(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if s.ready {
		s.Teardown()
	}
	s.cfg = cfg

	s.seed = s.opts.Seed
	if s.seed == 0 {
		s.seed = cfg.Particles.Seed
	}

	rim, err := s.loadRim()
	if err != nil {
		return err
	}
	s.rim = rim

	s.solver = s.buildSolver()

	source, err := s.attitudeSource()
	if err != nil {
		s.solver.Unload()
		return err
	}
	s.provider = orientation.Select(cfg, source, s.opts.Input)

	s.sampler = systems.NewFieldSampler(cfg.Grid.VelocityResolution, cfg.Sampler.Interval)
	s.sampler.SetStallWarning(time.Duration(cfg.Sampler.StallWarnMS * float64(time.Millisecond)))

	s.store = systems.NewParticleStore()
	s.integrator = systems.NewParticleIntegrator(s.store, systems.IntegratorParamsFromConfig(cfg))
	s.spawn()

	s.perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	s.collector = telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.DT32)

	s.output, err = telemetry.NewOutputManager(s.opts.OutputDir)
	if err != nil {
		s.solver.Unload()
		return fmt.Errorf("creating output manager: %w", err)
	}
	if err := s.output.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	if err := s.startStream(); err != nil {
		s.solver.Unload()
		s.output.Close()
		return err
	}

	s.tick = 0
	s.simTime = 0
	s.gravity = orientation.Gravity(s.provider.Current(), float32(cfg.Solver.Gravity))
	s.ready = true

	slog.Info("simulation initialized",
		"backend", s.backend,
		"height_res", cfg.Grid.HeightResolution,
		"velocity_res", cfg.Grid.VelocityResolution,
		"particles", s.store.Count(),
		"orientation", s.provider.Name(),
		"rim_coverage", s.rim.Coverage(),
		"seed", s.seed,
	)
	return nil
}

func (s *Simulation) loadRim() (*systems.RimMask, error) {
	cfg := s.cfg
	if cfg.Rim.Path == "" {
		return systems.ProceduralRim(cfg.Grid.HeightResolution, cfg.Rim), nil
	}
	if s.opts.RimLoader == nil {
		return nil, fmt.Errorf("loading rim %q: %w", cfg.Rim.Path, ErrNoRimLoader)
	}
	rim, err := s.opts.RimLoader(cfg.Rim.Path, cfg.Grid.HeightResolution, float32(cfg.Rim.MaxHeight))
	if err != nil {
		return nil, fmt.Errorf("loading rim %q: %w", cfg.Rim.Path, err)
	}
	slog.Info("rim loaded", "path", cfg.Rim.Path, "coverage", rim.Coverage())
	return rim, nil
}

// buildSolver picks the backend once and records it on the simulation. A GPU
// request that cannot be served degrades to the CPU reference solver; the
// config is left as the caller wrote it.
func (s *Simulation) buildSolver() systems.FieldSolver {
	cfg := s.cfg
	if cfg.Solver.Backend == config.BackendGPU {
		if s.opts.SolverFactory == nil {
			slog.Warn("gpu solver unavailable, using cpu", "reason", "no graphics context")
		} else {
			solver, err := s.opts.SolverFactory(cfg, s.rim)
			if err == nil {
				s.backend = config.BackendGPU
				return solver
			}
			slog.Warn("gpu solver unavailable, using cpu", "error", err)
		}
	}
	s.backend = config.BackendCPU
	return systems.NewCPUSolver(cfg, s.rim)
}

func (s *Simulation) attitudeSource() (orientation.AttitudeSource, error) {
	if s.opts.Attitude != nil {
		return s.opts.Attitude, nil
	}
	path := s.cfg.Orientation.ReplayPath
	if path == "" || s.cfg.Orientation.Mode != config.OrientationSensor {
		return nil, nil
	}
	src, err := orientation.LoadReplay(path)
	if err != nil {
		return nil, fmt.Errorf("loading attitude replay: %w", err)
	}
	slog.Info("attitude replay loaded", "path", path, "rows", src.Len())
	return src, nil
}

func (s *Simulation) startStream() error {
	addr := s.opts.StreamAddr
	if addr == "" {
		addr = s.cfg.Stream.Addr
	}
	if addr == "" {
		return nil
	}
	s.streamer = telemetry.NewStreamer(time.Duration(s.cfg.Stream.Interval * float64(time.Second)))
	if err := s.streamer.Start(addr); err != nil {
		s.streamer = nil
		return err
	}
	return nil
}

// spawn places the initial particle distribution, seeded so Reset repeats it.
func (s *Simulation) spawn() {
	rng := rand.New(rand.NewSource(s.seed))
	s.store.Spawn(systems.InitialPositions(s.cfg.Particles, s.rim, rng))
}

// Step advances the simulation by dt seconds: orientation, field solve,
// conditional snapshot, particle integration, telemetry. Negative or NaN dt
// is treated as zero. Step before Init does nothing.
func (s *Simulation) Step(dt float32) {
	if !s.ready {
		return
	}
	if !(dt > 0) {
		dt = 0
	}

	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseOrientation)
	q := s.provider.Update(dt)
	s.gravity = orientation.Gravity(q, float32(s.cfg.Solver.Gravity))

	s.perf.StartPhase(telemetry.PhaseGather)
	s.positions = s.store.Positions(s.positions)

	s.perf.StartPhase(telemetry.PhaseSolve)
	s.solver.Dispatch(s.positions, s.gravity)

	s.tick++
	s.simTime += float64(dt)

	s.perf.StartPhase(telemetry.PhaseReadback)
	if s.sampler.Update(float64(dt), s.solver, s.tick, s.simTime) {
		s.collector.RecordSnapshot(s.sampler.LastStall())
	}

	s.perf.StartPhase(telemetry.PhaseIntegrate)
	s.integrator.Update(s.sampler.Snapshot(), dt)

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.updateTelemetry(dt, q)

	s.perf.EndTick()
}

func (s *Simulation) updateTelemetry(dt float32, q mgl32.Quat) {
	s.collector.RecordTilt(float64(mgl32.RadToDeg(orientation.TiltAngle(q))))

	if s.streamer != nil {
		s.streamElapsed += float64(dt)
		if s.streamElapsed >= s.cfg.Stream.Interval {
			s.streamElapsed = 0
			s.streamer.Publish(s.tick, s.sampler.Snapshot().Field)
		}
	}

	if !s.collector.ShouldFlush(s.tick) {
		return
	}
	stats := s.flushStats()
	perfStats := s.perf.Stats()

	if s.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}
	if err := s.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.output.WritePerf(perfStats, s.tick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

func (s *Simulation) flushStats() telemetry.WindowStats {
	s.positions = s.store.Positions(s.positions)
	s.speeds = s.store.Speeds(s.speeds)
	s.xs = s.xs[:0]
	s.ys = s.ys[:0]
	for _, p := range s.positions {
		s.xs = append(s.xs, float64(p.X))
		s.ys = append(s.ys, float64(p.Y))
	}

	snap := s.sampler.Snapshot()
	h := s.solver.Height()
	fields := telemetry.FieldSummary{
		FieldMaxVel:    float64(snap.Field.MaxMagnitude()),
		SnapshotAgeSec: s.simTime - snap.Time,
	}
	if h != nil && len(h.Data) > 0 {
		fields.HeightMean = h.Sum() / float64(len(h.Data))
		fields.HeightMax = float64(h.Max())
	}

	s.lastStats = s.collector.Flush(s.tick, s.simTime, s.speeds, s.xs, s.ys, fields)
	return s.lastStats
}

// Reset re-spawns the initial distribution, levels the surface and clears
// the velocity snapshot. Tuned parameters are kept.
func (s *Simulation) Reset() {
	if !s.ready {
		return
	}
	s.store.Clear()
	s.spawn()
	s.provider.Reset()
	s.gravity = orientation.Gravity(s.provider.Current(), float32(s.cfg.Solver.Gravity))

	interval := s.sampler.Interval()
	s.sampler = systems.NewFieldSampler(s.cfg.Grid.VelocityResolution, interval)
	s.sampler.SetStallWarning(time.Duration(s.cfg.Sampler.StallWarnMS * float64(time.Millisecond)))

	slog.Info("simulation reset", "tick", s.tick, "particles", s.store.Count())
}

// Teardown releases the solver, output files and stream. Safe to call twice.
func (s *Simulation) Teardown() {
	if !s.ready {
		return
	}
	s.ready = false

	s.solver.Unload()
	if err := s.output.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	if err := s.streamer.Close(); err != nil {
		slog.Error("failed to close stream", "error", err)
	}
	s.output = nil
	s.streamer = nil

	slog.Info("simulation torn down", "tick", s.tick, "sim_time", s.simTime)
}

// Ready reports whether Init has completed and Teardown has not run.
func (s *Simulation) Ready() bool { return s.ready }

// Config returns the active configuration.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Tick returns the number of completed steps.
func (s *Simulation) Tick() int32 { return s.tick }

// Time returns the simulated time in seconds.
func (s *Simulation) Time() float64 { return s.simTime }

// Height returns the height field from the last step.
func (s *Simulation) Height() *systems.ScalarField { return s.solver.Height() }

// Normals returns the normal field from the last step.
func (s *Simulation) Normals() *systems.NormalField { return s.solver.Normals() }

// Snapshot returns the velocity snapshot particles currently read.
func (s *Simulation) Snapshot() *systems.VelocitySnapshot { return s.sampler.Snapshot() }

// Rim returns the rim mask.
func (s *Simulation) Rim() *systems.RimMask { return s.rim }

// Backend returns the backend serving solves, which may be cpu after a
// failed gpu request.
func (s *Simulation) Backend() string { return s.backend }

// Solver returns the active field solver.
func (s *Simulation) Solver() systems.FieldSolver { return s.solver }

// Sampler returns the field sampler.
func (s *Simulation) Sampler() *systems.FieldSampler { return s.sampler }

// Provider returns the orientation provider chosen at Init.
func (s *Simulation) Provider() orientation.Provider { return s.provider }

// Orientation returns the current surface orientation.
func (s *Simulation) Orientation() mgl32.Quat { return s.provider.Current() }

// Gravity returns the surface-frame gravity used by the last step.
func (s *Simulation) Gravity() mgl32.Vec3 { return s.gravity }

// ParticleCount returns the number of particles.
func (s *Simulation) ParticleCount() int { return s.store.Count() }

// Particles appends every particle position to dst[:0].
func (s *Simulation) Particles(dst []components.Position) []components.Position {
	return s.store.Positions(dst)
}

// ParticleSpeeds appends every particle speed to dst[:0].
func (s *Simulation) ParticleSpeeds(dst []float64) []float64 {
	return s.store.Speeds(dst)
}

// Perf returns the performance collector.
func (s *Simulation) Perf() *telemetry.PerfCollector { return s.perf }

// LastStats returns the most recent flushed window stats.
func (s *Simulation) LastStats() telemetry.WindowStats { return s.lastStats }

// StreamAddr returns the diagnostic stream address, or "" when disabled.
func (s *Simulation) StreamAddr() string { return s.streamer.Addr() }

// SolverParams returns the solver tunables.
func (s *Simulation) SolverParams() systems.SolverParams { return s.solver.Params() }

// SetSolverParams replaces the solver tunables from the next step on.
// Values are clamped the same way config loading clamps them.
func (s *Simulation) SetSolverParams(p systems.SolverParams) {
	p.KSlope = clamp(p.KSlope, 0, 100)
	p.KGravity = clamp(p.KGravity, 0, 10)
	p.MaxVel = clamp(p.MaxVel, 1e-4, 100)
	p.Damping = clamp(p.Damping, 0, 1)
	s.solver.SetParams(p)
}

// IntegratorParams returns the particle tunables.
func (s *Simulation) IntegratorParams() systems.IntegratorParams { return s.integrator.Params }

// SetIntegratorParams replaces the particle tunables.
func (s *Simulation) SetIntegratorParams(p systems.IntegratorParams) {
	p.Smoothing = clamp(p.Smoothing, 0, 1)
	p.Friction = clamp(p.Friction, 0, 1000)
	p.MaxSpeed = clamp(p.MaxSpeed, 1e-4, 100)
	p.Scale = clamp(p.Scale, 0, 100)
	s.integrator.Params = p
}

// SetSamplingInterval changes how often the velocity field is copied back.
func (s *Simulation) SetSamplingInterval(sec float64) {
	s.sampler.SetInterval(math.Max(0, sec))
}

func clamp(v, lo, hi float32) float32 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
