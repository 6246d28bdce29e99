package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/config"
)

// SolverParams holds the tunables shared by every FieldSolver backend.
type SolverParams struct {
	KSlope         float32
	KGravity       float32
	MaxVel         float32
	Damping        float32
	GradientStep   float32 // central difference step in UV units
	NormalStrength float32
	Epsilon        float32
	Footprint      float32
	Deposit        float32
}

// ParamsFromConfig builds solver parameters from a loaded config.
func ParamsFromConfig(cfg *config.Config) SolverParams {
	return SolverParams{
		KSlope:         float32(cfg.Solver.KSlope),
		KGravity:       float32(cfg.Solver.KGravity),
		MaxVel:         float32(cfg.Solver.MaxVelocity),
		Damping:        float32(cfg.Solver.Damping),
		GradientStep:   cfg.Derived.GradientStep,
		NormalStrength: float32(cfg.Grid.NormalStrength),
		Epsilon:        cfg.Derived.Epsilon,
		Footprint:      float32(cfg.Grid.Footprint),
		Deposit:        float32(cfg.Grid.Deposit),
	}
}

// FieldSolver runs the compute stage: height from particles, normals from
// height, velocity from height, normals and gravity.
//
// Dispatch may run asynchronously (GPU backend). Readback is the barrier:
// it blocks until the last dispatch finished and copies the velocity field.
type FieldSolver interface {
	Dispatch(positions []components.Position, gravity mgl32.Vec3)
	Readback(dst *VelocityField)
	Height() *ScalarField
	Normals() *NormalField
	Params() SolverParams
	SetParams(p SolverParams)
	Unload()
}

// CPUSolver is the host-side reference FieldSolver. It is deterministic and
// computes everything synchronously inside Dispatch.
type CPUSolver struct {
	params    SolverParams
	rim       *RimMask
	heights   *HeightAccumulator
	normals   *NormalField
	velocity  *VelocityField
	estimator NormalEstimator
}

// NewCPUSolver creates a reference solver with Rh and Rv from the config.
func NewCPUSolver(cfg *config.Config, rim *RimMask) *CPUSolver {
	p := ParamsFromConfig(cfg)
	s := &CPUSolver{
		rim:      rim,
		heights:  NewHeightAccumulator(cfg.Grid.HeightResolution, p.Footprint, p.Deposit),
		normals:  NewNormalField(cfg.Grid.HeightResolution),
		velocity: NewVelocityField(cfg.Grid.VelocityResolution),
	}
	s.SetParams(p)
	return s
}

// Dispatch recomputes height, normals and velocity for the given particles.
func (s *CPUSolver) Dispatch(positions []components.Position, gravity mgl32.Vec3) {
	h := s.heights.Accumulate(positions)
	s.estimator.Estimate(h, s.normals)
	SolveVelocity(s.velocity, h, s.normals, s.rim, gravity, s.params)
}

// Readback copies the latest velocity field into dst.
func (s *CPUSolver) Readback(dst *VelocityField) {
	dst.CopyFrom(s.velocity)
}

// Height returns the height field of the last dispatch.
func (s *CPUSolver) Height() *ScalarField {
	return s.heights.Field()
}

// Normals returns the normal field of the last dispatch.
func (s *CPUSolver) Normals() *NormalField {
	return s.normals
}

// Velocity returns the solver's working velocity field.
func (s *CPUSolver) Velocity() *VelocityField {
	return s.velocity
}

// Params returns the current tunables.
func (s *CPUSolver) Params() SolverParams {
	return s.params
}

// SetParams replaces the tunables; they apply from the next Dispatch.
func (s *CPUSolver) SetParams(p SolverParams) {
	s.params = p
	s.heights.SetFootprint(p.Footprint, p.Deposit)
	s.estimator = NormalEstimator{Strength: p.NormalStrength, Epsilon: p.Epsilon}
}

// Unload is a no-op for the CPU backend.
func (s *CPUSolver) Unload() {}

// SolveVelocity computes the velocity grid dst from height, normals, rim and
// the surface-frame gravity vector. Height and normals are bilinearly
// resampled when dst is coarser.
//
// Per cell: rim <= 0 yields zero with no further work. Otherwise
// v = -kSlope*grad(h) + kGravity*g_t*sqrt(max(min(h, rim), eps)), then
// v *= damping, then |v| is clamped to maxVel. The order matters.
func SolveVelocity(dst *VelocityField, height *ScalarField, normals *NormalField, rim *RimMask, gravity mgl32.Vec3, p SolverParams) {
	res := dst.Res
	inv := 1 / float32(res)

	step := p.GradientStep
	if step < p.Epsilon {
		step = p.Epsilon
	}
	invStep := 1 / (2 * step)

	for j := 0; j < res; j++ {
		v := (float32(j) + 0.5) * inv
		for i := 0; i < res; i++ {
			u := (float32(i) + 0.5) * inv
			idx := j*res + i

			r := rim.SampleUV(u, v)
			if !(r > 0) {
				dst.Data[idx] = mgl32.Vec2{}
				continue
			}

			h := height.SampleUV(u, v)
			if h > r {
				h = r
			}

			// Tangential gravity: drop the component along the normal
			n := normals.SampleUV(u, v, p.Epsilon)
			gt := gravity.Sub(n.Mul(gravity.Dot(n)))

			gx := (height.SampleUV(u+step, v) - height.SampleUV(u-step, v)) * invStep
			gy := (height.SampleUV(u, v+step) - height.SampleUV(u, v-step)) * invStep

			if h < p.Epsilon {
				h = p.Epsilon
			}
			film := sqrtf(h)

			vel := mgl32.Vec2{
				-p.KSlope*gx + p.KGravity*gt[0]*film,
				-p.KSlope*gy + p.KGravity*gt[1]*film,
			}
			vel = vel.Mul(p.Damping)
			dst.Data[idx] = clampLength(vel, p.MaxVel)
		}
	}
}
