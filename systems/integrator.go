package systems

import (
	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/config"
)

// IntegratorParams holds particle advection tunables.
type IntegratorParams struct {
	Smoothing float32 // per-tick blend toward the sampled velocity
	Friction  float32 // per-second attenuation coefficient
	MaxSpeed  float32
	Scale     float32 // velocity to displacement scale
}

// IntegratorParamsFromConfig builds integrator parameters from a loaded config.
func IntegratorParamsFromConfig(cfg *config.Config) IntegratorParams {
	return IntegratorParams{
		Smoothing: float32(cfg.Particles.Smoothing),
		Friction:  float32(cfg.Particles.Friction),
		MaxSpeed:  float32(cfg.Particles.MaxSpeed),
		Scale:     float32(cfg.Particles.Scale),
	}
}

// ParticleIntegrator advects particles through the latest velocity snapshot.
type ParticleIntegrator struct {
	Params IntegratorParams
	store  *ParticleStore
}

// NewParticleIntegrator creates an integrator over the store's particles.
func NewParticleIntegrator(store *ParticleStore, p IntegratorParams) *ParticleIntegrator {
	return &ParticleIntegrator{Params: p, store: store}
}

// Update advances every particle by dt against snap.
func (pi *ParticleIntegrator) Update(snap *VelocitySnapshot, dt float32) {
	if dt < 0 {
		dt = 0
	}
	query := pi.store.Query()
	for query.Next() {
		pos, vel := query.Get()
		IntegrateParticle(pos, vel, snap.Field, pi.Params, dt)
	}
}

// IntegrateParticle advances a single particle.
//
// The smoothing blend is applied once per tick and is not scaled by dt, so
// the effective response time depends on the frame rate.
func IntegrateParticle(pos *components.Position, vel *components.Velocity, field *VelocityField, p IntegratorParams, dt float32) {
	u := pos.X + 0.5
	v := pos.Y + 0.5
	sampled := field.SampleUV(u, v)

	vx := vel.X + (sampled[0]-vel.X)*p.Smoothing
	vy := vel.Y + (sampled[1]-vel.Y)*p.Smoothing

	keep := clamp01(1 - p.Friction*dt)
	vx *= keep
	vy *= keep

	if speedSq := vx*vx + vy*vy; speedSq > p.MaxSpeed*p.MaxSpeed {
		scale := p.MaxSpeed / sqrtf(speedSq)
		vx *= scale
		vy *= scale
	}
	vel.X = vx
	vel.Y = vy

	// Particles pile up at the boundary; there is no bounce
	pos.X = clampDomain(pos.X + vx*p.Scale*dt)
	pos.Y = clampDomain(pos.Y + vy*p.Scale*dt)
}
