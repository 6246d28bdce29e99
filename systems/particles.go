package systems

import (
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/config"
)

// spawnAttempts bounds rejection sampling against the rim mask.
const spawnAttempts = 32

// ParticleStore keeps particles as ECS entities.
type ParticleStore struct {
	world  *ecs.World
	mapper *ecs.Map3[components.Position, components.Velocity, components.Particle]
	filter *ecs.Filter2[components.Position, components.Velocity]
	count  int
}

// NewParticleStore creates an empty store.
func NewParticleStore() *ParticleStore {
	ps := &ParticleStore{}
	ps.Clear()
	return ps
}

// Clear drops every particle by starting a fresh world.
func (ps *ParticleStore) Clear() {
	ps.world = ecs.NewWorld()
	ps.mapper = ecs.NewMap3[components.Position, components.Velocity, components.Particle](ps.world)
	ps.filter = ecs.NewFilter2[components.Position, components.Velocity](ps.world)
	ps.count = 0
}

// Spawn adds one resting particle per position. Positions are clamped to the domain.
func (ps *ParticleStore) Spawn(positions []components.Position) {
	for _, p := range positions {
		pos := components.Position{X: clampDomain(p.X), Y: clampDomain(p.Y)}
		vel := components.Velocity{}
		tag := components.Particle{Seed: uint32(ps.count)}
		ps.mapper.NewEntity(&pos, &vel, &tag)
		ps.count++
	}
}

// Count returns the number of particles.
func (ps *ParticleStore) Count() int {
	return ps.count
}

// World returns the ECS world holding the particles.
func (ps *ParticleStore) World() *ecs.World {
	return ps.world
}

// Query returns a query over particle positions and velocities.
// The caller must iterate it to the end.
func (ps *ParticleStore) Query() ecs.Query2[components.Position, components.Velocity] {
	return ps.filter.Query()
}

// Positions appends every particle position to dst[:0].
func (ps *ParticleStore) Positions(dst []components.Position) []components.Position {
	dst = dst[:0]
	query := ps.filter.Query()
	for query.Next() {
		pos, _ := query.Get()
		dst = append(dst, *pos)
	}
	return dst
}

// Speeds appends every particle speed to dst[:0].
func (ps *ParticleStore) Speeds(dst []float64) []float64 {
	dst = dst[:0]
	query := ps.filter.Query()
	for query.Next() {
		_, vel := query.Get()
		dst = append(dst, math.Sqrt(float64(vel.SpeedSq())))
	}
	return dst
}

// InitialPositions generates the starting distribution. Positions falling
// outside the rim are redrawn a bounded number of times.
func InitialPositions(cfg config.ParticlesConfig, rim *RimMask, rng *rand.Rand) []components.Position {
	var density opensimplex.Noise
	if cfg.Distribution == config.DistributionNoise {
		density = opensimplex.NewNormalized(rng.Int63())
	}

	out := make([]components.Position, 0, cfg.Count)
	for len(out) < cfg.Count {
		var p components.Position
		for attempt := 0; attempt < spawnAttempts; attempt++ {
			p = drawPosition(cfg, density, rng)
			if rim == nil || rim.Inside(p.X, p.Y) {
				break
			}
		}
		out = append(out, p)
	}
	return out
}

func drawPosition(cfg config.ParticlesConfig, density opensimplex.Noise, rng *rand.Rand) components.Position {
	switch cfg.Distribution {
	case config.DistributionUniform:
		return components.Position{X: rng.Float32() - 0.5, Y: rng.Float32() - 0.5}

	case config.DistributionNoise:
		// Thin a disc by a smooth density so the film starts in puddles
		for attempt := 0; attempt < spawnAttempts; attempt++ {
			p := discPosition(cfg.Radius, rng)
			if density.Eval2(float64(p.X)*6, float64(p.Y)*6) > rng.Float64() {
				return p
			}
		}
		return discPosition(cfg.Radius, rng)

	default:
		return discPosition(cfg.Radius, rng)
	}
}

func discPosition(radius float64, rng *rand.Rand) components.Position {
	r := radius * math.Sqrt(rng.Float64())
	theta := rng.Float64() * 2 * math.Pi
	return components.Position{
		X: clampDomain(float32(r * math.Cos(theta))),
		Y: clampDomain(float32(r * math.Sin(theta))),
	}
}
