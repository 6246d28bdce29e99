// Package components defines ECS components for the simulation.
package components

// Particle marks an entity as a visualization particle riding the film.
// Seed keeps the spawn order so resets and diagnostics stay deterministic.
type Particle struct {
	Seed uint32
}
