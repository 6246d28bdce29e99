// Package renderer provides rendering utilities.
package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/puddle/camera"
	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/systems"
)

// FlowRenderer renders film particles as short streaks along the sampled flow.
type FlowRenderer struct {
	// StreakSeconds is how far ahead a streak reaches along the flow.
	StreakSeconds float32
	// Size is the streak width in pixels.
	Size float32
}

// NewFlowRenderer creates a new flow renderer.
func NewFlowRenderer() *FlowRenderer {
	return &FlowRenderer{
		StreakSeconds: 0.15,
		Size:          1.5,
	}
}

// Draw renders all particles with additive blending. Faster particles are
// brighter and warmer. maxVel normalizes the color ramp.
func (r *FlowRenderer) Draw(cam *camera.Camera, positions []components.Position, snap *systems.VelocitySnapshot, maxVel float32) {
	if maxVel <= 0 {
		maxVel = 1
	}
	scale := cam.Scale()

	rl.BeginBlendMode(rl.BlendAdditive)

	for i := range positions {
		p := positions[i]
		if !cam.IsVisible(p.X, p.Y, 0.01) {
			continue
		}

		var vx, vy float32
		if snap != nil {
			vx, vy = snap.Sample(p.X+0.5, p.Y+0.5)
		}
		speed := float32(math.Hypot(float64(vx), float64(vy))) / maxVel
		if speed > 1 {
			speed = 1
		}

		color := rl.Color{
			R: uint8(40 + 200*speed),
			G: uint8(110 + 80*speed),
			B: uint8(180 - 100*speed),
			A: uint8(90 + 120*speed),
		}

		sx, sy := cam.DomainToScreen(p.X, p.Y)
		if speed*scale*r.StreakSeconds < 1 {
			rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, r.Size, color)
			continue
		}
		ex, ey := cam.DomainToScreen(p.X+vx*r.StreakSeconds, p.Y+vy*r.StreakSeconds)
		rl.DrawLineEx(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: ex, Y: ey}, r.Size, color)
	}

	rl.EndBlendMode()
}

// DrawField draws the sampled velocity field as arrows on a coarse lattice.
func (r *FlowRenderer) DrawField(cam *camera.Camera, snap *systems.VelocitySnapshot, cells int, maxVel float32) {
	if snap == nil || cells <= 0 || maxVel <= 0 {
		return
	}
	step := 1 / float32(cells)
	arrow := step * 0.9 / maxVel
	color := rl.Color{R: 230, G: 230, B: 240, A: 140}

	for j := 0; j < cells; j++ {
		for i := 0; i < cells; i++ {
			u := (float32(i) + 0.5) * step
			v := (float32(j) + 0.5) * step
			vx, vy := snap.Sample(u, v)
			if vx == 0 && vy == 0 {
				continue
			}
			x, y := u-0.5, v-0.5
			sx, sy := cam.DomainToScreen(x, y)
			ex, ey := cam.DomainToScreen(x+vx*arrow, y+vy*arrow)
			rl.DrawLineV(rl.Vector2{X: sx, Y: sy}, rl.Vector2{X: ex, Y: ey}, color)
			rl.DrawCircleV(rl.Vector2{X: ex, Y: ey}, 1.5, color)
		}
	}
}

// Unload frees resources.
func (r *FlowRenderer) Unload() {
	// Nothing to unload in direct rendering mode
}
