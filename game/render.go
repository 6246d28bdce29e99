package game

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/puddle/orientation"
	"github.com/pthm-cable/puddle/ui"
)

const controlsLegend = "Arrows/WASD or right-drag: tilt | L: level | R: reset | Space: pause | Tab: overlays | wheel: zoom"

// Draw renders the film, particles, overlays and panels.
func (g *Game) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 8, G: 10, B: 14, A: 255})

	s := g.sim
	maxVel := s.SolverParams().MaxVel
	snap := s.Snapshot()

	if g.overlays.IsEnabled(ui.OverlayFilm) {
		g.film.Draw(g.camera, s.Solver())
	}
	if g.overlays.IsEnabled(ui.OverlayParticles) {
		g.positions = s.Particles(g.positions)
		g.flow.Draw(g.camera, g.positions, snap, maxVel)
	}
	if g.overlays.IsEnabled(ui.OverlayVelocity) {
		g.flow.DrawField(g.camera, snap, 32, maxVel)
	}
	if g.overlays.IsEnabled(ui.OverlayTilt) {
		g.drawTiltGizmo()
	}

	g.drawPanels()
	rl.EndDrawing()
}

// drawTiltGizmo shows the in-plane gravity and total tilt in a corner dial.
func (g *Game) drawTiltGizmo() {
	const radius = 48
	cx := float32(radius + 20)
	cy := g.screenHeight - radius - 50

	rl.DrawCircleLines(int32(cx), int32(cy), radius, rl.Gray)
	rl.DrawLine(int32(cx-radius), int32(cy), int32(cx+radius), int32(cy), rl.DarkGray)
	rl.DrawLine(int32(cx), int32(cy-radius), int32(cx), int32(cy+radius), rl.DarkGray)

	gv := g.sim.Gravity()
	mag := float32(g.cfg.Solver.Gravity)
	if mag <= 0 {
		mag = 1
	}
	// In-plane gravity: where the film wants to run. Screen y is flipped.
	end := rl.Vector2{X: cx + gv.X()/mag*radius, Y: cy - gv.Y()/mag*radius}
	rl.DrawLineEx(rl.Vector2{X: cx, Y: cy}, end, 3, rl.Orange)
	rl.DrawCircleV(end, 4, rl.Orange)

	tilt := mgl32.RadToDeg(orientation.TiltAngle(g.sim.Orientation()))
	rl.DrawText(fmt.Sprintf("%.1f deg", tilt), int32(cx-radius), int32(cy+radius+6), 12, rl.LightGray)
}

// drawPanels renders HUD and toggled panels on the left, tuning on the right.
func (g *Game) drawPanels() {
	s := g.sim
	snap := s.Snapshot()

	var age float64
	if snap != nil {
		age = s.Time() - snap.Time
	}
	g.hud.Draw(ui.HUDData{
		Title:       "Puddle",
		Particles:   s.ParticleCount(),
		Tick:        s.Tick(),
		SimTime:     s.Time(),
		FPS:         rl.GetFPS(),
		Paused:      g.paused,
		Backend:     s.Backend(),
		Orientation: s.Provider().Name(),
		TiltDeg:     mgl32.RadToDeg(orientation.TiltAngle(s.Orientation())),
		SnapshotAge: age,
		StreamAddr:  s.StreamAddr(),
	})
	g.hud.DrawControls(int32(g.screenHeight), controlsLegend)

	y := int32(100)
	if g.controls.IsVisible() {
		g.controls.SetPosition(10, y)
		y = g.controls.Draw(g.overlays) + 8
	}
	if g.overlays.IsEnabled(ui.OverlayProbe) {
		m := rl.GetMousePosition()
		x, yy := g.camera.ScreenToDomain(m.X, m.Y)
		g.probe.SetPosition(10, y)
		y = g.probe.Draw(ui.SampleProbe(s, x, yy), s.SolverParams().MaxVel) + 8
	}
	if g.overlays.IsEnabled(ui.OverlayPerf) {
		g.perfPanel.SetPosition(10, y)
		g.perfPanel.Draw(s.Perf().Stats())
	}

	if g.overlays.IsEnabled(ui.OverlayTuning) {
		action := g.tuning.Draw(s)
		if action.Reset {
			s.Reset()
		}
		if action.Level {
			g.level()
		}
	}
}
