package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/puddle/orientation"
)

// RaylibInput adapts keyboard and mouse to orientation.ManualInput.
// Arrow keys and WASD tilt; dragging with the right mouse button tilts too.
// Screen y grows downward, so vertical inputs are flipped into domain axes.
type RaylibInput struct {
	dx, dy float32
	held   bool
}

// NewRaylibInput creates an input adapter.
func NewRaylibInput() *RaylibInput {
	return &RaylibInput{}
}

// Axis returns the keyboard tilt direction in domain axes.
func (r *RaylibInput) Axis() (float32, float32) {
	var x, y float32
	if rl.IsKeyDown(rl.KeyRight) || rl.IsKeyDown(rl.KeyD) {
		x++
	}
	if rl.IsKeyDown(rl.KeyLeft) || rl.IsKeyDown(rl.KeyA) {
		x--
	}
	if rl.IsKeyDown(rl.KeyUp) || rl.IsKeyDown(rl.KeyW) {
		y++
	}
	if rl.IsKeyDown(rl.KeyDown) || rl.IsKeyDown(rl.KeyS) {
		y--
	}
	return x, y
}

// PointerDelta returns this frame's drag in pixels, domain-oriented.
func (r *RaylibInput) PointerDelta() (float32, float32) {
	return r.dx, r.dy
}

// Held reports whether the tilt drag button is down.
func (r *RaylibInput) Held() bool {
	return r.held
}

// poll captures the mouse state once per frame before the simulation steps.
func (r *RaylibInput) poll() {
	r.held = rl.IsMouseButtonDown(rl.MouseButtonRight)
	if !r.held {
		r.dx, r.dy = 0, 0
		return
	}
	d := rl.GetMouseDelta()
	r.dx, r.dy = d.X, -d.Y
}

// EndFrame consumes the drag so extra steps in one frame do not reapply it.
func (r *RaylibInput) EndFrame() {
	if r == nil {
		return
	}
	r.dx, r.dy = 0, 0
}

var _ orientation.ManualInput = (*RaylibInput)(nil)

// handleInput processes keyboard and mouse input.
func (g *Game) handleInput() {
	g.handleResize()
	g.input.poll()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}
	if rl.IsKeyPressed(rl.KeyR) {
		g.sim.Reset()
	}
	if rl.IsKeyPressed(rl.KeyL) {
		g.level()
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		g.controls.Toggle()
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && g.stepsPerUpdate > 1 {
		g.stepsPerUpdate--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && g.stepsPerUpdate < 10 {
		g.stepsPerUpdate++
	}

	if key := rl.GetKeyPressed(); key != 0 {
		g.overlays.HandleKeyPress(key)
	}

	g.handleCameraInput()
}

// level zeroes the manual tilt. Sensor tilt is owned by the device.
func (g *Game) level() {
	if m, ok := g.sim.Provider().(*orientation.Manual); ok {
		m.SetTilt(0, 0)
	}
}

// handleResize checks for window resize and propagates new dimensions.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == g.screenWidth && h == g.screenHeight {
		return
	}
	g.screenWidth = w
	g.screenHeight = h
	g.camera.Resize(w, h)
	g.tuning.SetPosition(int32(w)-270, 10)
}

// handleCameraInput processes camera pan/zoom controls.
func (g *Game) handleCameraInput() {
	if rl.IsMouseButtonDown(rl.MouseButtonMiddle) {
		d := rl.GetMouseDelta()
		g.camera.Pan(-d.X, -d.Y)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		m := rl.GetMousePosition()
		g.camera.ZoomAt(m.X, m.Y, 1+wheel*0.1)
	}

	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		g.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		g.camera.ZoomBy(0.8)
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		g.camera.Reset()
	}
}
