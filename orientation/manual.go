package orientation

import "github.com/go-gl/mathgl/mgl32"

// Manual accumulates tilt from directional input and pointer drags.
type Manual struct {
	input ManualInput

	maxTilt    float32 // radians per axis
	keyRate    float32 // radians per second at full deflection
	pointerRad float32 // radians per pixel

	tiltX, tiltY float32 // about the X and Y axes
	current      mgl32.Quat
}

// NewManual creates a manual provider. input may be nil, in which case the
// surface stays level until SetTilt is called.
func NewManual(input ManualInput, maxTilt, keyRate, pointerRad float32) *Manual {
	return &Manual{
		input:      input,
		maxTilt:    maxTilt,
		keyRate:    keyRate,
		pointerRad: pointerRad,
		current:    mgl32.QuatIdent(),
	}
}

// Update accumulates this tick's input and composes the orientation.
// Directional input tilts continuously; pointer motion only counts while held.
func (m *Manual) Update(dt float32) mgl32.Quat {
	if m.input != nil {
		ax, ay := m.input.Axis()
		// +y rotates about X and sends the film toward -y
		m.tiltX += ay * m.keyRate * dt
		m.tiltY += ax * m.keyRate * dt

		dx, dy := m.input.PointerDelta()
		if m.input.Held() {
			m.tiltY += dx * m.pointerRad
			m.tiltX -= dy * m.pointerRad
		}
	}
	m.compose()
	return m.current
}

// SetTilt sets both tilt angles directly, in radians.
func (m *Manual) SetTilt(x, y float32) {
	m.tiltX = x
	m.tiltY = y
	m.compose()
}

// Tilt returns the accumulated tilt angles about X and Y, in radians.
func (m *Manual) Tilt() (x, y float32) {
	return m.tiltX, m.tiltY
}

// Current returns the composed orientation.
func (m *Manual) Current() mgl32.Quat {
	return m.current
}

// Reset levels the surface.
func (m *Manual) Reset() {
	m.tiltX, m.tiltY = 0, 0
	m.current = mgl32.QuatIdent()
}

// Name returns "manual".
func (m *Manual) Name() string {
	return "manual"
}

func (m *Manual) compose() {
	m.tiltX = clampTilt(m.tiltX, m.maxTilt)
	m.tiltY = clampTilt(m.tiltY, m.maxTilt)
	m.current = mgl32.AnglesToQuat(m.tiltX, m.tiltY, 0, mgl32.XYZ)
}

func clampTilt(a, max float32) float32 {
	if !(a >= -max) {
		return -max
	}
	if a > max {
		return max
	}
	return a
}
