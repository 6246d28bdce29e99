// Package orientation produces the tilt of the simulated surface once per tick.
//
// Two providers exist: Sensor smooths a raw device attitude, Manual accumulates
// tilt from directional and pointer input. Select picks one at startup; the
// choice is not revisited while running.
package orientation

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/puddle/config"
)

// Provider yields the surface orientation relative to neutral.
type Provider interface {
	// Update advances the provider by dt seconds and returns the new orientation.
	Update(dt float32) mgl32.Quat
	// Current returns the orientation from the last Update.
	Current() mgl32.Quat
	// Reset returns to the neutral orientation.
	Reset()
	Name() string
}

// AttitudeSource supplies raw device attitude in the device frame
// (right-handed, z out of the screen).
type AttitudeSource interface {
	// Available reports whether the source can produce readings at all.
	Available() bool
	// Attitude returns the latest reading. ok is false when there is no new reading.
	Attitude() (q mgl32.Quat, ok bool)
}

// ManualInput supplies directional and pointer input for the manual provider.
// Both are expressed in domain axes, so adapters flip screen y where needed.
type ManualInput interface {
	// Axis returns the held direction, each component in [-1, 1].
	Axis() (x, y float32)
	// PointerDelta returns pointer movement in pixels since the last call.
	PointerDelta() (dx, dy float32)
	// Held reports whether the drag trigger is down.
	Held() bool
}

// Gravity returns the gravity vector of magnitude g expressed in the surface
// frame of orientation q. The neutral orientation gives (0, 0, -g).
func Gravity(q mgl32.Quat, g float32) mgl32.Vec3 {
	return q.Conjugate().Rotate(mgl32.Vec3{0, 0, -g})
}

// TiltAngle returns the rotation angle of q away from neutral, in radians.
func TiltAngle(q mgl32.Quat) float32 {
	w := float64(q.W)
	if w < 0 {
		w = -w
	}
	if w > 1 {
		w = 1
	}
	return float32(2 * math.Acos(w))
}

// Select builds the provider for cfg. A sensor is used only when requested,
// allowed and available; otherwise the manual provider is returned.
func Select(cfg *config.Config, source AttitudeSource, input ManualInput) Provider {
	oc := cfg.Orientation
	if oc.Mode == config.OrientationSensor {
		switch {
		case !oc.AllowSensor:
			slog.Info("orientation sensor disallowed, using manual", "mode", oc.Mode)
		case source == nil || !source.Available():
			slog.Info("orientation sensor unavailable, using manual", "mode", oc.Mode)
		default:
			slog.Info("orientation provider selected", "provider", "sensor")
			return NewSensor(source, cfg.Derived.DeadZoneRad, float32(oc.SlerpFactor))
		}
	}
	slog.Info("orientation provider selected", "provider", "manual")
	return NewManual(input, cfg.Derived.MaxTiltRad, cfg.Derived.KeyRateRad, cfg.Derived.PointerRad)
}
