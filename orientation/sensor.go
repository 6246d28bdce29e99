package orientation

import "github.com/go-gl/mathgl/mgl32"

// Sensor smooths a device attitude toward a dead-zone filtered target.
type Sensor struct {
	source   AttitudeSource
	deadZone float32 // radians
	factor   float32 // slerp blend per tick

	current mgl32.Quat
	target  mgl32.Quat
}

// NewSensor creates a sensor provider. factor is the fraction of the remaining
// rotation covered each tick; it is not scaled by dt.
func NewSensor(source AttitudeSource, deadZone, factor float32) *Sensor {
	return &Sensor{
		source:   source,
		deadZone: deadZone,
		factor:   factor,
		current:  mgl32.QuatIdent(),
		target:   mgl32.QuatIdent(),
	}
}

// Update reads the source and moves one smoothing step toward the target.
func (s *Sensor) Update(dt float32) mgl32.Quat {
	if raw, ok := s.source.Attitude(); ok {
		s.target = DeadZone(DeviceToSurface(raw), s.deadZone)
	}

	// Take the short way round
	target := s.target
	if s.current.Dot(target) < 0 {
		target = mgl32.Quat{W: -target.W, V: target.V.Mul(-1)}
	}
	s.current = mgl32.QuatSlerp(s.current, target, s.factor).Normalize()
	return s.current
}

// Current returns the smoothed orientation.
func (s *Sensor) Current() mgl32.Quat {
	return s.current
}

// Target returns the filtered orientation the sensor is converging to.
func (s *Sensor) Target() mgl32.Quat {
	return s.target
}

// Reset snaps back to neutral.
func (s *Sensor) Reset() {
	s.current = mgl32.QuatIdent()
	s.target = mgl32.QuatIdent()
}

// Name returns "sensor".
func (s *Sensor) Name() string {
	return "sensor"
}

// DeviceToSurface converts an attitude from the device frame to the surface
// frame, which has z pointing into the screen.
func DeviceToSurface(q mgl32.Quat) mgl32.Quat {
	q = q.Normalize()
	return mgl32.Quat{W: q.W, V: mgl32.Vec3{-q.V[0], -q.V[1], q.V[2]}}
}

// DeadZone collapses rotations smaller than threshold radians to neutral.
func DeadZone(q mgl32.Quat, threshold float32) mgl32.Quat {
	if TiltAngle(q) < threshold {
		return mgl32.QuatIdent()
	}
	return q
}
