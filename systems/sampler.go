package systems

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// FieldReader copies a device-side velocity field into host memory,
// blocking until the producing solve has completed.
type FieldReader interface {
	Readback(dst *VelocityField)
}

// VelocitySnapshot is a host-side copy of the velocity field.
// Once published it is never written again until it is recycled two
// samples later, so readers must not hold it across ticks.
type VelocitySnapshot struct {
	Field *VelocityField
	Tick  int32   // tick at which it was captured
	Time  float64 // simulation time at capture
}

// Sample returns the bilinear velocity at normalized coordinates (u, v).
func (s *VelocitySnapshot) Sample(u, v float32) (float32, float32) {
	vel := s.Field.SampleUV(u, v)
	return vel[0], vel[1]
}

// FieldSampler copies the velocity field from the solver into a host snapshot
// at a bounded rate. Between samples every reader sees the previous snapshot,
// so staleness is bounded by the interval plus one solve.
type FieldSampler struct {
	interval float64
	elapsed  float64

	buffers [2]*VelocitySnapshot
	back    int
	front   atomic.Pointer[VelocitySnapshot]

	samples   int
	lastStall time.Duration
	stallWarn time.Duration
}

// NewFieldSampler creates a sampler for a res×res velocity field. The initial
// snapshot is all zero and the first Update always samples.
func NewFieldSampler(res int, interval float64) *FieldSampler {
	s := &FieldSampler{
		interval: interval,
		elapsed:  interval,
		buffers: [2]*VelocitySnapshot{
			{Field: NewVelocityField(res)},
			{Field: NewVelocityField(res)},
		},
	}
	s.front.Store(s.buffers[0])
	s.back = 1
	return s
}

// SetStallWarning logs readbacks slower than d. Zero disables the warning.
func (s *FieldSampler) SetStallWarning(d time.Duration) {
	s.stallWarn = d
}

// SetInterval changes the sampling interval.
func (s *FieldSampler) SetInterval(interval float64) {
	s.interval = interval
}

// Interval returns the sampling interval in seconds.
func (s *FieldSampler) Interval() float64 {
	return s.interval
}

// Due reports whether the next Update with dt would sample.
func (s *FieldSampler) Due(dt float64) bool {
	return s.elapsed+dt >= s.interval
}

// Update advances the sampler clock by dt. When the interval has elapsed it
// performs one bulk readback into the back buffer and publishes it as the new
// snapshot. Returns true if a sample was taken.
func (s *FieldSampler) Update(dt float64, src FieldReader, tick int32, simTime float64) bool {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return false
	}
	s.elapsed = 0

	next := s.buffers[s.back]
	start := time.Now()
	src.Readback(next.Field)
	s.lastStall = time.Since(start)

	next.Tick = tick
	next.Time = simTime
	s.front.Store(next)
	s.back = 1 - s.back
	s.samples++

	if s.stallWarn > 0 && s.lastStall > s.stallWarn {
		slog.Warn("velocity readback stalled",
			"tick", tick,
			"stall_us", s.lastStall.Microseconds(),
			"res", next.Field.Res,
		)
	}
	return true
}

// Snapshot returns the most recently published snapshot.
func (s *FieldSampler) Snapshot() *VelocitySnapshot {
	return s.front.Load()
}

// Samples returns how many snapshots have been taken.
func (s *FieldSampler) Samples() int {
	return s.samples
}

// LastStall returns how long the last readback blocked.
func (s *FieldSampler) LastStall() time.Duration {
	return s.lastStall
}
