package telemetry

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// Collector accumulates per-tick events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float32

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	snapshots  int
	stallTotal time.Duration
	stallMax   time.Duration
	tiltDeg    []float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	ticksPerWindow := int32(windowDurationSec / float64(dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordSnapshot records a sampler readback and how long it blocked.
func (c *Collector) RecordSnapshot(stall time.Duration) {
	c.snapshots++
	c.stallTotal += stall
	if stall > c.stallMax {
		c.stallMax = stall
	}
}

// RecordTilt records this tick's tilt angle in degrees.
func (c *Collector) RecordTilt(deg float64) {
	c.tiltDeg = append(c.tiltDeg, deg)
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// FieldSummary holds field reductions taken at window end.
type FieldSummary struct {
	FieldMaxVel    float64
	HeightMean     float64
	HeightMax      float64
	SnapshotAgeSec float64
}

// Flush produces a WindowStats and resets counters for the next window.
// speeds are particle speeds at window end; xs and ys their positions.
func (c *Collector) Flush(currentTick int32, simTime float64, speeds, xs, ys []float64, fields FieldSummary) WindowStats {
	speed := ComputeSpeedStats(speeds)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      simTime,

		Particles: len(speeds),

		SpeedMean: speed.Mean,
		SpeedStd:  speed.Std,
		SpeedP50:  speed.P50,
		SpeedP90:  speed.P90,
		SpeedMax:  speed.Max,

		FieldMaxVel:    fields.FieldMaxVel,
		HeightMean:     fields.HeightMean,
		HeightMax:      fields.HeightMax,
		SnapshotAgeSec: fields.SnapshotAgeSec,

		Snapshots:    c.snapshots,
		StallTotalUS: c.stallTotal.Microseconds(),
		StallMaxUS:   c.stallMax.Microseconds(),
	}

	if n := len(xs); n > 0 && len(ys) == n {
		stats.CentroidX = floats.Sum(xs) / float64(n)
		stats.CentroidY = floats.Sum(ys) / float64(n)
	}
	if n := len(c.tiltDeg); n > 0 {
		stats.TiltDegMean = floats.Sum(c.tiltDeg) / float64(n)
		stats.TiltDegMax = floats.Max(c.tiltDeg)
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.snapshots = 0
	c.stallTotal = 0
	c.stallMax = 0
	c.tiltDeg = c.tiltDeg[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
