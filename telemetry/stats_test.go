package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestSpeedQuantiles(t *testing.T) {
	// Shuffled 1..10: ranks p*n land exactly on samples
	values := []float64{7, 3, 10, 1, 9, 5, 2, 8, 6, 4}
	s := ComputeSpeedStats(values)

	if math.Abs(s.P50-5) > 1e-9 {
		t.Errorf("expected p50 5, got %v", s.P50)
	}
	if math.Abs(s.P90-9) > 1e-9 {
		t.Errorf("expected p90 9, got %v", s.P90)
	}
	if s.Max != 10 {
		t.Errorf("expected max 10, got %v", s.Max)
	}

	single := ComputeSpeedStats([]float64{0.4})
	if single.P50 != 0.4 || single.P90 != 0.4 {
		t.Errorf("single sample quantiles = %v, %v, want 0.4", single.P50, single.P90)
	}
}

func TestComputeSpeedStats(t *testing.T) {
	values := []float64{0.5, 0.1, 0.4, 0.2, 0.3}
	s := ComputeSpeedStats(values)

	if math.Abs(s.Mean-0.3) > 1e-9 {
		t.Errorf("expected mean 0.3, got %v", s.Mean)
	}
	if math.Abs(s.Std-math.Sqrt(0.02)) > 1e-9 {
		t.Errorf("expected population std %v, got %v", math.Sqrt(0.02), s.Std)
	}
	if !(s.P50 >= 0.2 && s.P50 <= 0.3) {
		t.Errorf("expected p50 between the middle samples, got %v", s.P50)
	}
	if s.Max != 0.5 {
		t.Errorf("expected max 0.5, got %v", s.Max)
	}

	// Input order is preserved
	if values[0] != 0.5 {
		t.Error("expected input slice to be left unsorted")
	}
}

func TestComputeSpeedStatsEmpty(t *testing.T) {
	if s := ComputeSpeedStats(nil); s != (SpeedStats{}) {
		t.Errorf("expected zero stats for no particles, got %+v", s)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(1.0, 0.25)
	if c.WindowDurationTicks() != 4 {
		t.Fatalf("expected 4 ticks per window, got %d", c.WindowDurationTicks())
	}

	c.RecordSnapshot(100 * time.Microsecond)
	c.RecordSnapshot(300 * time.Microsecond)
	c.RecordTilt(10)
	c.RecordTilt(20)

	if c.ShouldFlush(2) {
		t.Error("expected no flush mid-window")
	}
	if !c.ShouldFlush(4) {
		t.Error("expected flush at window end")
	}

	stats := c.Flush(4, 1.0,
		[]float64{0.1, 0.3},
		[]float64{-0.2, 0.2}, []float64{0.1, 0.3},
		FieldSummary{FieldMaxVel: 0.6, HeightMax: 1.5},
	)

	if stats.Snapshots != 2 || stats.StallTotalUS != 400 || stats.StallMaxUS != 300 {
		t.Errorf("unexpected sampler stats: %+v", stats)
	}
	if stats.TiltDegMean != 15 || stats.TiltDegMax != 20 {
		t.Errorf("unexpected tilt stats: mean %v max %v", stats.TiltDegMean, stats.TiltDegMax)
	}
	if math.Abs(stats.CentroidX) > 1e-9 || math.Abs(stats.CentroidY-0.2) > 1e-9 {
		t.Errorf("unexpected centroid (%v,%v)", stats.CentroidX, stats.CentroidY)
	}
	if stats.Particles != 2 || stats.FieldMaxVel != 0.6 {
		t.Errorf("unexpected particle/field stats: %+v", stats)
	}

	// Counters reset for the next window
	next := c.Flush(8, 2.0, nil, nil, nil, FieldSummary{})
	if next.Snapshots != 0 || next.TiltDegMax != 0 || next.WindowStartTick != 4 {
		t.Errorf("expected reset window, got %+v", next)
	}
}
