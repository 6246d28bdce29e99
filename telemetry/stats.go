package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated flow statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	Particles int `csv:"particles"`

	// Particle speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Fields (sampled at window end)
	FieldMaxVel float64 `csv:"field_max_vel"` // Largest cell velocity in the snapshot
	HeightMean  float64 `csv:"height_mean"`
	HeightMax   float64 `csv:"height_max"`

	// Centroid of the particle cloud
	CentroidX float64 `csv:"centroid_x"`
	CentroidY float64 `csv:"centroid_y"`

	// Sampler activity during the window
	Snapshots      int     `csv:"snapshots"`
	StallTotalUS   int64   `csv:"stall_total_us"`
	StallMaxUS     int64   `csv:"stall_max_us"`
	SnapshotAgeSec float64 `csv:"snapshot_age"` // Time since the snapshot in use was captured

	// Orientation
	TiltDegMean float64 `csv:"tilt_deg_mean"`
	TiltDegMax  float64 `csv:"tilt_deg_max"`
}

// SpeedStats summarizes a set of particle speeds.
type SpeedStats struct {
	Mean, Std     float64
	P50, P90, Max float64
}

// ComputeSpeedStats calculates mean, population std, median, p90 and max.
// Quantiles interpolate the empirical distribution (gonum LinInterp).
// values is not modified.
func ComputeSpeedStats(values []float64) SpeedStats {
	if len(values) == 0 {
		return SpeedStats{}
	}

	mean, std := stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return SpeedStats{
		Mean: mean,
		Std:  std,
		P50:  stat.Quantile(0.50, stat.LinInterp, sorted, nil),
		P90:  stat.Quantile(0.90, stat.LinInterp, sorted, nil),
		Max:  floats.Max(sorted),
	}
}

// LogStats logs the window stats.
func (s WindowStats) LogStats() {
	slog.Info("flow",
		"tick", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"particles", s.Particles,
		"speed_mean", s.SpeedMean,
		"speed_p90", s.SpeedP90,
		"field_max_vel", s.FieldMaxVel,
		"height_max", s.HeightMax,
		"snapshots", s.Snapshots,
		"stall_max_us", s.StallMaxUS,
		"tilt_deg", s.TiltDegMean,
	)
}
