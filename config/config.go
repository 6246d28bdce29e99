// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Solver backends.
const (
	BackendCPU = "cpu"
	BackendGPU = "gpu"
)

// Orientation modes.
const (
	OrientationSensor = "sensor"
	OrientationManual = "manual"
)

// Initial particle distributions.
const (
	DistributionUniform = "uniform"
	DistributionDisc    = "disc"
	DistributionNoise   = "noise"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Screen      ScreenConfig      `yaml:"screen"`
	Physics     PhysicsConfig     `yaml:"physics"`
	Grid        GridConfig        `yaml:"grid"`
	Solver      SolverConfig      `yaml:"solver"`
	Particles   ParticlesConfig   `yaml:"particles"`
	Sampler     SamplerConfig     `yaml:"sampler"`
	Orientation OrientationConfig `yaml:"orientation"`
	Rim         RimConfig         `yaml:"rim"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Stream      StreamConfig      `yaml:"stream"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// PhysicsConfig holds the fixed tick used by headless runs.
type PhysicsConfig struct {
	DT float64 `yaml:"dt"`
}

// GridConfig holds field resolutions and the particle footprint.
type GridConfig struct {
	HeightResolution   int     `yaml:"height_resolution"`   // Rh
	VelocityResolution int     `yaml:"velocity_resolution"` // Rv, clamped to Rh
	Footprint          float64 `yaml:"footprint"`           // Splat radius in domain units
	Deposit            float64 `yaml:"deposit"`             // Peak height added per particle
	NormalStrength     float64 `yaml:"normal_strength"`     // Scales height partials before normalizing
}

// SolverConfig holds velocity field tunables.
type SolverConfig struct {
	Backend        string  `yaml:"backend"`
	KSlope         float64 `yaml:"k_slope"`
	KGravity       float64 `yaml:"k_gravity"`    // Tilt-to-velocity scale
	MaxVelocity    float64 `yaml:"max_velocity"` // maxVel
	Damping        float64 `yaml:"damping"`
	GradientStep   float64 `yaml:"gradient_step"` // Central difference step in UV units
	Epsilon        float64 `yaml:"epsilon"`
	Gravity        float64 `yaml:"gravity"`          // Magnitude of G
	GPUHeightRange float64 `yaml:"gpu_height_range"` // Height mapped to a full 8-bit channel
}

// ParticlesConfig holds particle count, distribution and integration tunables.
type ParticlesConfig struct {
	Count        int     `yaml:"count"`
	Distribution string  `yaml:"distribution"`
	Radius       float64 `yaml:"radius"` // Disc/noise spawn radius
	Seed         int64   `yaml:"seed"`
	Friction     float64 `yaml:"friction"`
	MaxSpeed     float64 `yaml:"max_speed"`
	Smoothing    float64 `yaml:"smoothing"`
	Scale        float64 `yaml:"scale"`
}

// SamplerConfig holds device-to-host readback timing.
type SamplerConfig struct {
	Interval    float64 `yaml:"interval"`      // Seconds between snapshots
	StallWarnMS float64 `yaml:"stall_warn_ms"` // Log readbacks slower than this (0 disables)
}

// OrientationConfig holds tilt input parameters.
type OrientationConfig struct {
	Mode            string  `yaml:"mode"`
	AllowSensor     bool    `yaml:"allow_sensor"`
	ReplayPath      string  `yaml:"replay_path"`
	DeadZoneDeg     float64 `yaml:"dead_zone_deg"`
	SlerpFactor     float64 `yaml:"slerp_factor"`
	MaxTiltDeg      float64 `yaml:"max_tilt_deg"`
	KeyRateDeg      float64 `yaml:"key_rate_deg"`       // Degrees per second while a direction is held
	PointerDegPerPx float64 `yaml:"pointer_deg_per_px"` // Degrees per pixel of drag
}

// RimConfig describes the rim mask source.
type RimConfig struct {
	Path      string  `yaml:"path"` // Image file; empty = procedural dish
	Radius    float64 `yaml:"radius"`
	Wobble    float64 `yaml:"wobble"`
	MaxHeight float64 `yaml:"max_height"`
	Seed      int64   `yaml:"seed"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// StreamConfig holds the diagnostic websocket stream settings.
type StreamConfig struct {
	Addr     string  `yaml:"addr"` // Empty disables the stream
	Interval float64 `yaml:"interval"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32         float32 // Physics.DT as float32
	TexelH       float32 // 1/Rh
	TexelV       float32 // 1/Rv
	GradientStep float32 // Solver.GradientStep floored by epsilon
	Epsilon      float32
	DeadZoneRad  float32
	MaxTiltRad   float32
	KeyRateRad   float32
	PointerRad   float32 // Radians per pixel of drag
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	return cfg, nil
}

// Defaults returns a fresh copy of the embedded defaults with derived values filled in.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// Recompute re-applies clamping and derived values after fields were edited in place.
func (c *Config) Recompute() {
	c.computeDerived()
}

// computeDerived clamps out-of-range tunables and calculates derived values.
// Nothing is rejected here: bad values are pulled back into a safe range.
func (c *Config) computeDerived() {
	c.Grid.HeightResolution = clampInt(c.Grid.HeightResolution, 4, 4096)
	c.Grid.VelocityResolution = clampInt(c.Grid.VelocityResolution, 4, c.Grid.HeightResolution)

	if c.Physics.DT <= 0 {
		c.Physics.DT = 1.0 / 60.0
	}

	c.Solver.Backend = strings.ToLower(strings.TrimSpace(c.Solver.Backend))
	if c.Solver.Backend != BackendGPU {
		c.Solver.Backend = BackendCPU
	}
	c.Solver.Epsilon = clampF(c.Solver.Epsilon, 1e-9, 1e-2)
	c.Solver.KSlope = clampF(c.Solver.KSlope, 0, 100)
	c.Solver.KGravity = clampF(c.Solver.KGravity, 0, 10)
	c.Solver.MaxVelocity = clampF(c.Solver.MaxVelocity, 1e-4, 100)
	c.Solver.Damping = clampF(c.Solver.Damping, 0, 1)
	c.Solver.Gravity = clampF(c.Solver.Gravity, 0, 100)
	if c.Solver.GPUHeightRange <= 0 {
		c.Solver.GPUHeightRange = 1
	}

	texelH := 1.0 / float64(c.Grid.HeightResolution)
	c.Grid.Footprint = clampF(c.Grid.Footprint, texelH, 0.5)
	c.Grid.Deposit = clampF(c.Grid.Deposit, 0, 100)
	c.Grid.NormalStrength = clampF(c.Grid.NormalStrength, 0, 100)

	c.Particles.Count = clampInt(c.Particles.Count, 0, 1<<22)
	switch c.Particles.Distribution {
	case DistributionUniform, DistributionDisc, DistributionNoise:
	default:
		c.Particles.Distribution = DistributionDisc
	}
	c.Particles.Radius = clampF(c.Particles.Radius, 0, 0.5)
	c.Particles.Friction = clampF(c.Particles.Friction, 0, 1000)
	c.Particles.MaxSpeed = clampF(c.Particles.MaxSpeed, 1e-4, 100)
	c.Particles.Smoothing = clampF(c.Particles.Smoothing, 0, 1)
	c.Particles.Scale = clampF(c.Particles.Scale, 0, 100)

	c.Sampler.Interval = clampF(c.Sampler.Interval, 0, 60)
	c.Sampler.StallWarnMS = clampF(c.Sampler.StallWarnMS, 0, 10000)

	if c.Orientation.Mode != OrientationSensor {
		c.Orientation.Mode = OrientationManual
	}
	c.Orientation.DeadZoneDeg = clampF(c.Orientation.DeadZoneDeg, 0, 90)
	c.Orientation.SlerpFactor = clampF(c.Orientation.SlerpFactor, 0, 1)
	c.Orientation.MaxTiltDeg = clampF(c.Orientation.MaxTiltDeg, 0, 89)
	c.Orientation.KeyRateDeg = clampF(c.Orientation.KeyRateDeg, 0, 720)
	c.Orientation.PointerDegPerPx = clampF(c.Orientation.PointerDegPerPx, 0, 10)

	c.Rim.Radius = clampF(c.Rim.Radius, 0, 0.5)
	c.Rim.Wobble = clampF(c.Rim.Wobble, 0, 0.5)
	c.Rim.MaxHeight = clampF(c.Rim.MaxHeight, 0, 100)

	if c.Telemetry.StatsWindow <= 0 {
		c.Telemetry.StatsWindow = 2
	}
	if c.Stream.Interval <= 0 {
		c.Stream.Interval = 0.1
	}

	c.Derived.DT32 = float32(c.Physics.DT)
	c.Derived.TexelH = float32(texelH)
	c.Derived.TexelV = float32(1.0 / float64(c.Grid.VelocityResolution))
	c.Derived.Epsilon = float32(c.Solver.Epsilon)
	c.Derived.GradientStep = float32(math.Max(c.Solver.GradientStep, c.Solver.Epsilon))
	c.Derived.DeadZoneRad = float32(c.Orientation.DeadZoneDeg * math.Pi / 180)
	c.Derived.MaxTiltRad = float32(c.Orientation.MaxTiltDeg * math.Pi / 180)
	c.Derived.KeyRateRad = float32(c.Orientation.KeyRateDeg * math.Pi / 180)
	c.Derived.PointerRad = float32(c.Orientation.PointerDegPerPx * math.Pi / 180)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func clampF(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
