package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsLoad(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}

	if cfg.Grid.HeightResolution != 256 {
		t.Errorf("expected height resolution 256, got %d", cfg.Grid.HeightResolution)
	}
	if cfg.Grid.VelocityResolution > cfg.Grid.HeightResolution {
		t.Errorf("velocity resolution %d exceeds height resolution %d",
			cfg.Grid.VelocityResolution, cfg.Grid.HeightResolution)
	}
	if cfg.Solver.Backend != BackendCPU {
		t.Errorf("expected cpu backend by default, got %q", cfg.Solver.Backend)
	}
	if cfg.Derived.TexelH != float32(1.0/256.0) {
		t.Errorf("expected texel 1/256, got %f", cfg.Derived.TexelH)
	}
}

func TestUserFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("solver:\n  k_slope: 1.5\nparticles:\n  count: 10\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Solver.KSlope != 1.5 {
		t.Errorf("expected k_slope 1.5, got %f", cfg.Solver.KSlope)
	}
	if cfg.Particles.Count != 10 {
		t.Errorf("expected 10 particles, got %d", cfg.Particles.Count)
	}
	// Untouched fields keep their defaults
	if cfg.Solver.MaxVelocity != 0.6 {
		t.Errorf("expected default max_velocity 0.6, got %f", cfg.Solver.MaxVelocity)
	}
}

func TestOutOfRangeTunablesAreClamped(t *testing.T) {
	cfg, err := Defaults()
	if err != nil {
		t.Fatal(err)
	}

	cfg.Solver.KGravity = 250
	cfg.Solver.Damping = 1.7
	cfg.Particles.Smoothing = -3
	cfg.Grid.VelocityResolution = 100000
	cfg.Solver.Backend = "quantum"
	cfg.Orientation.MaxTiltDeg = 120
	cfg.Recompute()

	if cfg.Solver.KGravity != 10 {
		t.Errorf("expected k_gravity clamped to 10, got %f", cfg.Solver.KGravity)
	}
	if cfg.Solver.Damping != 1 {
		t.Errorf("expected damping clamped to 1, got %f", cfg.Solver.Damping)
	}
	if cfg.Particles.Smoothing != 0 {
		t.Errorf("expected smoothing clamped to 0, got %f", cfg.Particles.Smoothing)
	}
	if cfg.Grid.VelocityResolution != cfg.Grid.HeightResolution {
		t.Errorf("expected Rv clamped to Rh=%d, got %d", cfg.Grid.HeightResolution, cfg.Grid.VelocityResolution)
	}
	if cfg.Solver.Backend != BackendCPU {
		t.Errorf("expected unknown backend to fall back to cpu, got %q", cfg.Solver.Backend)
	}
	if cfg.Orientation.MaxTiltDeg != 89 {
		t.Errorf("expected max tilt clamped to 89, got %f", cfg.Orientation.MaxTiltDeg)
	}
}

func TestMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestWriteYAMLRoundtrip(t *testing.T) {
	cfg, err := Defaults()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Solver.KSlope = 0.9

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Solver.KSlope != 0.9 {
		t.Errorf("expected k_slope 0.9 after roundtrip, got %f", loaded.Solver.KSlope)
	}
}
