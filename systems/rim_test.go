package systems

import (
	"testing"

	"github.com/pthm-cable/puddle/config"
)

func TestProceduralRimDish(t *testing.T) {
	rim := ProceduralRim(64, config.RimConfig{Radius: 0.4, Wobble: 0.02, MaxHeight: 2, Seed: 3})

	if !rim.Inside(0, 0) {
		t.Error("expected the center inside the rim")
	}
	if rim.Inside(0.49, 0.49) {
		t.Error("expected the corner outside the rim")
	}
	if v := rim.SampleUV(0.5, 0.5); v != 2 {
		t.Errorf("expected full height at the center, got %f", v)
	}

	cov := rim.Coverage()
	// pi*0.4^2 ~ 0.50 of the unit square
	if cov < 0.4 || cov > 0.6 {
		t.Errorf("unexpected coverage %f", cov)
	}
}

func TestRimMaskValuesIsCopy(t *testing.T) {
	rim := UniformRim(4, 1)
	vals := rim.Values()
	vals[0] = -1
	if rim.At(0, 0) != 1 {
		t.Error("expected Values to return a copy")
	}
}

func TestNewRimMaskOutside(t *testing.T) {
	values := make([]float32, 16)
	values[5] = 1
	rim := NewRimMask(4, values)
	if rim.Coverage() != 1.0/16 {
		t.Errorf("expected 1/16 coverage, got %f", rim.Coverage())
	}
	if rim.At(1, 1) != 1 || rim.At(0, 0) != 0 {
		t.Errorf("unexpected mask values")
	}
}
