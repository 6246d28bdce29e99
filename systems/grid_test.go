package systems

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/puddle/components"
)

func TestScalarFieldSampleGridExactAtNodes(t *testing.T) {
	f := NewScalarField(8)
	for i := range f.Data {
		f.Data[i] = float32(i) * 0.37
	}

	for j := 0; j < 8; j++ {
		for i := 0; i < 8; i++ {
			got := f.SampleGrid(float32(i), float32(j))
			if got != f.At(i, j) {
				t.Fatalf("SampleGrid(%d,%d) = %f, want %f", i, j, got, f.At(i, j))
			}
		}
	}
}

func TestScalarFieldSampleUVCellCenters(t *testing.T) {
	f := NewScalarField(4)
	for i := range f.Data {
		f.Data[i] = float32(i)
	}

	// Cell (2,1) center
	got := f.SampleUV(2.5/4, 1.5/4)
	if got != f.At(2, 1) {
		t.Errorf("expected exact cell value %f, got %f", f.At(2, 1), got)
	}

	// Halfway between (0,0) and (1,0)
	got = f.SampleUV(1.0/4, 0.5/4)
	if math.Abs(float64(got-0.5)) > 1e-6 {
		t.Errorf("expected 0.5 between cells, got %f", got)
	}

	// Beyond the edge clamps to the border cell
	if got := f.SampleUV(-1, -1); got != f.At(0, 0) {
		t.Errorf("expected clamped corner %f, got %f", f.At(0, 0), got)
	}
	if got := f.SampleUV(2, 2); got != f.At(3, 3) {
		t.Errorf("expected clamped corner %f, got %f", f.At(3, 3), got)
	}
}

func TestVelocityFieldSampleBilinear(t *testing.T) {
	f := NewVelocityField(2)
	f.Data[0] = mgl32.Vec2{0, 0}
	f.Data[1] = mgl32.Vec2{1, 0}
	f.Data[2] = mgl32.Vec2{0, 1}
	f.Data[3] = mgl32.Vec2{1, 1}

	v := f.SampleGrid(0.5, 0.5)
	if math.Abs(float64(v[0]-0.5)) > 1e-6 || math.Abs(float64(v[1]-0.5)) > 1e-6 {
		t.Errorf("expected (0.5,0.5) at the center, got %v", v)
	}
	if v := f.SampleGrid(1, 0); v != f.Data[1] {
		t.Errorf("expected exact node value, got %v", v)
	}
}

func TestHeightAccumulatorEmpty(t *testing.T) {
	acc := NewHeightAccumulator(32, 0.05, 0.1)
	h := acc.Accumulate(nil)
	if h.Max() != 0 || h.Sum() != 0 {
		t.Errorf("expected zero field for no particles, max=%f sum=%f", h.Max(), h.Sum())
	}
}

func TestHeightAccumulatorAdditive(t *testing.T) {
	acc := NewHeightAccumulator(32, 0.05, 0.1)
	one := acc.Accumulate([]components.Position{{X: 0.1, Y: -0.1}}).Sum()
	two := acc.Accumulate([]components.Position{{X: 0.1, Y: -0.1}, {X: 0.1, Y: -0.1}}).Sum()

	if one <= 0 {
		t.Fatal("expected a positive footprint")
	}
	if math.Abs(two-2*one) > 1e-4 {
		t.Errorf("expected additive footprints: one=%f two=%f", one, two)
	}

	// Each call starts from a clear grid
	again := acc.Accumulate([]components.Position{{X: 0.1, Y: -0.1}}).Sum()
	if math.Abs(again-one) > 1e-6 {
		t.Errorf("expected height to reset per call: %f vs %f", again, one)
	}
}

func TestHeightAccumulatorPeakAtParticle(t *testing.T) {
	acc := NewHeightAccumulator(64, 0.05, 0.1)
	h := acc.Accumulate([]components.Position{{X: 0, Y: 0}})

	center := h.SampleUV(0.5, 0.5)
	side := h.SampleUV(0.53, 0.5)
	far := h.SampleUV(0.7, 0.5)
	if !(center > side && side > far) {
		t.Errorf("expected height to fall off from the particle: %f %f %f", center, side, far)
	}
	if far != 0 {
		t.Errorf("expected no height outside the footprint, got %f", far)
	}
}

func TestHeightAccumulatorEdgeParticle(t *testing.T) {
	acc := NewHeightAccumulator(16, 0.1, 1)
	h := acc.Accumulate([]components.Position{{X: 0.5, Y: 0.5}, {X: -0.5, Y: -0.5}})
	if h.At(15, 15) <= 0 || h.At(0, 0) <= 0 {
		t.Errorf("expected corner cells to receive height: %f %f", h.At(15, 15), h.At(0, 0))
	}
}

func TestNormalEstimatorFlat(t *testing.T) {
	h := flatHeight(16, 0.3)
	n := NewNormalField(16)
	NormalEstimator{Strength: 1, Epsilon: 1e-5}.Estimate(h, n)

	for idx, v := range n.Data {
		if v != (mgl32.Vec3{0, 0, 1}) {
			t.Fatalf("cell %d: expected up normal on flat height, got %v", idx, v)
		}
	}
}

func TestNormalEstimatorSlope(t *testing.T) {
	const res = 16
	h := NewScalarField(res)
	for j := 0; j < res; j++ {
		for i := 0; i < res; i++ {
			h.Data[j*res+i] = float32(j) / res
		}
	}
	n := NewNormalField(res)
	NormalEstimator{Strength: 1, Epsilon: 1e-5}.Estimate(h, n)

	v := n.At(8, 8)
	if v[1] >= 0 || math.Abs(float64(v[0])) > 1e-6 {
		t.Errorf("expected normal tilted toward -y on a +y ramp, got %v", v)
	}
	if l := v.Len(); math.Abs(float64(l-1)) > 1e-5 {
		t.Errorf("expected unit normal, got length %f", l)
	}
}

func TestNormalFieldSampleStaysUnit(t *testing.T) {
	n := NewNormalField(2)
	n.Data[0] = mgl32.Vec3{1, 0, 0}
	n.Data[1] = mgl32.Vec3{0, 1, 0}
	n.Data[2] = mgl32.Vec3{0, 0, 1}
	n.Data[3] = mgl32.Vec3{0, 0, 1}

	v := n.SampleUV(0.5, 0.5, 1e-5)
	if l := v.Len(); math.Abs(float64(l-1)) > 1e-5 {
		t.Errorf("expected renormalized sample, got length %f", l)
	}
}
