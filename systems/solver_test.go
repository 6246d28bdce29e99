package systems

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/config"
)

func testParams() SolverParams {
	return SolverParams{
		KSlope:         0.6,
		KGravity:       1.0,
		MaxVel:         0.6,
		Damping:        1.0,
		GradientStep:   1.0 / 128,
		NormalStrength: 1.0,
		Epsilon:        1e-5,
		Footprint:      0.02,
		Deposit:        0.05,
	}
}

// gaussianHeight fills a res×res field with a centered bump of peak amp.
func gaussianHeight(res int, amp, sigma float64) *ScalarField {
	h := NewScalarField(res)
	for j := 0; j < res; j++ {
		y := (float64(j)+0.5)/float64(res) - 0.5
		for i := 0; i < res; i++ {
			x := (float64(i)+0.5)/float64(res) - 0.5
			r2 := x*x + y*y
			h.Data[j*res+i] = float32(amp * math.Exp(-r2/(2*sigma*sigma)))
		}
	}
	return h
}

func flatHeight(res int, value float32) *ScalarField {
	h := NewScalarField(res)
	for i := range h.Data {
		h.Data[i] = value
	}
	return h
}

func TestSolveVelocityBumpFlowsOutward(t *testing.T) {
	const rh, rv = 256, 128
	h := gaussianHeight(rh, 1.0, 0.1)
	normals := NewNormalField(rh)
	p := testParams()
	p.KGravity = 0
	NormalEstimator{Strength: p.NormalStrength, Epsilon: p.Epsilon}.Estimate(h, normals)
	rim := UniformRim(rh, 2)

	vel := NewVelocityField(rv)
	SolveVelocity(vel, h, normals, rim, mgl32.Vec3{0, -1, 0}, p)

	clamped := 0
	for j := 0; j < rv; j++ {
		y := (float32(j)+0.5)/rv - 0.5
		for i := 0; i < rv; i++ {
			x := (float32(i)+0.5)/rv - 0.5
			r := sqrtf(x*x + y*y)
			v := vel.Data[j*rv+i]
			mag := v.Len()

			if mag > p.MaxVel+1e-5 {
				t.Fatalf("cell (%d,%d): |v|=%f exceeds maxVel", i, j, mag)
			}
			if mag > p.MaxVel-1e-4 {
				clamped++
			}

			if r >= 0.05 && r <= 0.25 {
				cos := (v[0]*x + v[1]*y) / (mag * r)
				if cos < 0.99 {
					t.Errorf("cell (%d,%d) r=%.3f: velocity not radial, cos=%f", i, j, r, cos)
				}
			}
			if r > 0.45 && mag > 0.01 {
				t.Errorf("cell (%d,%d) r=%.3f: expected ~0 velocity far from bump, got %f", i, j, r, mag)
			}
		}
	}

	if clamped == 0 {
		t.Error("expected some cells clamped at maxVel near the bump")
	}
}

func TestSolveVelocityFlatTilt(t *testing.T) {
	const rh, rv = 64, 32
	h := flatHeight(rh, 0.25)
	normals := NewNormalField(rh)
	p := testParams()
	NormalEstimator{Strength: p.NormalStrength, Epsilon: p.Epsilon}.Estimate(h, normals)
	rim := UniformRim(rh, 1)

	// 30 degrees about X
	a := math.Pi / 6
	g := mgl32.Vec3{0, float32(-math.Sin(a)), float32(-math.Cos(a))}

	vel := NewVelocityField(rv)
	SolveVelocity(vel, h, normals, rim, g, p)

	want := mgl32.Vec2{0, -0.25} // kGravity*sqrt(0.25)*sin(30)
	for idx, v := range vel.Data {
		if absf(v[0]-want[0]) > 1e-4 || absf(v[1]-want[1]) > 1e-4 {
			t.Fatalf("cell %d: got %v, want %v", idx, v, want)
		}
	}
}

func TestSolveVelocityFlatTiltClamped(t *testing.T) {
	h := flatHeight(32, 0.25)
	normals := NewNormalField(32)
	p := testParams()
	p.MaxVel = 0.1
	rim := UniformRim(32, 1)

	vel := NewVelocityField(16)
	SolveVelocity(vel, h, normals, rim, mgl32.Vec3{0, -0.5, -0.866}, p)

	for idx, v := range vel.Data {
		if absf(v.Len()-0.1) > 1e-4 {
			t.Fatalf("cell %d: expected |v|=0.1, got %f", idx, v.Len())
		}
		if v[1] >= 0 {
			t.Fatalf("cell %d: clamp changed direction: %v", idx, v)
		}
	}
}

func TestSolveVelocityHeightCappedByRim(t *testing.T) {
	// Film thicker than the rim only counts up to the rim height
	h := flatHeight(32, 4)
	normals := NewNormalField(32)
	p := testParams()
	p.MaxVel = 2
	rim := UniformRim(32, 1)

	a := math.Pi / 6
	g := mgl32.Vec3{0, float32(-math.Sin(a)), float32(-math.Cos(a))}

	vel := NewVelocityField(16)
	SolveVelocity(vel, h, normals, rim, g, p)

	want := mgl32.Vec2{0, -0.5} // kGravity*sqrt(min(4, 1))*sin(30)
	for idx, v := range vel.Data {
		if absf(v[0]-want[0]) > 1e-4 || absf(v[1]-want[1]) > 1e-4 {
			t.Fatalf("cell %d: got %v, want %v", idx, v, want)
		}
	}
}

func TestSolveVelocityDampsBeforeClamp(t *testing.T) {
	a := math.Pi / 6
	g := mgl32.Vec3{0, float32(-math.Sin(a)), float32(-math.Cos(a))}

	// Raw speed is kGravity*sqrt(0.25)*sin(30) = 0.25 before damping
	tests := []struct {
		name   string
		maxVel float32
		want   float32
	}{
		{"damped still above cap", 0.1, 0.1},
		{"damped below cap", 0.2, 0.125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := flatHeight(32, 0.25)
			normals := NewNormalField(32)
			p := testParams()
			p.Damping = 0.5
			p.MaxVel = tt.maxVel
			rim := UniformRim(32, 1)

			vel := NewVelocityField(16)
			SolveVelocity(vel, h, normals, rim, g, p)

			for idx, v := range vel.Data {
				if absf(v.Len()-tt.want) > 1e-4 {
					t.Fatalf("cell %d: expected |v|=%f, got %f", idx, tt.want, v.Len())
				}
			}
		})
	}
}

func TestSolveVelocityDownhill(t *testing.T) {
	// Height rises along +x, so slope flow must point toward -x
	const res = 64
	h := NewScalarField(res)
	for j := 0; j < res; j++ {
		for i := 0; i < res; i++ {
			h.Data[j*res+i] = 0.1 + 0.2*float32(i)/res
		}
	}
	normals := NewNormalField(res)
	p := testParams()
	p.KGravity = 0
	rim := UniformRim(res, 1)

	vel := NewVelocityField(32)
	SolveVelocity(vel, h, normals, rim, mgl32.Vec3{0, 0, -1}, p)

	v := vel.At(16, 16)
	if v[0] >= 0 {
		t.Errorf("expected flow toward lower height (-x), got %v", v)
	}
	if absf(v[1]) > 1e-5 {
		t.Errorf("expected no flow across the ramp, got %v", v)
	}
	// grad = 0.2 per unit u, so v.x = -0.6*0.2
	if absf(v[0]+0.12) > 1e-3 {
		t.Errorf("expected v.x ~ -0.12, got %f", v[0])
	}
}

func TestSolveVelocityOutsideRimIsZero(t *testing.T) {
	const res = 32
	h := gaussianHeight(res, 1, 0.1)
	normals := NewNormalField(res)

	values := make([]float32, res*res)
	for j := 0; j < res; j++ {
		for i := 0; i < res/2; i++ {
			values[j*res+i] = 1
		}
		// Right half is outside; include a NaN cell
		values[j*res+res-1] = float32(math.NaN())
	}
	rim := NewRimMask(res, values)

	vel := NewVelocityField(res)
	SolveVelocity(vel, h, normals, rim, mgl32.Vec3{1, 0, -1}, testParams())

	for j := 0; j < res; j++ {
		for i := res/2 + 1; i < res; i++ {
			if v := vel.At(i, j); v[0] != 0 || v[1] != 0 {
				t.Fatalf("cell (%d,%d) outside rim: expected zero, got %v", i, j, v)
			}
		}
	}
	if vel.At(4, 4).Len() == 0 {
		t.Error("expected nonzero flow inside rim")
	}
}

func TestSolveVelocityRespectsMaxVel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const res = 32
	for trial := 0; trial < 10; trial++ {
		h := NewScalarField(res)
		for i := range h.Data {
			h.Data[i] = rng.Float32() * 5
		}
		normals := NewNormalField(res)
		p := testParams()
		p.KSlope = rng.Float32() * 10
		p.KGravity = rng.Float32() * 10
		p.MaxVel = 0.05 + rng.Float32()
		p.Damping = rng.Float32()
		NormalEstimator{Strength: 1, Epsilon: p.Epsilon}.Estimate(h, normals)

		g := mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, -1}
		vel := NewVelocityField(res)
		SolveVelocity(vel, h, normals, UniformRim(res, 3), g, p)

		if m := vel.MaxMagnitude(); m > p.MaxVel*(1+1e-5) {
			t.Fatalf("trial %d: max |v| %f exceeds maxVel %f", trial, m, p.MaxVel)
		}
	}
}

func TestCPUSolverDispatch(t *testing.T) {
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	cfg.Grid.HeightResolution = 64
	cfg.Grid.VelocityResolution = 32
	cfg.Recompute()

	s := NewCPUSolver(cfg, UniformRim(64, 1))

	// Empty particle set gives a zero height field and a gravity-only flow
	s.Dispatch(nil, mgl32.Vec3{0, 0, -1})
	if s.Height().Max() != 0 {
		t.Errorf("expected zero height with no particles, got max %f", s.Height().Max())
	}
	out := NewVelocityField(32)
	s.Readback(out)
	if out.MaxMagnitude() != 0 {
		t.Errorf("expected zero velocity with vertical gravity, got %f", out.MaxMagnitude())
	}

	positions := make([]components.Position, 200)
	for i := range positions {
		positions[i] = components.Position{X: 0, Y: 0}
	}
	s.Dispatch(positions, mgl32.Vec3{0, 0, -1})
	s.Readback(out)

	// A pile at the center spreads outward
	right := out.SampleUV(0.5+0.03, 0.5)
	if right[0] <= 0 {
		t.Errorf("expected outward flow right of the pile, got %v", right)
	}
	if out.MaxMagnitude() > s.Params().MaxVel+1e-5 {
		t.Errorf("readback exceeds maxVel: %f", out.MaxMagnitude())
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
