package systems

import (
	"math"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/puddle/config"
)

// RimMask delimits the simulation domain and caps the height at each point.
// Values <= 0 are outside the domain. The mask has no setters: it is
// immutable once built.
type RimMask struct {
	field *ScalarField
}

// NewRimMask copies values into a new res×res mask.
func NewRimMask(res int, values []float32) *RimMask {
	f := NewScalarField(res)
	copy(f.Data, values)
	return &RimMask{field: f}
}

// UniformRim builds a mask with the same value everywhere.
func UniformRim(res int, value float32) *RimMask {
	f := NewScalarField(res)
	for i := range f.Data {
		f.Data[i] = value
	}
	return &RimMask{field: f}
}

// ProceduralRim builds a circular dish centered on the domain. The edge radius
// is perturbed by simplex noise so the liquid meets an uneven lip, and the
// cap height eases down over the outer tenth of the dish.
func ProceduralRim(res int, cfg config.RimConfig) *RimMask {
	noise := opensimplex.NewNormalized(cfg.Seed)
	f := NewScalarField(res)

	radius := cfg.Radius
	wobble := cfg.Wobble
	maxHeight := float32(cfg.MaxHeight)

	for j := 0; j < res; j++ {
		y := (float64(j)+0.5)/float64(res) - 0.5
		for i := 0; i < res; i++ {
			x := (float64(i)+0.5)/float64(res) - 0.5
			d := math.Hypot(x, y)

			angle := math.Atan2(y, x)
			edge := radius + wobble*(2*noise.Eval2(math.Cos(angle)*2, math.Sin(angle)*2)-1)
			if d >= edge || edge <= 0 {
				continue
			}

			// Ease from full height to a thin lip over the outer band
			band := 0.1 * edge
			h := maxHeight
			if d > edge-band {
				t := float32((edge - d) / band)
				h = maxHeight * (0.25 + 0.75*t)
			}
			f.Data[j*res+i] = h
		}
	}
	return &RimMask{field: f}
}

// Res returns the mask resolution.
func (r *RimMask) Res() int {
	return r.field.Res
}

// At returns the mask value at cell (i, j).
func (r *RimMask) At(i, j int) float32 {
	return r.field.At(i, j)
}

// SampleUV bilinearly samples the mask at (u, v).
func (r *RimMask) SampleUV(u, v float32) float32 {
	return r.field.SampleUV(u, v)
}

// Inside reports whether the domain position (x, y) lies inside the rim.
func (r *RimMask) Inside(x, y float32) bool {
	return r.SampleUV(x+0.5, y+0.5) > 0
}

// Values returns a copy of the mask data, e.g. for uploading to a texture.
func (r *RimMask) Values() []float32 {
	out := make([]float32, len(r.field.Data))
	copy(out, r.field.Data)
	return out
}

// Coverage returns the fraction of cells inside the domain.
func (r *RimMask) Coverage() float64 {
	inside := 0
	for _, v := range r.field.Data {
		if v > 0 {
			inside++
		}
	}
	return float64(inside) / float64(len(r.field.Data))
}
