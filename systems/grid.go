package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Grids are square and row-major: cell (i, j) lives at j*Res+i, i runs along
// x/u and j along y/v. Cell centers sit at u = (i+0.5)/Res.

// ScalarField is a square grid of scalars (height, rim mask).
type ScalarField struct {
	Res  int
	Data []float32
}

// NewScalarField allocates a zeroed res×res field.
func NewScalarField(res int) *ScalarField {
	return &ScalarField{Res: res, Data: make([]float32, res*res)}
}

// At returns the value at (i, j) with indices clamped to the grid.
func (f *ScalarField) At(i, j int) float32 {
	return f.Data[clampIndex(j, f.Res)*f.Res+clampIndex(i, f.Res)]
}

// Set writes the value at (i, j). Out-of-range indices are ignored.
func (f *ScalarField) Set(i, j int, v float32) {
	if i < 0 || j < 0 || i >= f.Res || j >= f.Res {
		return
	}
	f.Data[j*f.Res+i] = v
}

// Clear zeroes the field.
func (f *ScalarField) Clear() {
	clear(f.Data)
}

// SampleGrid bilinearly samples at grid coordinates, where integer
// coordinates land exactly on cell values.
func (f *ScalarField) SampleGrid(gx, gy float32) float32 {
	x0, x1, tx := bilinearIndex(gx, f.Res)
	y0, y1, ty := bilinearIndex(gy, f.Res)

	v00 := f.Data[y0*f.Res+x0]
	v10 := f.Data[y0*f.Res+x1]
	v01 := f.Data[y1*f.Res+x0]
	v11 := f.Data[y1*f.Res+x1]

	a := v00 + (v10-v00)*tx
	b := v01 + (v11-v01)*tx
	return a + (b-a)*ty
}

// SampleUV bilinearly samples at normalized coordinates in [0,1]².
func (f *ScalarField) SampleUV(u, v float32) float32 {
	return f.SampleGrid(uvToGrid(u, f.Res), uvToGrid(v, f.Res))
}

// Max returns the largest value in the field.
func (f *ScalarField) Max() float32 {
	var m float32
	for i, v := range f.Data {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

// Sum returns the sum of all cells.
func (f *ScalarField) Sum() float64 {
	var s float64
	for _, v := range f.Data {
		s += float64(v)
	}
	return s
}

// CopyFrom copies src into f. Both fields must share a resolution.
func (f *ScalarField) CopyFrom(src *ScalarField) {
	copy(f.Data, src.Data)
}

// NormalField is a square grid of unit normals.
type NormalField struct {
	Res  int
	Data []mgl32.Vec3
}

// NewNormalField allocates a res×res field of upward normals.
func NewNormalField(res int) *NormalField {
	f := &NormalField{Res: res, Data: make([]mgl32.Vec3, res*res)}
	for i := range f.Data {
		f.Data[i] = mgl32.Vec3{0, 0, 1}
	}
	return f
}

// At returns the normal at (i, j) with indices clamped to the grid.
func (f *NormalField) At(i, j int) mgl32.Vec3 {
	return f.Data[clampIndex(j, f.Res)*f.Res+clampIndex(i, f.Res)]
}

// SampleUV bilinearly samples and renormalizes the normal at (u, v).
func (f *NormalField) SampleUV(u, v float32, eps float32) mgl32.Vec3 {
	x0, x1, tx := bilinearIndex(uvToGrid(u, f.Res), f.Res)
	y0, y1, ty := bilinearIndex(uvToGrid(v, f.Res), f.Res)

	n00 := f.Data[y0*f.Res+x0]
	n10 := f.Data[y0*f.Res+x1]
	n01 := f.Data[y1*f.Res+x0]
	n11 := f.Data[y1*f.Res+x1]

	a := n00.Add(n10.Sub(n00).Mul(tx))
	b := n01.Add(n11.Sub(n01).Mul(tx))
	return safeNormalize(a.Add(b.Sub(a).Mul(ty)), eps)
}

// VelocityField is a square grid of 2D velocities.
type VelocityField struct {
	Res  int
	Data []mgl32.Vec2
}

// NewVelocityField allocates a zeroed res×res field.
func NewVelocityField(res int) *VelocityField {
	return &VelocityField{Res: res, Data: make([]mgl32.Vec2, res*res)}
}

// At returns the velocity at (i, j) with indices clamped to the grid.
func (f *VelocityField) At(i, j int) mgl32.Vec2 {
	return f.Data[clampIndex(j, f.Res)*f.Res+clampIndex(i, f.Res)]
}

// SampleGrid bilinearly samples at grid coordinates: floor indices clamped
// to [0, Res-1], fractional weights blend the four surrounding cells.
func (f *VelocityField) SampleGrid(gx, gy float32) mgl32.Vec2 {
	x0, x1, tx := bilinearIndex(gx, f.Res)
	y0, y1, ty := bilinearIndex(gy, f.Res)

	v00 := f.Data[y0*f.Res+x0]
	v10 := f.Data[y0*f.Res+x1]
	v01 := f.Data[y1*f.Res+x0]
	v11 := f.Data[y1*f.Res+x1]

	ax := v00[0] + (v10[0]-v00[0])*tx
	ay := v00[1] + (v10[1]-v00[1])*tx
	bx := v01[0] + (v11[0]-v01[0])*tx
	by := v01[1] + (v11[1]-v01[1])*tx
	return mgl32.Vec2{ax + (bx-ax)*ty, ay + (by-ay)*ty}
}

// SampleUV bilinearly samples at normalized coordinates in [0,1]².
func (f *VelocityField) SampleUV(u, v float32) mgl32.Vec2 {
	return f.SampleGrid(uvToGrid(u, f.Res), uvToGrid(v, f.Res))
}

// MaxMagnitude returns the largest vector length in the field.
func (f *VelocityField) MaxMagnitude() float32 {
	var m float32
	for _, v := range f.Data {
		if l := v.Len(); l > m {
			m = l
		}
	}
	return m
}

// CopyFrom copies src into f. Both fields must share a resolution.
func (f *VelocityField) CopyFrom(src *VelocityField) {
	copy(f.Data, src.Data)
}

// Clear zeroes the field.
func (f *VelocityField) Clear() {
	clear(f.Data)
}

// uvToGrid maps a normalized coordinate to cell-center grid space.
func uvToGrid(u float32, res int) float32 {
	return u*float32(res) - 0.5
}

// bilinearIndex returns the two clamped neighbor indices and the blend weight.
func bilinearIndex(g float32, res int) (i0, i1 int, t float32) {
	f := float32(math.Floor(float64(g)))
	t = g - f
	i := int(f)
	return clampIndex(i, res), clampIndex(i+1, res), t
}
