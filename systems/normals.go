package systems

import "github.com/go-gl/mathgl/mgl32"

// NormalEstimator derives unit normals from a height grid by central differences.
type NormalEstimator struct {
	Strength float32 // scales the partials before normalizing
	Epsilon  float32
}

// Estimate writes normalize(-dx, -dy, 1) for every cell of h into dst.
// Neighbors are one texel (1/Res) away; edge cells clamp to the grid.
func (e NormalEstimator) Estimate(h *ScalarField, dst *NormalField) {
	res := h.Res
	offset := 1 / float32(res)
	if offset < e.Epsilon {
		offset = e.Epsilon
	}
	scale := e.Strength / (2 * offset)

	for j := 0; j < res; j++ {
		for i := 0; i < res; i++ {
			dx := (h.At(i+1, j) - h.At(i-1, j)) * scale
			dy := (h.At(i, j+1) - h.At(i, j-1)) * scale
			dst.Data[j*res+i] = safeNormalize(mgl32.Vec3{-dx, -dy, 1}, e.Epsilon)
		}
	}
}
