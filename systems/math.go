package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Domain bounds for particle positions.
const (
	domainMin float32 = -0.5
	domainMax float32 = 0.5
)

// clampFloat clamps a float32 value between min and max.
func clampFloat(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps a float32 value to the [0, 1] range.
func clamp01(v float32) float32 {
	return clampFloat(v, 0, 1)
}

// clampDomain clamps a coordinate to the domain. NaN collapses to the lower bound.
func clampDomain(v float32) float32 {
	if !(v >= domainMin) {
		return domainMin
	}
	if v > domainMax {
		return domainMax
	}
	return v
}

func clampIndex(i, res int) int {
	if i < 0 {
		return 0
	}
	if i >= res {
		return res - 1
	}
	return i
}

// clampLength scales v down to max length, preserving direction.
func clampLength(v mgl32.Vec2, max float32) mgl32.Vec2 {
	l2 := v[0]*v[0] + v[1]*v[1]
	if l2 <= max*max {
		return v
	}
	scale := max / float32(math.Sqrt(float64(l2)))
	return mgl32.Vec2{v[0] * scale, v[1] * scale}
}

// safeNormalize divides by the length floored at eps, so a zero vector
// stays finite instead of producing NaNs.
func safeNormalize(v mgl32.Vec3, eps float32) mgl32.Vec3 {
	l := v.Len()
	if l < eps {
		l = eps
	}
	return v.Mul(1 / l)
}

// sqrtf is a float32 square root.
func sqrtf(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
