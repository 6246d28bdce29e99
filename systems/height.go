package systems

import (
	"math"

	"github.com/pthm-cable/puddle/components"
)

// HeightAccumulator rasterizes particle positions into a height grid.
// The grid is cleared every call: height is the particles' density footprint
// for this tick, not a quantity integrated over time.
type HeightAccumulator struct {
	field     *ScalarField
	footprint float32 // splat radius in domain units
	deposit   float32 // height added at the splat center
}

// NewHeightAccumulator creates an accumulator for a res×res grid.
func NewHeightAccumulator(res int, footprint, deposit float32) *HeightAccumulator {
	return &HeightAccumulator{
		field:     NewScalarField(res),
		footprint: footprint,
		deposit:   deposit,
	}
}

// SetFootprint updates the splat radius and peak deposit.
func (h *HeightAccumulator) SetFootprint(footprint, deposit float32) {
	h.footprint = footprint
	h.deposit = deposit
}

// Field returns the height grid from the last Accumulate.
func (h *HeightAccumulator) Field() *ScalarField {
	return h.field
}

// Accumulate clears the grid and splats every particle additively as a cone
// of radius footprint. The domain [-0.5,0.5]² maps onto the whole grid.
func (h *HeightAccumulator) Accumulate(positions []components.Position) *ScalarField {
	f := h.field
	f.Clear()

	res := f.Res
	radius := h.footprint * float32(res) // in cells
	if radius < 0.5 {
		radius = 0.5
	}
	invRadius := 1 / radius

	for _, p := range positions {
		gx := uvToGrid(p.X+0.5, res)
		gy := uvToGrid(p.Y+0.5, res)

		i0 := int(math.Ceil(float64(gx - radius)))
		i1 := int(math.Floor(float64(gx + radius)))
		j0 := int(math.Ceil(float64(gy - radius)))
		j1 := int(math.Floor(float64(gy + radius)))
		if i0 < 0 {
			i0 = 0
		}
		if j0 < 0 {
			j0 = 0
		}
		if i1 >= res {
			i1 = res - 1
		}
		if j1 >= res {
			j1 = res - 1
		}

		for j := j0; j <= j1; j++ {
			dy := float32(j) - gy
			row := j * res
			for i := i0; i <= i1; i++ {
				dx := float32(i) - gx
				d := sqrtf(dx*dx + dy*dy)
				if d >= radius {
					continue
				}
				f.Data[row+i] += h.deposit * (1 - d*invRadius)
			}
		}
	}
	return f
}
