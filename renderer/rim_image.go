package renderer

import (
	"fmt"
	"image/color"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/puddle/systems"
)

// LoadRimMask reads a grayscale rim image, resizes it to res×res and scales
// the red channel to [0, maxHeight]. Black pixels are outside the film.
// Image row 0 becomes domain y = -0.5. Decoding needs no window.
func LoadRimMask(path string, res int, maxHeight float32) (*systems.RimMask, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("rim image: %w", err)
	}
	img := rl.LoadImage(path)
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("rim image %s: unsupported format", path)
	}
	defer rl.UnloadImage(img)

	if int(img.Width) != res || int(img.Height) != res {
		rl.ImageResize(img, int32(res), int32(res))
	}
	colors := rl.LoadImageColors(img)
	defer rl.UnloadImageColors(colors)

	return systems.NewRimMask(res, RimValues(colors, maxHeight)), nil
}

// RimValues maps pixel red channels to rim heights.
func RimValues(pixels []color.RGBA, maxHeight float32) []float32 {
	values := make([]float32, len(pixels))
	for i, c := range pixels {
		values[i] = float32(c.R) / 255 * maxHeight
	}
	return values
}
