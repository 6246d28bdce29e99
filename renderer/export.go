package renderer

import (
	"fmt"
	"image"
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/puddle/systems"
)

// EncodeNormals packs unit normals into texels with the first row at
// domain y = +0.5, using the same rgb = n*0.5+0.5 mapping as the normal pass.
func EncodeNormals(field *systems.NormalField, dst []color.RGBA) {
	res := field.Res
	if len(dst) < res*res {
		return
	}
	for j := 0; j < res; j++ {
		row := (res - 1 - j) * res
		for i := 0; i < res; i++ {
			n := field.Data[j*res+i]
			dst[row+i] = color.RGBA{
				R: unitByte(n[0]*0.5 + 0.5),
				G: unitByte(n[1]*0.5 + 0.5),
				B: unitByte(n[2]*0.5 + 0.5),
				A: 255,
			}
		}
	}
}

// EncodeVelocity packs velocities like the velocity pass: rg = 0.5+v/(2*maxVel)
// and b set inside the rim. A nil rim counts every cell as inside.
func EncodeVelocity(field *systems.VelocityField, maxVel float32, rim *systems.RimMask, dst []color.RGBA) {
	res := field.Res
	if len(dst) < res*res || maxVel <= 0 {
		return
	}
	for j := 0; j < res; j++ {
		row := (res - 1 - j) * res
		v := (float32(j) + 0.5) / float32(res)
		for i := 0; i < res; i++ {
			u := (float32(i) + 0.5) / float32(res)
			if rim != nil && !(rim.SampleUV(u, v) > 0) {
				dst[row+i] = color.RGBA{R: 128, G: 128, A: 255}
				continue
			}
			vel := field.Data[j*res+i]
			dst[row+i] = color.RGBA{
				R: unitByte(0.5 + vel[0]/(2*maxVel)),
				G: unitByte(0.5 + vel[1]/(2*maxVel)),
				B: 255,
				A: 255,
			}
		}
	}
}

func unitByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// ExportPixels writes res×res texels to an image file. The format follows
// the extension, as raylib decides it.
func ExportPixels(pixels []color.RGBA, res int, path string) error {
	if len(pixels) < res*res {
		return fmt.Errorf("export %s: have %d texels, need %d", path, len(pixels), res*res)
	}
	img := image.NewRGBA(image.Rect(0, 0, res, res))
	for i, c := range pixels[:res*res] {
		img.Pix[i*4+0] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = c.A
	}
	rlImg := rl.NewImageFromImage(img)
	defer rl.UnloadImage(rlImg)
	if !rl.ExportImage(*rlImg, path) {
		return fmt.Errorf("export %s failed", path)
	}
	return nil
}

// ExportTexture writes a field render target to an image file. Field
// targets hold domain y = +0.5 in their first stored row, which is already
// the top-down order image files expect.
func ExportTexture(tex rl.Texture2D, path string) error {
	img := rl.LoadImageFromTexture(tex)
	defer rl.UnloadImage(img)
	if !rl.ExportImage(*img, path) {
		return fmt.Errorf("export %s failed", path)
	}
	return nil
}
