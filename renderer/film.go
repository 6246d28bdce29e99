package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/puddle/camera"
	"github.com/pthm-cable/puddle/systems"
)

// heightTexturer is implemented by solvers that keep height on the GPU.
type heightTexturer interface {
	HeightTexture() rl.Texture2D
}

// FilmRenderer shades the liquid film from the height field and rim.
type FilmRenderer struct {
	shader      rl.Shader
	rimLoc      int32
	rangeLoc    int32
	displayLoc  int32
	rimTex      rl.Texture2D
	hostTex     rl.Texture2D
	pixels      []color.RGBA
	res         int
	heightRange float32

	// DisplayMax is the height drawn at full brightness.
	DisplayMax float32

	initialized bool
}

// NewFilmRenderer creates a film renderer. heightRange is the height that
// maps to a full 8-bit channel.
func NewFilmRenderer(heightRange float32) *FilmRenderer {
	if heightRange <= 0 {
		heightRange = 1
	}
	return &FilmRenderer{
		heightRange: heightRange,
		DisplayMax:  heightRange / 4,
	}
}

// Init loads the shader and textures (must be called after the raylib window is created).
func (f *FilmRenderer) Init(rim *systems.RimMask, heightRes int) error {
	if f.initialized {
		return nil
	}
	shader, err := loadShader("field_view.fs")
	if err != nil {
		return err
	}
	f.shader = shader
	f.rimLoc = rl.GetShaderLocation(shader, "rimTex")
	f.rangeLoc = rl.GetShaderLocation(shader, "heightRange")
	f.displayLoc = rl.GetShaderLocation(shader, "displayMax")

	f.rimTex = loadRimTexture(rim)
	f.res = heightRes
	f.pixels = make([]color.RGBA, heightRes*heightRes)
	img := rl.GenImageColor(heightRes, heightRes, rl.Black)
	f.hostTex = rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	rl.SetTextureFilter(f.hostTex, rl.FilterBilinear)

	f.initialized = true
	return nil
}

// Draw renders the film into the camera's domain rectangle.
func (f *FilmRenderer) Draw(cam *camera.Camera, solver systems.FieldSolver) {
	if !f.initialized {
		return
	}

	var tex rl.Texture2D
	if gpu, ok := solver.(heightTexturer); ok {
		tex = gpu.HeightTexture()
	} else {
		EncodeHeight(solver.Height(), f.heightRange, f.pixels)
		rl.UpdateTexture(f.hostTex, f.pixels)
		tex = f.hostTex
	}

	x, y, w, h := cam.DomainRect()
	src := rl.NewRectangle(0, 0, float32(tex.Width), float32(tex.Height))
	dst := rl.NewRectangle(x, y, w, h)

	rl.BeginShaderMode(f.shader)
	setFloat(f.shader, f.rangeLoc, f.heightRange)
	setFloat(f.shader, f.displayLoc, f.DisplayMax)
	rl.SetShaderValueTexture(f.shader, f.rimLoc, f.rimTex)
	rl.DrawTexturePro(tex, src, dst, rl.NewVector2(0, 0), 0, rl.White)
	rl.EndShaderMode()
}

// EncodeHeight packs a host height field into texels laid out like a render
// texture: the first row holds domain y = +0.5.
func EncodeHeight(field *systems.ScalarField, heightRange float32, dst []color.RGBA) {
	res := field.Res
	if len(dst) < res*res {
		return
	}
	scale := 255 / heightRange
	for j := 0; j < res; j++ {
		row := (res - 1 - j) * res
		for i := 0; i < res; i++ {
			v := field.Data[j*res+i] * scale
			if v > 255 {
				v = 255
			} else if !(v > 0) {
				v = 0
			}
			dst[row+i] = color.RGBA{R: uint8(v + 0.5), A: 255}
		}
	}
}

// Unload frees resources.
func (f *FilmRenderer) Unload() {
	if f.initialized {
		rl.UnloadShader(f.shader)
		rl.UnloadTexture(f.rimTex)
		rl.UnloadTexture(f.hostTex)
		f.initialized = false
	}
}
