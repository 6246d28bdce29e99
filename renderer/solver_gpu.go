package renderer

import (
	"embed"
	"errors"
	"fmt"
	"image/color"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/config"
	"github.com/pthm-cable/puddle/systems"
)

//go:embed shaders/*.fs
var shaderFS embed.FS

// ErrNoGraphics is returned when a GPU solver is requested without a window.
var ErrNoGraphics = errors.New("no graphics context")

// coneSize is the edge of the splat stamp texture in pixels.
const coneSize = 64

// GPUSolver runs the height, normal and velocity passes as raylib render
// texture passes. Height is splatted with additive blending into an 8-bit
// channel, so it is stored as a fraction of gpu_height_range.
type GPUSolver struct {
	params      systems.SolverParams
	heightRange float32
	rhRes       int
	rvRes       int

	cone           rl.Texture2D
	rimTex         rl.Texture2D
	heightTarget   rl.RenderTexture2D
	normalTarget   rl.RenderTexture2D
	velocityTarget rl.RenderTexture2D

	normalShader   rl.Shader
	velocityShader rl.Shader
	normalLocs     map[string]int32
	velocityLocs   map[string]int32

	quantum uint8 // splat tint for one particle's peak deposit
	gravity mgl32.Vec3

	// Host copies, refreshed lazily for presentation.
	height       *systems.ScalarField
	normals      *systems.NormalField
	heightStale  bool
	normalsStale bool

	loaded bool
}

// NewGPUSolverFactory adapts NewGPUSolver to the simulation's factory hook.
func NewGPUSolverFactory() func(cfg *config.Config, rim *systems.RimMask) (systems.FieldSolver, error) {
	return func(cfg *config.Config, rim *systems.RimMask) (systems.FieldSolver, error) {
		return NewGPUSolver(cfg, rim)
	}
}

// NewGPUSolver compiles the solver shaders and allocates its targets.
// Must be called after the raylib window is created.
func NewGPUSolver(cfg *config.Config, rim *systems.RimMask) (*GPUSolver, error) {
	if !rl.IsWindowReady() {
		return nil, ErrNoGraphics
	}

	s := &GPUSolver{
		heightRange: float32(cfg.Solver.GPUHeightRange),
		rhRes:       cfg.Grid.HeightResolution,
		rvRes:       cfg.Grid.VelocityResolution,
		height:      systems.NewScalarField(cfg.Grid.HeightResolution),
		normals:     systems.NewNormalField(cfg.Grid.HeightResolution),
	}

	var err error
	if s.normalShader, err = loadShader("normals.fs"); err != nil {
		return nil, err
	}
	if s.velocityShader, err = loadShader("velocity.fs"); err != nil {
		rl.UnloadShader(s.normalShader)
		return nil, err
	}
	s.normalLocs = shaderLocations(s.normalShader,
		"heightTex", "texel", "heightRange", "strength", "eps")
	s.velocityLocs = shaderLocations(s.velocityShader,
		"heightTex", "normalTex", "rimTex", "texel", "heightRange", "gravity",
		"kSlope", "kGravity", "maxVel", "damping", "gradStep", "eps")

	s.heightTarget = newFieldTarget(s.rhRes)
	s.normalTarget = newFieldTarget(s.rhRes)
	s.velocityTarget = newFieldTarget(s.rvRes)

	cone := rl.GenImageGradientRadial(coneSize, coneSize, 0, rl.White, rl.Black)
	s.cone = rl.LoadTextureFromImage(cone)
	rl.UnloadImage(cone)
	rl.SetTextureFilter(s.cone, rl.FilterBilinear)

	s.rimTex = loadRimTexture(rim)
	s.loaded = true

	s.SetParams(systems.ParamsFromConfig(cfg))
	return s, nil
}

func loadShader(name string) (rl.Shader, error) {
	src, err := shaderFS.ReadFile("shaders/" + name)
	if err != nil {
		return rl.Shader{}, fmt.Errorf("reading shader %s: %w", name, err)
	}
	shader := rl.LoadShaderFromMemory("", string(src))
	if shader.ID == 0 {
		return rl.Shader{}, fmt.Errorf("compiling shader %s", name)
	}
	return shader, nil
}

func shaderLocations(shader rl.Shader, names ...string) map[string]int32 {
	locs := make(map[string]int32, len(names))
	for _, n := range names {
		locs[n] = rl.GetShaderLocation(shader, n)
	}
	return locs
}

func newFieldTarget(res int) rl.RenderTexture2D {
	rt := rl.LoadRenderTexture(int32(res), int32(res))
	rl.SetTextureFilter(rt.Texture, rl.FilterBilinear)
	rl.SetTextureWrap(rt.Texture, rl.WrapClamp)
	return rt
}

// loadRimTexture uploads the rim as a single-channel float texture so values
// above 1 and tiny positive heights survive.
func loadRimTexture(rim *systems.RimMask) rl.Texture2D {
	res := rim.Res()
	values := rim.Values()
	data := make([]byte, 4*len(values))
	for i, v := range values {
		bits := math.Float32bits(v)
		data[4*i] = byte(bits)
		data[4*i+1] = byte(bits >> 8)
		data[4*i+2] = byte(bits >> 16)
		data[4*i+3] = byte(bits >> 24)
	}
	img := rl.NewImage(data, int32(res), int32(res), 1, rl.UncompressedR32)
	tex := rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(tex, rl.FilterBilinear)
	rl.SetTextureWrap(tex, rl.WrapClamp)
	return tex
}

// Dispatch renders the three passes. Nothing is read back here.
func (s *GPUSolver) Dispatch(positions []components.Position, gravity mgl32.Vec3) {
	s.gravity = gravity
	s.splat(positions)
	s.normalPass()
	s.velocityPass()
	s.heightStale = true
	s.normalsStale = true
}

// splat stamps one cone per particle. Screen y grows with domain y.
func (s *GPUSolver) splat(positions []components.Position) {
	res := float32(s.rhRes)
	radius := s.params.Footprint * res
	if radius < 0.5 {
		radius = 0.5
	}
	src := rl.NewRectangle(0, 0, coneSize, coneSize)
	tint := color.RGBA{R: s.quantum, A: 255}

	rl.BeginTextureMode(s.heightTarget)
	rl.ClearBackground(rl.Blank)
	rl.BeginBlendMode(rl.BlendAdditive)
	for _, p := range positions {
		cx := (p.X + 0.5) * res
		cy := (p.Y + 0.5) * res
		dst := rl.NewRectangle(cx-radius, cy-radius, 2*radius, 2*radius)
		rl.DrawTexturePro(s.cone, src, dst, rl.NewVector2(0, 0), 0, tint)
	}
	rl.EndBlendMode()
	rl.EndTextureMode()
}

func (s *GPUSolver) normalPass() {
	texel := 1 / float32(s.rhRes)

	rl.BeginTextureMode(s.normalTarget)
	rl.ClearBackground(rl.Blank)
	rl.BeginShaderMode(s.normalShader)
	setFloat(s.normalShader, s.normalLocs["texel"], texel)
	setFloat(s.normalShader, s.normalLocs["heightRange"], s.heightRange)
	setFloat(s.normalShader, s.normalLocs["strength"], s.params.NormalStrength)
	setFloat(s.normalShader, s.normalLocs["eps"], s.params.Epsilon)
	rl.SetShaderValueTexture(s.normalShader, s.normalLocs["heightTex"], s.heightTarget.Texture)
	rl.DrawRectangle(0, 0, int32(s.rhRes), int32(s.rhRes), rl.White)
	rl.EndShaderMode()
	rl.EndTextureMode()
}

func (s *GPUSolver) velocityPass() {
	sh := s.velocityShader
	locs := s.velocityLocs

	rl.BeginTextureMode(s.velocityTarget)
	rl.ClearBackground(rl.Blank)
	rl.BeginShaderMode(sh)
	setFloat(sh, locs["texel"], 1/float32(s.rvRes))
	setFloat(sh, locs["heightRange"], s.heightRange)
	rl.SetShaderValue(sh, locs["gravity"], []float32{s.gravity.X(), s.gravity.Y(), s.gravity.Z()}, rl.ShaderUniformVec3)
	setFloat(sh, locs["kSlope"], s.params.KSlope)
	setFloat(sh, locs["kGravity"], s.params.KGravity)
	setFloat(sh, locs["maxVel"], s.params.MaxVel)
	setFloat(sh, locs["damping"], s.params.Damping)
	setFloat(sh, locs["gradStep"], s.params.GradientStep)
	setFloat(sh, locs["eps"], s.params.Epsilon)
	rl.SetShaderValueTexture(sh, locs["heightTex"], s.heightTarget.Texture)
	rl.SetShaderValueTexture(sh, locs["normalTex"], s.normalTarget.Texture)
	rl.SetShaderValueTexture(sh, locs["rimTex"], s.rimTex)
	rl.DrawRectangle(0, 0, int32(s.rvRes), int32(s.rvRes), rl.White)
	rl.EndShaderMode()
	rl.EndTextureMode()
}

func setFloat(shader rl.Shader, loc int32, v float32) {
	rl.SetShaderValue(shader, loc, []float32{v}, rl.ShaderUniformFloat)
}

// readPixels copies a render target to host memory with row 0 at domain y = -0.5.
func readPixels(rt rl.RenderTexture2D) []color.RGBA {
	img := rl.LoadImageFromTexture(rt.Texture)
	rl.ImageFlipVertical(img)
	colors := rl.LoadImageColors(img)
	out := make([]color.RGBA, len(colors))
	copy(out, colors)
	rl.UnloadImageColors(colors)
	rl.UnloadImage(img)
	return out
}

// Readback blocks on the velocity pass and decodes it into dst.
func (s *GPUSolver) Readback(dst *systems.VelocityField) {
	DecodeVelocity(readPixels(s.velocityTarget), s.params.MaxVel, dst)
}

// DecodeVelocity unpacks velocity texels written by the velocity pass.
// Texels with the inside flag cleared decode to zero.
func DecodeVelocity(pixels []color.RGBA, maxVel float32, dst *systems.VelocityField) {
	n := len(dst.Data)
	if len(pixels) < n {
		n = len(pixels)
	}
	for i := 0; i < n; i++ {
		c := pixels[i]
		if c.B < 128 {
			dst.Data[i] = mgl32.Vec2{}
			continue
		}
		dst.Data[i] = mgl32.Vec2{
			(float32(c.R) - 127.5) / 127.5 * maxVel,
			(float32(c.G) - 127.5) / 127.5 * maxVel,
		}
	}
}

// DecodeHeight unpacks splatted height texels.
func DecodeHeight(pixels []color.RGBA, heightRange float32, dst *systems.ScalarField) {
	n := len(dst.Data)
	if len(pixels) < n {
		n = len(pixels)
	}
	for i := 0; i < n; i++ {
		dst.Data[i] = float32(pixels[i].R) / 255 * heightRange
	}
}

// DecodeNormals unpacks normal texels back to unit vectors.
func DecodeNormals(pixels []color.RGBA, eps float32, dst *systems.NormalField) {
	n := len(dst.Data)
	if len(pixels) < n {
		n = len(pixels)
	}
	for i := 0; i < n; i++ {
		c := pixels[i]
		v := mgl32.Vec3{
			float32(c.R)/127.5 - 1,
			float32(c.G)/127.5 - 1,
			float32(c.B)/127.5 - 1,
		}
		if l := v.Len(); l > eps {
			v = v.Mul(1 / l)
		} else {
			v = mgl32.Vec3{0, 0, 1}
		}
		dst.Data[i] = v
	}
}

// Height reads the height target back on demand.
func (s *GPUSolver) Height() *systems.ScalarField {
	if s.heightStale && s.loaded {
		DecodeHeight(readPixels(s.heightTarget), s.heightRange, s.height)
		s.heightStale = false
	}
	return s.height
}

// Normals reads the normal target back on demand.
func (s *GPUSolver) Normals() *systems.NormalField {
	if s.normalsStale && s.loaded {
		DecodeNormals(readPixels(s.normalTarget), s.params.Epsilon, s.normals)
		s.normalsStale = false
	}
	return s.normals
}

// Params returns the current tunables.
func (s *GPUSolver) Params() systems.SolverParams {
	return s.params
}

// SetParams replaces the tunables and requantizes the splat deposit.
func (s *GPUSolver) SetParams(p systems.SolverParams) {
	s.params = p
	s.quantum = SplatQuantum(p.Deposit, s.heightRange)
}

// SplatQuantum is the 8-bit tint carrying one particle's peak deposit.
// A positive deposit never rounds down to nothing.
func SplatQuantum(deposit, heightRange float32) uint8 {
	if !(deposit > 0) || !(heightRange > 0) {
		return 0
	}
	q := deposit / heightRange * 255
	switch {
	case q < 1:
		return 1
	case q > 255:
		return 255
	}
	return uint8(q + 0.5)
}

// HeightTexture exposes the height target for drawing.
func (s *GPUSolver) HeightTexture() rl.Texture2D {
	return s.heightTarget.Texture
}

// NormalTexture exposes the encoded normal target.
func (s *GPUSolver) NormalTexture() rl.Texture2D {
	return s.normalTarget.Texture
}

// VelocityTexture exposes the encoded velocity target for drawing.
func (s *GPUSolver) VelocityTexture() rl.Texture2D {
	return s.velocityTarget.Texture
}

// Unload frees all GPU resources.
func (s *GPUSolver) Unload() {
	if !s.loaded {
		return
	}
	rl.UnloadShader(s.normalShader)
	rl.UnloadShader(s.velocityShader)
	rl.UnloadRenderTexture(s.heightTarget)
	rl.UnloadRenderTexture(s.normalTarget)
	rl.UnloadRenderTexture(s.velocityTarget)
	rl.UnloadTexture(s.cone)
	rl.UnloadTexture(s.rimTex)
	s.loaded = false
}

var _ systems.FieldSolver = (*GPUSolver)(nil)
