// Package game hosts the interactive viewer and the headless runner around
// a sim.Simulation.
package game

import (
	"fmt"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/puddle/camera"
	"github.com/pthm-cable/puddle/components"
	"github.com/pthm-cable/puddle/config"
	"github.com/pthm-cable/puddle/renderer"
	"github.com/pthm-cable/puddle/sim"
	"github.com/pthm-cable/puddle/ui"
)

// Options holds configuration for creating a Game.
type Options struct {
	Seed           int64
	LogStats       bool
	OutputDir      string
	StreamAddr     string
	Headless       bool
	StepsPerUpdate int // Simulation ticks per Update call
}

// Game holds the simulation plus everything needed to drive and show it.
type Game struct {
	cfg  *config.Config
	sim  *sim.Simulation
	opts Options

	input  *RaylibInput
	camera *camera.Camera

	// Rendering
	film *renderer.FilmRenderer
	flow *renderer.FlowRenderer

	// UI
	overlays  *ui.OverlayRegistry
	hud       *ui.HUD
	controls  *ui.ControlsPanel
	perfPanel *ui.PerfPanel
	probe     *ui.ProbePanel
	tuning    *ui.TuningPanel

	positions []components.Position

	paused         bool
	stepsPerUpdate int
	screenWidth    float32
	screenHeight   float32
}

// NewGameWithOptions builds and initializes the simulation. In graphical
// mode the raylib window must already exist.
func NewGameWithOptions(cfg *config.Config, opts Options) (*Game, error) {
	if opts.StepsPerUpdate < 1 {
		opts.StepsPerUpdate = 1
	}
	g := &Game{
		cfg:            cfg,
		opts:           opts,
		stepsPerUpdate: opts.StepsPerUpdate,
	}

	simOpts := sim.Options{
		Seed:       opts.Seed,
		RimLoader:  renderer.LoadRimMask,
		OutputDir:  opts.OutputDir,
		LogStats:   opts.LogStats,
		StreamAddr: opts.StreamAddr,
	}
	if !opts.Headless {
		g.input = NewRaylibInput()
		simOpts.Input = g.input
		simOpts.SolverFactory = renderer.NewGPUSolverFactory()
	}

	g.sim = sim.New(simOpts)
	if err := g.sim.Init(cfg); err != nil {
		return nil, fmt.Errorf("initializing simulation: %w", err)
	}

	if !opts.Headless {
		if err := g.initGraphics(); err != nil {
			g.sim.Teardown()
			return nil, err
		}
	}
	return g, nil
}

// initGraphics creates the renderers and panels.
func (g *Game) initGraphics() error {
	g.screenWidth = float32(rl.GetScreenWidth())
	g.screenHeight = float32(rl.GetScreenHeight())
	g.camera = camera.New(g.screenWidth, g.screenHeight)

	g.film = renderer.NewFilmRenderer(float32(g.cfg.Solver.GPUHeightRange))
	if err := g.film.Init(g.sim.Rim(), g.cfg.Grid.HeightResolution); err != nil {
		return fmt.Errorf("initializing film renderer: %w", err)
	}
	g.flow = renderer.NewFlowRenderer()

	g.overlays = ui.NewOverlayRegistry()
	g.hud = ui.NewHUD()
	g.controls = ui.NewControlsPanel(10, 100, 200)
	g.perfPanel = ui.NewPerfPanel(10, 100)
	g.probe = ui.NewProbePanel(10, 100, 240)
	g.tuning = ui.NewTuningPanel(int32(g.screenWidth)-270, 10, 260)
	return nil
}

// Sim returns the underlying simulation.
func (g *Game) Sim() *sim.Simulation {
	return g.sim
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int32 {
	return g.sim.Tick()
}

// UpdateHeadless advances the simulation with the fixed physics tick.
func (g *Game) UpdateHeadless() {
	dt := g.cfg.Derived.DT32
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.sim.Step(dt)
	}
}

// Update processes input and advances the simulation by the frame time.
func (g *Game) Update() {
	g.handleInput()
	g.sim.Perf().RecordFrame()

	if g.paused {
		return
	}
	dt := rl.GetFrameTime()
	if dt > 0.1 {
		dt = 0.1 // long frames would fling the film
	}
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.sim.Step(dt)
		g.input.EndFrame()
	}
}

// Unload releases the simulation and all GPU resources.
func (g *Game) Unload() {
	if g.film != nil {
		g.film.Unload()
	}
	if g.flow != nil {
		g.flow.Unload()
	}
	g.sim.Teardown()
	slog.Info("game unloaded", "tick", g.sim.Tick())
}
