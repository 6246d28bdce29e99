// Terminal viewer - runs the film on the CPU backend and draws it with
// characters. Tilt with the arrow keys, WASD or a mouse drag.
//
// Usage: go run ./cmd/termview -config puddle.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/puddle/config"
	"github.com/pthm-cable/puddle/orientation"
	"github.com/pthm-cable/puddle/sim"
)

func main() {
	configPath := flag.String("config", "", "Config YAML file (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config)")
	resolution := flag.Int("resolution", 128, "Height grid resolution")
	logPath := flag.String("log", "", "Write logs to this file (default: discarded)")
	flag.Parse()

	// The terminal is the display, so logs go to a file or nowhere
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Solver.Backend = config.BackendCPU
	cfg.Orientation.Mode = config.OrientationManual
	cfg.Rim.Path = ""
	cfg.Grid.HeightResolution = *resolution
	if cfg.Grid.VelocityResolution > *resolution {
		cfg.Grid.VelocityResolution = *resolution
	}
	cfg.Recompute()

	input := &keyInput{}
	s := sim.New(sim.Options{Seed: *seed, Input: input})
	if err := s.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init simulation: %v\n", err)
		os.Exit(1)
	}
	defer s.Teardown()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init screen: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()
	screen.EnableMouse()
	screen.HideCursor()

	run(screen, s, input)
}

// run drives the simulation at its fixed tick and redraws after each tick
// until the user quits.
func run(screen tcell.Screen, s *sim.Simulation, input *keyInput) {
	dt := s.Config().Derived.DT32
	ticker := time.NewTicker(time.Duration(float64(dt) * float64(time.Second)))
	defer ticker.Stop()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()
	defer close(quit)

	mode := viewDensity
	paused := false

	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return
				}
				if input.HandleKey(ev) {
					continue
				}
				if ev.Key() != tcell.KeyRune {
					continue
				}
				switch ev.Rune() {
				case ' ':
					paused = !paused
				case 'v', 'V':
					if mode == viewDensity {
						mode = viewFlow
					} else {
						mode = viewDensity
					}
				case 'l', 'L':
					if manual, ok := s.Provider().(*orientation.Manual); ok {
						manual.SetTilt(0, 0)
					}
				case 'r', 'R':
					s.Reset()
				}
			case *tcell.EventMouse:
				input.HandleMouse(ev)
			case *tcell.EventResize:
				screen.Sync()
			}

		case <-ticker.C:
			if !paused {
				s.Step(dt)
				input.EndTick()
			}
			drawFrame(screen, s, mode, paused)
			screen.Show()
		}
	}
}
