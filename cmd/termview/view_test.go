package main

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/puddle/config"
	"github.com/pthm-cable/puddle/sim"
)

func TestFitViewportKeepsSquareDomain(t *testing.T) {
	vp := fitViewport(100, 30)
	if vp.rows != 28 || vp.cols != 56 {
		t.Errorf("viewport = %+v, want 56x28", vp)
	}
	if vp.originX != 22 {
		t.Errorf("originX = %d, want 22", vp.originX)
	}

	narrow := fitViewport(20, 40)
	if narrow.cols != 20 || narrow.rows != 10 {
		t.Errorf("narrow viewport = %+v, want 20x10", narrow)
	}
}

func TestCellUVIsYUp(t *testing.T) {
	vp := viewport{cols: 4, rows: 2}
	_, top := vp.cellUV(0, 0)
	_, bottom := vp.cellUV(0, 1)
	if !(top > bottom) {
		t.Errorf("top row v=%v should exceed bottom row v=%v", top, bottom)
	}
}

func TestDensityGlyph(t *testing.T) {
	if g := densityGlyph(0, 1); g != ' ' {
		t.Errorf("empty = %q, want space", g)
	}
	if g := densityGlyph(0.001, 1); g != densityRamp[1] {
		t.Errorf("trace = %q, want %q", g, densityRamp[1])
	}
	if g := densityGlyph(5, 1); g != '@' {
		t.Errorf("saturated = %q, want @", g)
	}
}

func TestFlowGlyph(t *testing.T) {
	tests := []struct {
		vx, vy float32
		want   rune
	}{
		{1, 0, '→'},
		{0, 1, '↑'},
		{-1, 0, '←'},
		{0, -1, '↓'},
		{1, 1, '↗'},
		{1, -1, '↘'},
	}
	for _, tt := range tests {
		if got := flowGlyph(tt.vx, tt.vy); got != tt.want {
			t.Errorf("flowGlyph(%v, %v) = %q, want %q", tt.vx, tt.vy, got, tt.want)
		}
	}
}

func TestKeyInputHoldsThenReleases(t *testing.T) {
	k := &keyInput{}
	if !k.HandleKey(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone)) {
		t.Fatal("right arrow should tilt")
	}
	if x, _ := k.Axis(); x != 1 {
		t.Fatalf("axis x = %v, want 1", x)
	}
	for i := 0; i < holdTicks; i++ {
		k.EndTick()
	}
	if x, y := k.Axis(); x != 0 || y != 0 {
		t.Errorf("axis after hold = (%v, %v), want zero", x, y)
	}
	if k.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'v', tcell.ModNone)) {
		t.Error("'v' should not tilt")
	}
}

func TestKeyInputDragFlipsY(t *testing.T) {
	k := &keyInput{}
	k.HandleMouse(tcell.NewEventMouse(10, 10, tcell.Button1, tcell.ModNone))
	k.HandleMouse(tcell.NewEventMouse(12, 9, tcell.Button1, tcell.ModNone))
	if !k.Held() {
		t.Fatal("expected held while button is down")
	}
	dx, dy := k.PointerDelta()
	if dx != 2*cellPixels || dy != cellPixels {
		t.Errorf("delta = (%v, %v), want (%d, %d)", dx, dy, 2*cellPixels, cellPixels)
	}
	if dx, dy := k.PointerDelta(); dx != 0 || dy != 0 {
		t.Errorf("delta not cleared: (%v, %v)", dx, dy)
	}
}

func TestDrawFrame(t *testing.T) {
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	cfg.Grid.HeightResolution = 32
	cfg.Grid.VelocityResolution = 16
	cfg.Particles.Count = 500
	cfg.Recompute()

	s := sim.New(sim.Options{Seed: 3})
	if err := s.Init(cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Teardown()
	for i := 0; i < 5; i++ {
		s.Step(cfg.Derived.DT32)
	}

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen Init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(60, 22)

	for _, mode := range []viewMode{viewDensity, viewFlow} {
		drawFrame(screen, s, mode, false)
		screen.Show()

		cells, w, h := screen.GetContents()
		var status strings.Builder
		for x := 0; x < w; x++ {
			if r := cells[(h-2)*w+x].Runes; len(r) > 0 {
				status.WriteRune(r[0])
			}
		}
		if !strings.Contains(status.String(), mode.String()) {
			t.Errorf("status line %q does not name mode %s", status.String(), mode)
		}

		// The corner of the domain lies outside the dish
		vp := fitViewport(w, h)
		corner := cells[vp.originY*w+vp.originX].Runes
		if len(corner) == 0 || corner[0] != '░' {
			t.Errorf("%s: corner cell = %q, want rim shading", mode, corner)
		}
	}
}
