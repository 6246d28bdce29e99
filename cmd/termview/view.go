package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/puddle/orientation"
	"github.com/pthm-cable/puddle/sim"
)

// viewMode selects what each cell shows.
type viewMode int

const (
	viewDensity viewMode = iota
	viewFlow
)

func (m viewMode) String() string {
	if m == viewFlow {
		return "flow"
	}
	return "density"
}

// densityRamp runs from empty to thickest film.
var densityRamp = []rune(" .:-=+*#%@")

// flowGlyphs are indexed by octant, counter-clockwise from +x.
var flowGlyphs = []rune{'→', '↗', '↑', '↖', '←', '↙', '↓', '↘'}

var (
	styleRim    = tcell.StyleDefault.Foreground(tcell.ColorDimGray)
	styleStatus = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	styleHelp   = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// viewport maps terminal cells onto the unit domain. Cells are about twice
// as tall as wide, so two columns cover the width of one row.
type viewport struct {
	originX, originY int
	cols, rows       int
}

// fitViewport centers the largest square domain that fits above the two
// status lines.
func fitViewport(w, h int) viewport {
	rows := h - 2
	if rows < 1 {
		rows = 1
	}
	cols := rows * 2
	if cols > w {
		cols = w
		rows = cols / 2
		if rows < 1 {
			rows = 1
		}
	}
	return viewport{
		originX: (w - cols) / 2,
		originY: (h - 2 - rows) / 2,
		cols:    cols,
		rows:    rows,
	}
}

// cellUV returns the normalized domain coordinates of a cell center, v up.
func (vp viewport) cellUV(c, r int) (float32, float32) {
	u := (float32(c) + 0.5) / float32(vp.cols)
	v := 1 - (float32(r)+0.5)/float32(vp.rows)
	return u, v
}

// densityGlyph maps a height to the ramp, saturating at full.
func densityGlyph(h, full float32) rune {
	if !(h > 0) || full <= 0 {
		return densityRamp[0]
	}
	idx := int(h / full * float32(len(densityRamp)-1))
	if idx >= len(densityRamp) {
		idx = len(densityRamp) - 1
	}
	if idx == 0 {
		idx = 1
	}
	return densityRamp[idx]
}

// flowGlyph picks the arrow nearest the velocity direction.
func flowGlyph(vx, vy float32) rune {
	a := math.Atan2(float64(vy), float64(vx))
	oct := int(math.Round(a/(math.Pi/4))) & 7
	return flowGlyphs[oct]
}

// speedStyle shades a cell from blue to red with speed.
func speedStyle(speed, maxVel float32) tcell.Style {
	t := speed / maxVel
	if t > 1 {
		t = 1
	}
	r := int32(60 + 195*t)
	b := int32(255 - 195*t)
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(r, 120, b))
}

// drawFrame renders the simulation into screen without calling Show.
func drawFrame(screen tcell.Screen, s *sim.Simulation, mode viewMode, paused bool) {
	screen.Clear()
	w, h := screen.Size()
	vp := fitViewport(w, h)

	cfg := s.Config()
	rim := s.Rim()
	height := s.Height()
	snap := s.Snapshot()
	maxVel := float32(cfg.Solver.MaxVelocity)
	full := float32(cfg.Grid.Deposit) * 4

	for r := 0; r < vp.rows; r++ {
		for c := 0; c < vp.cols; c++ {
			u, v := vp.cellUV(c, r)
			x, y := vp.originX+c, vp.originY+r
			if !(rim.SampleUV(u, v) > 0) {
				screen.SetContent(x, y, '░', nil, styleRim)
				continue
			}
			switch mode {
			case viewFlow:
				vx, vy := snap.Sample(u, v)
				speed := float32(math.Hypot(float64(vx), float64(vy)))
				if speed < maxVel*0.02 {
					screen.SetContent(x, y, '·', nil, styleHelp)
					continue
				}
				screen.SetContent(x, y, flowGlyph(vx, vy), nil, speedStyle(speed, maxVel))
			default:
				screen.SetContent(x, y, densityGlyph(height.SampleUV(u, v), full), nil, tcell.StyleDefault)
			}
		}
	}

	tiltDeg := orientation.TiltAngle(s.Orientation()) * 180 / math.Pi
	state := "running"
	if paused {
		state = "paused"
	}
	status := fmt.Sprintf(" tick %d  t=%.1fs  tilt %.1f deg  %d particles  %s  %s ",
		s.Tick(), s.Time(), tiltDeg, s.ParticleCount(), mode, state)
	drawText(screen, 0, h-2, w, status, styleStatus)
	drawText(screen, 0, h-1, w, " arrows/WASD tilt  drag tilt  v view  l level  r reset  space pause  q quit", styleHelp)
}

// drawText writes str at (x, y), padding with the style to width.
func drawText(screen tcell.Screen, x, y, width int, str string, style tcell.Style) {
	col := 0
	for _, ch := range str {
		if col >= width {
			return
		}
		screen.SetContent(x+col, y, ch, nil, style)
		col++
	}
	for ; col < width; col++ {
		screen.SetContent(x+col, y, ' ', nil, style)
	}
}
