package main

import "github.com/gdamore/tcell/v2"

// holdTicks is how long a key press keeps its axis engaged. Terminals only
// report presses and repeats, never releases.
const holdTicks = 6

// cellPixels converts a drag of one terminal cell into pointer pixels.
const cellPixels = 8

// keyInput adapts terminal key and mouse events to orientation.ManualInput.
type keyInput struct {
	ax, ay       float32
	holdX, holdY int

	dx, dy     float32
	held       bool
	lastX      int
	lastY      int
	havePrevXY bool
}

// HandleKey engages an axis for a short hold. Returns false for keys that
// do not tilt.
func (k *keyInput) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyRight:
		k.ax, k.holdX = 1, holdTicks
	case tcell.KeyLeft:
		k.ax, k.holdX = -1, holdTicks
	case tcell.KeyUp:
		k.ay, k.holdY = 1, holdTicks
	case tcell.KeyDown:
		k.ay, k.holdY = -1, holdTicks
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'd', 'D':
			k.ax, k.holdX = 1, holdTicks
		case 'a', 'A':
			k.ax, k.holdX = -1, holdTicks
		case 'w', 'W':
			k.ay, k.holdY = 1, holdTicks
		case 's', 'S':
			k.ay, k.holdY = -1, holdTicks
		default:
			return false
		}
	default:
		return false
	}
	return true
}

// HandleMouse accumulates drags made with the primary button. Terminal rows
// grow downward, so dy is flipped into domain axes.
func (k *keyInput) HandleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	down := ev.Buttons()&tcell.Button1 != 0
	if down && k.havePrevXY && k.held {
		k.dx += float32(x-k.lastX) * cellPixels
		k.dy -= float32(y-k.lastY) * cellPixels
	}
	k.held = down
	k.lastX, k.lastY = x, y
	k.havePrevXY = true
}

// Axis returns the engaged direction in domain axes.
func (k *keyInput) Axis() (float32, float32) {
	return k.ax, k.ay
}

// PointerDelta returns and clears the accumulated drag.
func (k *keyInput) PointerDelta() (float32, float32) {
	dx, dy := k.dx, k.dy
	k.dx, k.dy = 0, 0
	return dx, dy
}

// Held reports whether the primary button is down.
func (k *keyInput) Held() bool {
	return k.held
}

// EndTick ages key holds by one tick.
func (k *keyInput) EndTick() {
	if k.holdX > 0 {
		k.holdX--
		if k.holdX == 0 {
			k.ax = 0
		}
	}
	if k.holdY > 0 {
		k.holdY--
		if k.holdY == 0 {
			k.ay = 0
		}
	}
}
