// Package camera provides a 2D camera system for viewport control.
package camera

// Camera maps the film domain [-0.5,0.5]² onto the screen.
// Domain +y points up on screen. Supports pan and zoom; the view center
// never leaves the domain.
type Camera struct {
	// Position is the camera center in domain coordinates
	X, Y float32

	// Zoom level (1.0 = domain fits the shorter viewport edge)
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// New creates a camera centered on the domain with 1:1 zoom.
func New(viewportW, viewportH float32) *Camera {
	return &Camera{
		Zoom:      1.0,
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinZoom:   0.5,
		MaxZoom:   8.0,
	}
}

// Scale returns screen pixels per domain unit at the current zoom.
func (c *Camera) Scale() float32 {
	side := c.ViewportW
	if c.ViewportH < side {
		side = c.ViewportH
	}
	return side * c.Zoom
}

// DomainToScreen converts domain coordinates to screen coordinates.
func (c *Camera) DomainToScreen(x, y float32) (sx, sy float32) {
	s := c.Scale()
	sx = c.ViewportW/2 + (x-c.X)*s
	sy = c.ViewportH/2 - (y-c.Y)*s
	return sx, sy
}

// ScreenToDomain converts screen coordinates to domain coordinates.
func (c *Camera) ScreenToDomain(sx, sy float32) (x, y float32) {
	s := c.Scale()
	x = c.X + (sx-c.ViewportW/2)/s
	y = c.Y - (sy-c.ViewportH/2)/s
	return x, y
}

// DomainRect returns the screen rectangle (x, y, w, h) covered by the domain.
func (c *Camera) DomainRect() (x, y, w, h float32) {
	x, y = c.DomainToScreen(-0.5, 0.5)
	s := c.Scale()
	return x, y, s, s
}

// IsVisible returns true if a circle at (x, y) with the given domain radius
// could be visible on screen (conservative check for culling).
func (c *Camera) IsVisible(x, y, radius float32) bool {
	s := c.Scale()
	halfW := c.ViewportW/(2*s) + radius
	halfH := c.ViewportH/(2*s) + radius
	return absf(x-c.X) <= halfW && absf(y-c.Y) <= halfH
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Pan moves the camera by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float32) {
	s := c.Scale()
	c.X = clamp(c.X+dx/s, -0.5, 0.5)
	c.Y = clamp(c.Y-dy/s, -0.5, 0.5)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// ZoomAt zooms by factor keeping the domain point under (sx, sy) fixed.
func (c *Camera) ZoomAt(sx, sy, factor float32) {
	x, y := c.ScreenToDomain(sx, sy)
	c.ZoomBy(factor)
	nx, ny := c.ScreenToDomain(sx, sy)
	c.X = clamp(c.X+x-nx, -0.5, 0.5)
	c.Y = clamp(c.Y+y-ny, -0.5, 0.5)
}

// Reset returns the camera to the default position and zoom.
func (c *Camera) Reset() {
	c.X = 0
	c.Y = 0
	c.Zoom = 1.0
}

// absf returns the absolute value of a float32.
func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
