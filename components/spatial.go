package components

// Position is a particle position in the domain [-0.5, 0.5]².
type Position struct {
	X, Y float32
}

// Velocity is a particle's smoothed velocity in domain units per second.
type Velocity struct {
	X, Y float32
}

// SpeedSq returns the squared velocity magnitude.
func (v Velocity) SpeedSq() float32 {
	return v.X*v.X + v.Y*v.Y
}
