package mathx

import "math"

// WrapDeg keeps the sign of v and folds it into (-limit, limit), like C fmod.
func WrapDeg(v, limit float64) float64 { return math.Mod(v, limit) }

// WrapHeading folds v into [0, full).
func WrapHeading(v, full float64) float64 {
	r := math.Mod(v+full, full)
	if r < 0 {
		r += full
	}
	return r
}
