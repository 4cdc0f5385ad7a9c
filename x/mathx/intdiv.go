package mathx

import "golang.org/x/exp/constraints"

// FloorStep rounds v down to a multiple of step, never going below step.
// Device data rates use this: 12ms at a 5ms step becomes 10ms, 3ms becomes 5ms.
func FloorStep[T constraints.Unsigned](v, step T) T {
	if step == 0 {
		return v
	}
	if v < step {
		return step
	}
	return v - v%step
}
