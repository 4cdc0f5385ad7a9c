package types

import "math"

// Sentinel values are part of the public accessor ABI.
const (
	// ErrInt is returned by integer-shaped accessors on failure.
	ErrInt int32 = math.MaxInt32
	// Success is returned by integer-shaped setters on success.
	Success int32 = 1
)

// ErrFloat is returned by float-shaped accessors on failure.
// +Inf compares equal to itself, unlike NaN.
var ErrFloat = math.Inf(1)

// IsErrFloat reports whether v is the float sentinel.
func IsErrFloat(v float64) bool { return math.IsInf(v, 1) }
