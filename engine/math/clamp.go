// Package math holds the few numeric helpers the renderer needs.
package math

import "golang.org/x/exp/constraints"

// Clamp limits f to [low, high].
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// ClampMin raises f to at least low and caps it at high. A zero high means
// there is no upper limit, as in Vulkan surface capabilities.
func ClampMin[T constraints.Integer](f, low, high T) T {
	f = max(f, low)
	if high != 0 && f > high {
		return high
	}
	return f
}
