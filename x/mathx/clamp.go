package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// DivRound divides rounding half away from zero. d must be positive.
func DivRound[T constraints.Signed](n, d T) T {
	if n < 0 {
		return (n - d/2) / d
	}
	return (n + d/2) / d
}

// SatInt16 narrows v to int16, saturating at the type bounds.
func SatInt16[T constraints.Integer](v T) int16 {
	const lo, hi = -1 << 15, 1<<15 - 1
	switch {
	case int64(v) < lo && v < 0:
		return lo
	case v > 0 && uint64(v) > hi:
		return hi
	}
	return int16(v)
}

// SatUint16 narrows v to uint16, saturating at the type bounds.
func SatUint16[T constraints.Integer](v T) uint16 {
	switch {
	case v < 0:
		return 0
	case uint64(v) > 1<<16-1:
		return 1<<16 - 1
	}
	return uint16(v)
}
