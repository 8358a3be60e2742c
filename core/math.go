package core

import (
	"fmt"
	"math"
)

// CheckedAdd returns a+b, or ErrOverflow if the sum wraps.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return a + b, nil
}

// CheckedSub returns a-b, or ErrOverflow if b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, a, b)
	}
	return a - b, nil
}

// CheckedMul returns a*b, or ErrOverflow if the product wraps.
func CheckedMul(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return a * b, nil
}
