package utils

import (
	"math/bits"

	"github.com/shrublabs/shrub-fund/internal/types"
)

// AddUint64 returns a+b or ErrMathOverflow.
func AddUint64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, types.ErrMathOverflow
	}
	return sum, nil
}

// SubUint64 returns a-b or ErrMathOverflow when b > a.
func SubUint64(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, types.ErrMathOverflow
	}
	return diff, nil
}
