package auction

import (
	"math"
	"math/bits"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, domain.ErrArithmeticOverflow
	}
	return diff, nil
}

// magnitude returns |change| for a negative change. math.MinInt64 has no
// positive counterpart in int64 and is rejected.
func magnitude(change int64) (uint64, error) {
	if change == math.MinInt64 {
		return 0, domain.ErrInvalidAmountChange
	}
	if change < 0 {
		return uint64(-change), nil
	}
	return uint64(change), nil
}
