package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders base units as a decimal string with AssetDecimals
// places, e.g. 1500000 -> "1.500000".
func FormatAmount(units uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(AssetDecimals)).
		StringFixed(int32(AssetDecimals))
}

// ParseAmount converts a decimal string such as "12.5" into base units. It
// rejects negative values, more than AssetDecimals fractional digits and
// values that do not fit in uint64.
func ParseAmount(s string) (uint64, error) {
	units, err := parseUnits(s)
	if err != nil {
		return 0, err
	}
	if units.Sign() < 0 {
		return 0, fmt.Errorf("amount %q: must not be negative", s)
	}
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %q: out of range", s)
	}
	return units.Uint64(), nil
}

// ParseAmountChange is ParseAmount for signed deltas.
func ParseAmountChange(s string) (int64, error) {
	units, err := parseUnits(s)
	if err != nil {
		return 0, err
	}
	if !units.IsInt64() {
		return 0, fmt.Errorf("amount %q: out of range", s)
	}
	return units.Int64(), nil
}

func parseUnits(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	shifted := d.Shift(int32(AssetDecimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q: more than %d decimal places", s, AssetDecimals)
	}
	return shifted.BigInt(), nil
}
