package pool

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"thalerSavings/internal/apperr"
)

// Decimals is the fixed-point scale of pool amounts.
const Decimals = 18

// ParseAmount parses a base-unit decimal string. Empty input is zero.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return d, nil
}

// FormatUnits renders base units as a human amount with the given decimals.
func FormatUnits(baseUnits decimal.Decimal, decimals uint8) string {
	return baseUnits.Shift(-int32(decimals)).String()
}

// ParseUnits converts a human amount ("1.5") into base units. Empty,
// malformed and over-precise input is a validation error.
func ParseUnits(human string, decimals uint8) (*big.Int, error) {
	human = strings.TrimSpace(human)
	if human == "" {
		return nil, apperr.Invalid("amount", "enter an amount")
	}
	d, err := decimal.NewFromString(human)
	if err != nil {
		return nil, apperr.Invalid("amount", fmt.Sprintf("%q is not a number", human))
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, apperr.Invalid("amount", fmt.Sprintf("%q has more than %d decimals", human, decimals))
	}
	return scaled.BigInt(), nil
}

// CeilBaseUnits rounds a base-unit amount up to a whole unit.
func CeilBaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Ceil().BigInt()
}
