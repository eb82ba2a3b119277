package vnpay

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits renders an amount the way the gateway expects it: multiplied by
// 100, no decimal point.
func ToMinorUnits(amount decimal.Decimal) string {
	return amount.Mul(hundred).Truncate(0).String()
}

// FromMinorUnits parses a gateway amount string (x100) back to a decimal.
func FromMinorUnits(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d.Div(hundred), nil
}
