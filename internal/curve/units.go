// internal/curve/units.go
package curve

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ToDecimal converts a minor-unit amount into whole units for display.
func ToDecimal(amount *uint256.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount.ToBig(), -decimals)
}

// FormatUnits renders a minor-unit amount as a fixed-point string.
func FormatUnits(amount *uint256.Int, decimals int32) string {
	return ToDecimal(amount, decimals).String()
}

// ParseUnits converts a human amount such as "1.5" into minor units, truncating
// anything below the minor unit.
func ParseUnits(value string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", value)
	}
	raw := d.Shift(decimals).Truncate(0).BigInt()
	out, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}
