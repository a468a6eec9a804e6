// =============================
// File: internal/curve/curve.go
// =============================
package curve

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	// WrapperDecimals is the decimal exponent of the wrapper asset's minor unit.
	WrapperDecimals = 18
	// NativeDecimals is the decimal exponent of the native asset (lamports).
	NativeDecimals = 9

	// CreatorShareBps and DexShareBps are the launch split of the locked source amount.
	// The curve receives the remainder, never a separately floored share.
	CreatorShareBps = 500
	DexShareBps     = 2000

	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000
)

var (
	ErrZeroAmount      = errors.New("amount must be greater than zero")
	ErrOverflow        = errors.New("arithmetic overflow")
	ErrSupplyUnderflow = errors.New("amount exceeds curve-circulating supply")
)

var (
	// WAD is one whole wrapper token in minor units.
	WAD = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(WrapperDecimals))

	wadSquared = new(uint256.Int).Mul(WAD, WAD)
	two        = uint256.NewInt(2)
)

// PriceAt returns the unit price (native minor units per whole wrapper token)
// once `sold` wrapper minor units have left the curve.
//
// Price = base + inc * sold / WAD
func PriceAt(base, inc, sold *uint256.Int) (*uint256.Int, error) {
	slope, overflow := new(uint256.Int).MulOverflow(inc, sold)
	if overflow {
		return nil, ErrOverflow
	}
	slope.Div(slope, WAD)

	price, overflow := new(uint256.Int).AddOverflow(base, slope)
	if overflow {
		return nil, ErrOverflow
	}
	return price, nil
}

// BuyCost returns the native cost of buying `amount` minor units starting from `sold`.
//
// It is the exact discrete sum of PriceAt over [sold, sold+amount) divided by WAD,
// evaluated in closed form with one floor division at the end:
//
//	cost = (amount*base*WAD + inc*amount*(2*sold+amount-1)/2) / WAD^2
//
// amount*(2*sold+amount-1) is always even, so the inner halving is exact.
func BuyCost(base, inc, sold, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}

	// amount * base * WAD
	flat, err := mul(amount, base)
	if err != nil {
		return nil, err
	}
	if flat, err = mul(flat, WAD); err != nil {
		return nil, err
	}

	// (2*sold + amount - 1)
	span, err := mul(sold, two)
	if err != nil {
		return nil, err
	}
	if span, err = add(span, amount); err != nil {
		return nil, err
	}
	span.SubUint64(span, 1)

	// inc * amount * span / 2
	ramp, err := mul(amount, span)
	if err != nil {
		return nil, err
	}
	ramp.Rsh(ramp, 1)
	if ramp, err = mul(ramp, inc); err != nil {
		return nil, err
	}

	total, err := add(flat, ramp)
	if err != nil {
		return nil, err
	}
	return total.Div(total, wadSquared), nil
}

// SellProceeds returns the native proceeds of returning `amount` minor units to the curve
// when `sold` units are circulating. It is BuyCost over [sold-amount, sold), so a buy and
// the matching sell settle the same amount with the same truncation.
func SellProceeds(base, inc, sold, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if amount.Gt(sold) {
		return nil, ErrSupplyUnderflow
	}
	start := new(uint256.Int).Sub(sold, amount)
	return BuyCost(base, inc, start, amount)
}

// MarketCap values `circulating` wrapper minor units at `price` per whole token.
func MarketCap(price, circulating *uint256.Int) (*uint256.Int, error) {
	value, err := mul(price, circulating)
	if err != nil {
		return nil, err
	}
	return value.Div(value, WAD), nil
}

// Fee returns floor(amount * bps / 10000).
func Fee(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	fee, err := mul(amount, uint256.NewInt(bps))
	if err != nil {
		return nil, err
	}
	return fee.Div(fee, uint256.NewInt(BpsDenominator)), nil
}

// LaunchSplit is the 5/20/75 division of a locked source amount.
type LaunchSplit struct {
	Creator *uint256.Int
	Dex     *uint256.Int
	Curve   *uint256.Int
}

// Split divides amount into creator and dex shares (floored) and gives the remainder
// to the curve, so the three parts always sum to amount.
func Split(amount *uint256.Int) (LaunchSplit, error) {
	if amount.IsZero() {
		return LaunchSplit{}, ErrZeroAmount
	}
	creator, err := Fee(amount, CreatorShareBps)
	if err != nil {
		return LaunchSplit{}, err
	}
	dex, err := Fee(amount, DexShareBps)
	if err != nil {
		return LaunchSplit{}, err
	}
	rest := new(uint256.Int).Sub(amount, creator)
	rest.Sub(rest, dex)
	return LaunchSplit{Creator: creator, Dex: dex, Curve: rest}, nil
}

// HalfSplit divides a fee into floor(fee/2) and the remainder.
func HalfSplit(fee *uint256.Int) (floorHalf, remainder *uint256.Int) {
	floorHalf = new(uint256.Int).Rsh(fee, 1)
	remainder = new(uint256.Int).Sub(fee, floorHalf)
	return floorHalf, remainder
}

// ToWrapper converts source units into wrapper minor units at the fixed ratio.
func ToWrapper(sourceAmount *uint256.Int, wrapPerRT uint64) (*uint256.Int, error) {
	return mul(sourceAmount, uint256.NewInt(wrapPerRT))
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}
