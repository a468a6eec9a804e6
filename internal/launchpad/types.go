// =============================
// File: internal/launchpad/types.go
// =============================
package launchpad

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// LaunchedToken is the registry record of a wrapper asset. It is created once
// per source asset and never deleted.
type LaunchedToken struct {
	Source  solana.PublicKey
	Wrapper solana.PublicKey
	Creator solana.PublicKey
	Name    string
	Symbol  string

	LaunchedAt time.Time

	// Source-asset units.
	TotalLocked    *uint256.Int
	DexReserve     *uint256.Int
	CreatorReserve *uint256.Int
	CurveLocked    *uint256.Int

	// Wrapper minor units.
	InitialCurveSupply *uint256.Int
	TotalWrapperSupply *uint256.Int

	Graduated               bool
	TotalRoyaltiesHarvested *uint256.Int

	// Vault is the engine account holding the locked source units.
	Vault solana.PublicKey

	// Set at graduation. FinalPrice and FinalMarketCap freeze the curve
	// valuation that triggered the migration.
	Pool           solana.PublicKey
	LPBurned       *uint256.Int
	FinalPrice     *uint256.Int
	FinalMarketCap *uint256.Int
}

// BondingCurve is the pricing state of a wrapper asset.
type BondingCurve struct {
	BasePrice      *uint256.Int
	PriceIncrement *uint256.Int
	CurrentSupply  *uint256.Int // wrapper units still held by the curve
	ReserveBalance *uint256.Int // native units backing the curve
	IsActive       bool
}

func (t *LaunchedToken) clone() *LaunchedToken {
	c := *t
	c.TotalLocked = t.TotalLocked.Clone()
	c.DexReserve = t.DexReserve.Clone()
	c.CreatorReserve = t.CreatorReserve.Clone()
	c.CurveLocked = t.CurveLocked.Clone()
	c.InitialCurveSupply = t.InitialCurveSupply.Clone()
	c.TotalWrapperSupply = t.TotalWrapperSupply.Clone()
	c.TotalRoyaltiesHarvested = t.TotalRoyaltiesHarvested.Clone()
	if t.LPBurned != nil {
		c.LPBurned = t.LPBurned.Clone()
	}
	if t.FinalPrice != nil {
		c.FinalPrice = t.FinalPrice.Clone()
	}
	if t.FinalMarketCap != nil {
		c.FinalMarketCap = t.FinalMarketCap.Clone()
	}
	return &c
}

func (c *BondingCurve) clone() *BondingCurve {
	return &BondingCurve{
		BasePrice:      c.BasePrice.Clone(),
		PriceIncrement: c.PriceIncrement.Clone(),
		CurrentSupply:  c.CurrentSupply.Clone(),
		ReserveBalance: c.ReserveBalance.Clone(),
		IsActive:       c.IsActive,
	}
}

// sold returns the wrapper units that have left the curve.
func (c *BondingCurve) sold(initial *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sub(initial, c.CurrentSupply)
}

// LaunchParams describes a new launch. Amount is in source-asset units; prices
// are native minor units per whole wrapper token.
type LaunchParams struct {
	Source         solana.PublicKey
	Amount         *uint256.Int
	Name           string
	Symbol         string
	BasePrice      *uint256.Int
	PriceIncrement *uint256.Int
	Actor          solana.PublicKey
}

// BuyParams describes a buy. A zero Deadline means no deadline.
type BuyParams struct {
	Wrapper   solana.PublicKey
	AmountOut *uint256.Int
	MaxCost   *uint256.Int
	Deadline  time.Time
	Actor     solana.PublicKey
}

// SellParams describes a sell. A zero Deadline means no deadline.
type SellParams struct {
	Wrapper     solana.PublicKey
	AmountIn    *uint256.Int
	MinProceeds *uint256.Int
	Deadline    time.Time
	Actor       solana.PublicKey
}

// HarvestParams describes a revenue claim for a wrapper's source asset.
// A zero Ancestor claims for the source asset itself.
type HarvestParams struct {
	Wrapper    solana.PublicKey
	Ancestor   solana.PublicKey
	Children   []solana.PublicKey
	Policies   []solana.PublicKey
	Currencies []solana.PublicKey
	Actor      solana.PublicKey
}

// Quote is the settlement of a trade that has not been executed.
type Quote struct {
	WrapperAmount *uint256.Int
	BaseAmount    *uint256.Int // curve cost or proceeds
	Fee           *uint256.Int
	Total         *uint256.Int // cost plus fee for buys, proceeds minus fee for sells
	PriceBefore   *uint256.Int
	PriceAfter    *uint256.Int
}

// TradeReceipt is returned by a successful buy or sell.
type TradeReceipt struct {
	Quote
	Wrapper        solana.PublicKey
	Trader         solana.PublicKey
	TreasuryFee    *uint256.Int
	CreatorFee     *uint256.Int
	ReserveBalance *uint256.Int
	Graduation     *GraduationResult // non-nil when the trade graduated the curve
}

// HarvestReceipt is returned by a successful harvest.
type HarvestReceipt struct {
	Wrapper        solana.PublicKey
	Claimed        *uint256.Int
	ReserveBalance *uint256.Int
	Graduation     *GraduationResult
}

// GraduationResult describes a completed migration into a pool.
type GraduationResult struct {
	Wrapper       solana.PublicKey
	Pool          solana.PublicKey
	LPMint        solana.PublicKey
	LPBurned      *uint256.Int
	WrapperAmount *uint256.Int
	NativeAmount  *uint256.Int
	MarketCap     *uint256.Int
}
