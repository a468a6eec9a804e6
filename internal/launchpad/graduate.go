// =============================
// File: internal/launchpad/graduate.go
// =============================
package launchpad

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// Graduate migrates a curve whose market cap has reached the threshold. Anyone
// may call it; buys and harvests run the same check on their own.
func (e *Engine) Graduate(ctx context.Context, wrapper, actor solana.PublicKey) (result *GraduationResult, err error) {
	tx, err := e.begin(ctx, "graduate")
	if err != nil {
		return nil, err
	}
	defer func() { e.finish(tx, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	token, bc, err := e.lookup(wrapper)
	if err != nil {
		return nil, err
	}
	if !bc.IsActive {
		return nil, fmt.Errorf("%w: %s already graduated", ErrInactiveCurve, wrapper)
	}

	result, err = e.maybeGraduate(tx, token, bc)
	if err != nil {
		return nil, err
	}
	if result == nil {
		mcap := marketCapOrZero(token, bc)
		if !mcap.Lt(e.cfg.GraduationThreshold) {
			return nil, validationf("nothing to migrate: reserve %s", bc.ReserveBalance.Dec())
		}
		return nil, fmt.Errorf("%w: market cap %s, threshold %s",
			ErrThresholdNotReached, mcap.Dec(), e.cfg.GraduationThreshold.Dec())
	}
	return result, nil
}

// marketCap values everything outside the curve at the current curve price.
// Once graduated the curve holds nothing, so the valuation recorded at
// migration is returned instead.
func marketCap(token *LaunchedToken, bc *BondingCurve) (*uint256.Int, error) {
	if token.Graduated && token.FinalMarketCap != nil {
		return token.FinalMarketCap.Clone(), nil
	}
	price, err := curvePrice(token, bc)
	if err != nil {
		return nil, err
	}
	circulating := new(uint256.Int).Sub(token.TotalWrapperSupply, bc.CurrentSupply)
	return curve.MarketCap(price, circulating)
}

// curvePrice is the price of the next unit, frozen at graduation.
func curvePrice(token *LaunchedToken, bc *BondingCurve) (*uint256.Int, error) {
	if token.Graduated && token.FinalPrice != nil {
		return token.FinalPrice.Clone(), nil
	}
	return curve.PriceAt(bc.BasePrice, bc.PriceIncrement, bc.sold(token.InitialCurveSupply))
}

func marketCapOrZero(token *LaunchedToken, bc *BondingCurve) *uint256.Int {
	mcap, err := marketCap(token, bc)
	if err != nil {
		return new(uint256.Int)
	}
	return mcap
}

// maybeGraduate migrates the curve into a pool when its market cap reaches the
// threshold. It returns nil when the curve stays on the bonding curve.
func (e *Engine) maybeGraduate(tx *txn, token *LaunchedToken, bc *BondingCurve) (*GraduationResult, error) {
	if !bc.IsActive {
		return nil, nil
	}
	mcap, err := marketCap(token, bc)
	if err != nil {
		return nil, validationf("market cap: %v", err)
	}
	if mcap.Lt(e.cfg.GraduationThreshold) {
		return nil, nil
	}

	dexSide, err := curve.ToWrapper(token.DexReserve, e.cfg.WrapPerRT)
	if err != nil {
		return nil, validationf("dex reserve: %v", err)
	}
	wrapperSide := new(uint256.Int).Add(dexSide, bc.CurrentSupply)
	nativeSide := bc.ReserveBalance.Clone()
	if wrapperSide.IsZero() || nativeSide.IsZero() {
		// A pool cannot be seeded with one empty side; the next buy or harvest retries.
		tx.log.Debug("Graduation deferred: empty liquidity side",
			zap.String("wrapper", token.Wrapper.String()),
			zap.String("wrapper_side", wrapperSide.Dec()),
			zap.String("native_side", nativeSide.Dec()))
		return nil, nil
	}

	finalPrice, err := curvePrice(token, bc)
	if err != nil {
		return nil, validationf("final price: %v", err)
	}

	// Deactivate before calling out.
	e.save(tx, token.Wrapper)
	bc.IsActive = false
	token.Graduated = true
	token.FinalPrice = finalPrice
	token.FinalMarketCap = mcap.Clone()

	receipt, err := e.liquidity.AddLiquidity(tx.ctx, amm.AddLiquidityRequest{
		Token:        token.Wrapper,
		Provider:     e.address,
		TokenAmount:  wrapperSide,
		NativeAmount: nativeSide,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pool creation: %w", ErrExternalCall, err)
	}
	if err := e.custody.Transfer(tx.ctx, receipt.LPMint, e.address, ledger.BurnAddress, receipt.Liquidity); err != nil {
		return nil, fmt.Errorf("%w: burning pool position: %w", ErrExternalCall, err)
	}

	bc.CurrentSupply = new(uint256.Int)
	bc.ReserveBalance = new(uint256.Int)
	token.Pool = receipt.Pool
	token.LPBurned = receipt.Liquidity.Clone()

	result := &GraduationResult{
		Wrapper:       token.Wrapper,
		Pool:          receipt.Pool,
		LPMint:        receipt.LPMint,
		LPBurned:      receipt.Liquidity.Clone(),
		WrapperAmount: wrapperSide,
		NativeAmount:  nativeSide,
		MarketCap:     mcap,
	}
	tx.emit(&events.GraduatedEvent{
		BaseEvent:     events.NewBase(events.Graduated, e.clock.Now()),
		Wrapper:       result.Wrapper,
		Pool:          result.Pool,
		LPMint:        result.LPMint,
		LPBurned:      result.LPBurned.Clone(),
		WrapperAmount: wrapperSide.Clone(),
		NativeAmount:  nativeSide.Clone(),
		MarketCap:     mcap.Clone(),
	})
	tx.log.Info("Curve graduated",
		zap.String("wrapper", token.Wrapper.String()),
		zap.String("pool", receipt.Pool.String()),
		zap.String("market_cap", mcap.Dec()),
		zap.String("wrapper_side", curve.FormatUnits(wrapperSide, curve.WrapperDecimals)),
		zap.String("native_side", nativeSide.Dec()),
		zap.String("lp_burned", receipt.Liquidity.Dec()))

	return result, nil
}
