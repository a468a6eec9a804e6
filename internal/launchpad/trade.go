// =============================
// File: internal/launchpad/trade.go
// =============================
package launchpad

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// Buy takes params.AmountOut wrapper units off the curve for the curve cost plus the fee.
func (e *Engine) Buy(ctx context.Context, params BuyParams) (receipt *TradeReceipt, err error) {
	tx, err := e.begin(ctx, "buy")
	if err != nil {
		return nil, err
	}
	defer func() { e.finish(tx, err) }()

	if err := requireActor(params.Actor); err != nil {
		return nil, err
	}
	if params.MaxCost == nil {
		return nil, validationf("max cost is required")
	}
	token, bc, err := e.lookup(params.Wrapper)
	if err != nil {
		return nil, err
	}
	if !bc.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInactiveCurve, params.Wrapper)
	}
	if err := e.checkDeadline(params.Deadline); err != nil {
		return nil, err
	}

	q, err := quoteBuy(token, bc, params.AmountOut)
	if err != nil {
		return nil, err
	}
	if q.Total.Gt(params.MaxCost) {
		return nil, &SlippageError{Side: "buy", Bound: params.MaxCost.Clone(), Computed: q.Total}
	}

	// Effects.
	reserve, overflow := new(uint256.Int).AddOverflow(bc.ReserveBalance, q.BaseAmount)
	if overflow {
		return nil, validationf("reserve overflow")
	}
	e.save(tx, token.Wrapper)
	bc.CurrentSupply = new(uint256.Int).Sub(bc.CurrentSupply, params.AmountOut)
	bc.ReserveBalance = reserve

	// Interactions.
	if err := e.custody.Transfer(tx.ctx, ledger.Native, params.Actor, e.address, q.Total); err != nil {
		return nil, fmt.Errorf("failed to collect payment: %w", err)
	}
	if err := e.custody.Transfer(tx.ctx, token.Wrapper, e.address, params.Actor, params.AmountOut); err != nil {
		return nil, fmt.Errorf("failed to deliver wrapper units: %w", err)
	}
	toTreasury, toCreator, err := e.settleFees(tx, token, q.Fee)
	if err != nil {
		return nil, err
	}

	tx.emit(&events.TradeEvent{
		BaseEvent:     events.NewBase(events.TokensBought, e.clock.Now()),
		Wrapper:       token.Wrapper,
		Trader:        params.Actor,
		WrapperAmount: params.AmountOut.Clone(),
		BaseAmount:    q.BaseAmount.Clone(),
		Fee:           q.Fee.Clone(),
		PriceAfter:    q.PriceAfter.Clone(),
		ReserveAfter:  bc.ReserveBalance.Clone(),
	})
	tx.log.Info("Tokens bought",
		zap.String("wrapper", token.Wrapper.String()),
		zap.String("buyer", params.Actor.String()),
		zap.String("amount", curve.FormatUnits(params.AmountOut, curve.WrapperDecimals)),
		zap.String("base_cost", q.BaseAmount.Dec()),
		zap.String("fee", q.Fee.Dec()),
		zap.String("price_after", q.PriceAfter.Dec()))

	graduation, err := e.maybeGraduate(tx, token, bc)
	if err != nil {
		return nil, err
	}

	return &TradeReceipt{
		Quote:          *q,
		Wrapper:        token.Wrapper,
		Trader:         params.Actor,
		TreasuryFee:    toTreasury,
		CreatorFee:     toCreator,
		ReserveBalance: bc.ReserveBalance.Clone(),
		Graduation:     graduation,
	}, nil
}

// Sell returns params.AmountIn wrapper units to the curve for the curve proceeds minus the fee.
func (e *Engine) Sell(ctx context.Context, params SellParams) (receipt *TradeReceipt, err error) {
	tx, err := e.begin(ctx, "sell")
	if err != nil {
		return nil, err
	}
	defer func() { e.finish(tx, err) }()

	if err := requireActor(params.Actor); err != nil {
		return nil, err
	}
	if params.MinProceeds == nil {
		return nil, validationf("min proceeds is required")
	}
	token, bc, err := e.lookup(params.Wrapper)
	if err != nil {
		return nil, err
	}
	if !bc.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInactiveCurve, params.Wrapper)
	}
	if err := e.checkDeadline(params.Deadline); err != nil {
		return nil, err
	}

	q, err := quoteSell(token, bc, params.AmountIn)
	if err != nil {
		return nil, err
	}
	if q.Total.Lt(params.MinProceeds) {
		return nil, &SlippageError{Side: "sell", Bound: params.MinProceeds.Clone(), Computed: q.Total}
	}

	// Effects. quoteSell bounds AmountIn by the sold amount, so CurrentSupply
	// stays at or below InitialCurveSupply.
	e.save(tx, token.Wrapper)
	bc.CurrentSupply = new(uint256.Int).Add(bc.CurrentSupply, params.AmountIn)
	bc.ReserveBalance = new(uint256.Int).Sub(bc.ReserveBalance, q.BaseAmount)

	// Interactions.
	if err := e.custody.Transfer(tx.ctx, token.Wrapper, params.Actor, e.address, params.AmountIn); err != nil {
		return nil, fmt.Errorf("failed to collect wrapper units: %w", err)
	}
	if err := e.payNative(tx, params.Actor, q.Total); err != nil {
		return nil, fmt.Errorf("failed to pay proceeds: %w", err)
	}
	toTreasury, toCreator, err := e.settleFees(tx, token, q.Fee)
	if err != nil {
		return nil, err
	}

	tx.emit(&events.TradeEvent{
		BaseEvent:     events.NewBase(events.TokensSold, e.clock.Now()),
		Wrapper:       token.Wrapper,
		Trader:        params.Actor,
		WrapperAmount: params.AmountIn.Clone(),
		BaseAmount:    q.BaseAmount.Clone(),
		Fee:           q.Fee.Clone(),
		PriceAfter:    q.PriceAfter.Clone(),
		ReserveAfter:  bc.ReserveBalance.Clone(),
	})
	tx.log.Info("Tokens sold",
		zap.String("wrapper", token.Wrapper.String()),
		zap.String("seller", params.Actor.String()),
		zap.String("amount", curve.FormatUnits(params.AmountIn, curve.WrapperDecimals)),
		zap.String("base_proceeds", q.BaseAmount.Dec()),
		zap.String("fee", q.Fee.Dec()),
		zap.String("price_after", q.PriceAfter.Dec()))

	return &TradeReceipt{
		Quote:          *q,
		Wrapper:        token.Wrapper,
		Trader:         params.Actor,
		TreasuryFee:    toTreasury,
		CreatorFee:     toCreator,
		ReserveBalance: bc.ReserveBalance.Clone(),
	}, nil
}

func quoteBuy(token *LaunchedToken, bc *BondingCurve, amountOut *uint256.Int) (*Quote, error) {
	if err := requirePositive("amount out", amountOut); err != nil {
		return nil, err
	}
	if amountOut.Gt(bc.CurrentSupply) {
		return nil, validationf("amount out %s exceeds curve supply %s", amountOut.Dec(), bc.CurrentSupply.Dec())
	}

	sold := bc.sold(token.InitialCurveSupply)
	before, err := curve.PriceAt(bc.BasePrice, bc.PriceIncrement, sold)
	if err != nil {
		return nil, curveError(err)
	}
	base, err := curve.BuyCost(bc.BasePrice, bc.PriceIncrement, sold, amountOut)
	if err != nil {
		return nil, curveError(err)
	}
	if base.IsZero() {
		return nil, validationf("amount out %s is below the minimum priced unit", amountOut.Dec())
	}
	after, err := curve.PriceAt(bc.BasePrice, bc.PriceIncrement, new(uint256.Int).Add(sold, amountOut))
	if err != nil {
		return nil, curveError(err)
	}
	// A flat curve (zero increment) sells at a fixed price; on a sloped one
	// every buy must move the floored price up.
	if !bc.PriceIncrement.IsZero() && !after.Gt(before) {
		return nil, validationf("amount out %s does not move the price above %s", amountOut.Dec(), before.Dec())
	}
	fee, err := tradeFee(base)
	if err != nil {
		return nil, err
	}
	total, overflow := new(uint256.Int).AddOverflow(base, fee)
	if overflow {
		return nil, validationf("total cost overflow")
	}

	return &Quote{
		WrapperAmount: amountOut.Clone(),
		BaseAmount:    base,
		Fee:           fee,
		Total:         total,
		PriceBefore:   before,
		PriceAfter:    after,
	}, nil
}

func quoteSell(token *LaunchedToken, bc *BondingCurve, amountIn *uint256.Int) (*Quote, error) {
	if err := requirePositive("amount in", amountIn); err != nil {
		return nil, err
	}

	sold := bc.sold(token.InitialCurveSupply)
	before, err := curve.PriceAt(bc.BasePrice, bc.PriceIncrement, sold)
	if err != nil {
		return nil, curveError(err)
	}
	base, err := curve.SellProceeds(bc.BasePrice, bc.PriceIncrement, sold, amountIn)
	if err != nil {
		return nil, curveError(err)
	}
	if base.Gt(bc.ReserveBalance) {
		return nil, validationf("insufficient reserve: proceeds %s, reserve %s", base.Dec(), bc.ReserveBalance.Dec())
	}
	fee, err := tradeFee(base)
	if err != nil {
		return nil, err
	}
	after, err := curve.PriceAt(bc.BasePrice, bc.PriceIncrement, new(uint256.Int).Sub(sold, amountIn))
	if err != nil {
		return nil, curveError(err)
	}

	return &Quote{
		WrapperAmount: amountIn.Clone(),
		BaseAmount:    base,
		Fee:           fee,
		Total:         new(uint256.Int).Sub(base, fee),
		PriceBefore:   before,
		PriceAfter:    after,
	}, nil
}

func curveError(err error) error {
	if errors.Is(err, curve.ErrSupplyUnderflow) {
		return validationf("sell amount exceeds circulating curve supply")
	}
	return validationf("curve math: %v", err)
}
