// =============================
// File: internal/launchpad/launch.go
// =============================
package launchpad

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// Launch locks params.Amount of the source asset from the actor and mints the
// wrapper asset against it.
func (e *Engine) Launch(ctx context.Context, params LaunchParams) (token *LaunchedToken, err error) {
	tx, err := e.begin(ctx, "launch")
	if err != nil {
		return nil, err
	}
	defer func() { e.finish(tx, err) }()

	if err := e.validateLaunch(params); err != nil {
		return nil, err
	}
	if err := e.custody.Transfer(tx.ctx, params.Source, params.Actor, e.address, params.Amount); err != nil {
		return nil, fmt.Errorf("failed to lock source asset: %w", err)
	}
	return e.launch(tx, params, false)
}

func (e *Engine) validateLaunch(params LaunchParams) error {
	if err := requireActor(params.Actor); err != nil {
		return err
	}
	if params.Source == zeroKey || params.Source == ledger.Native {
		return validationf("invalid source asset %s", params.Source)
	}
	if _, isWrapper := e.tokens[params.Source]; isWrapper {
		return validationf("%s is a wrapper asset", params.Source)
	}
	if _, launched := e.bySource[params.Source]; launched {
		return fmt.Errorf("%w: %s", ErrDuplicateLaunch, params.Source)
	}
	if err := requirePositive("amount", params.Amount); err != nil {
		return err
	}
	if err := requirePositive("base price", params.BasePrice); err != nil {
		return err
	}
	if params.Name == "" || params.Symbol == "" {
		return validationf("name and symbol are required")
	}
	return nil
}

// launch registers the wrapper once the source units are in engine custody.
func (e *Engine) launch(tx *txn, params LaunchParams, prefunded bool) (*LaunchedToken, error) {
	split, err := curve.Split(params.Amount)
	if err != nil {
		return nil, validationf("launch split: %v", err)
	}
	totalSupply, err := curve.ToWrapper(params.Amount, e.cfg.WrapPerRT)
	if err != nil {
		return nil, validationf("wrapper supply: %v", err)
	}
	// Split parts are bounded by Amount, so these cannot overflow once totalSupply did not.
	premine, _ := curve.ToWrapper(split.Creator, e.cfg.WrapPerRT)
	curveSupply, _ := curve.ToWrapper(split.Curve, e.cfg.WrapPerRT)

	wrapper, err := e.WrapperFor(params.Source)
	if err != nil {
		return nil, err
	}
	if !e.custody.TotalSupply(wrapper).IsZero() {
		return nil, fmt.Errorf("%w: wrapper %s already has supply", ErrDuplicateLaunch, wrapper)
	}

	if err := e.custody.Mint(tx.ctx, wrapper, e.address, totalSupply); err != nil {
		return nil, fmt.Errorf("failed to mint wrapper supply: %w", err)
	}
	if !premine.IsZero() {
		if err := e.custody.Transfer(tx.ctx, wrapper, e.address, params.Actor, premine); err != nil {
			return nil, fmt.Errorf("failed to transfer creator premine: %w", err)
		}
	}

	token := &LaunchedToken{
		Source:                  params.Source,
		Wrapper:                 wrapper,
		Creator:                 params.Actor,
		Name:                    params.Name,
		Symbol:                  params.Symbol,
		LaunchedAt:              e.clock.Now(),
		TotalLocked:             params.Amount.Clone(),
		DexReserve:              split.Dex,
		CreatorReserve:          split.Creator,
		CurveLocked:             split.Curve,
		InitialCurveSupply:      curveSupply.Clone(),
		TotalWrapperSupply:      totalSupply,
		TotalRoyaltiesHarvested: new(uint256.Int),
		Vault:                   e.address,
	}
	bc := &BondingCurve{
		BasePrice:      params.BasePrice.Clone(),
		PriceIncrement: orZero(params.PriceIncrement).Clone(),
		CurrentSupply:  curveSupply,
		ReserveBalance: new(uint256.Int),
		IsActive:       true,
	}
	e.insert(tx, token, bc)

	tx.emit(&events.TokenLaunchedEvent{
		BaseEvent:      events.NewBase(events.TokenLaunched, token.LaunchedAt),
		Source:         token.Source,
		Wrapper:        token.Wrapper,
		Creator:        token.Creator,
		Name:           token.Name,
		Symbol:         token.Symbol,
		TotalLocked:    token.TotalLocked.Clone(),
		WrapperSupply:  token.TotalWrapperSupply.Clone(),
		CurveSupply:    bc.CurrentSupply.Clone(),
		BasePrice:      bc.BasePrice.Clone(),
		PriceIncrement: bc.PriceIncrement.Clone(),
		Prefunded:      prefunded,
	})

	tx.log.Info("Token launched",
		zap.String("source", token.Source.String()),
		zap.String("wrapper", token.Wrapper.String()),
		zap.String("creator", token.Creator.String()),
		zap.String("symbol", token.Symbol),
		zap.String("total_locked", token.TotalLocked.Dec()),
		zap.String("curve_supply", curve.FormatUnits(bc.CurrentSupply, curve.WrapperDecimals)),
		zap.Bool("prefunded", prefunded))

	return token.clone(), nil
}
