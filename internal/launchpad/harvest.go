// =============================
// File: internal/launchpad/harvest.go
// =============================
package launchpad

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/royalty"
)

// Harvest claims revenue accrued to the wrapper's source asset and pumps it
// into the curve reserve.
func (e *Engine) Harvest(ctx context.Context, wrapper, actor solana.PublicKey) (*HarvestReceipt, error) {
	return e.HarvestAndPump(ctx, HarvestParams{Wrapper: wrapper, Actor: actor})
}

// HarvestAndPump claims revenue for params.Ancestor (the source asset when
// zero) and adds whatever native value arrives to the reserve. The supply is
// unchanged, so the sell backing improves and the curve may graduate.
func (e *Engine) HarvestAndPump(ctx context.Context, params HarvestParams) (receipt *HarvestReceipt, err error) {
	tx, err := e.begin(ctx, "harvest")
	if err != nil {
		return nil, err
	}
	defer func() { e.finish(tx, err) }()

	if err := requireActor(params.Actor); err != nil {
		return nil, err
	}
	token, bc, err := e.lookup(params.Wrapper)
	if err != nil {
		return nil, err
	}
	if !bc.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInactiveCurve, params.Wrapper)
	}

	ancestor := params.Ancestor
	if ancestor == zeroKey {
		ancestor = token.Source
	}

	before := e.custody.BalanceOf(ledger.Native, e.address)
	if _, err := e.claimer.Claim(tx.ctx, royalty.ClaimRequest{
		Ancestor:   ancestor,
		Source:     token.Source,
		Recipient:  e.address,
		Children:   params.Children,
		Policies:   params.Policies,
		Currencies: params.Currencies,
	}); err != nil {
		return nil, fmt.Errorf("%w: revenue claim: %w", ErrExternalCall, err)
	}
	after := e.custody.BalanceOf(ledger.Native, e.address)
	if after.Lt(before) {
		return nil, fmt.Errorf("%w: revenue claim reduced engine balance by %s",
			ErrExternalCall, new(uint256.Int).Sub(before, after).Dec())
	}
	claimed := new(uint256.Int).Sub(after, before)

	reserve, overflow := new(uint256.Int).AddOverflow(bc.ReserveBalance, claimed)
	if overflow {
		return nil, validationf("reserve overflow")
	}
	harvested, overflow := new(uint256.Int).AddOverflow(token.TotalRoyaltiesHarvested, claimed)
	if overflow {
		return nil, validationf("harvest total overflow")
	}
	e.save(tx, token.Wrapper)
	bc.ReserveBalance = reserve
	token.TotalRoyaltiesHarvested = harvested

	tx.emit(&events.RevenueHarvestedEvent{
		BaseEvent:    events.NewBase(events.RevenueHarvested, e.clock.Now()),
		Wrapper:      token.Wrapper,
		Ancestor:     ancestor,
		Amount:       claimed.Clone(),
		ReserveAfter: reserve.Clone(),
	})
	tx.log.Info("Revenue harvested",
		zap.String("wrapper", token.Wrapper.String()),
		zap.String("ancestor", ancestor.String()),
		zap.String("claimed", claimed.Dec()),
		zap.String("reserve", reserve.Dec()))

	graduation, err := e.maybeGraduate(tx, token, bc)
	if err != nil {
		return nil, err
	}

	return &HarvestReceipt{
		Wrapper:        token.Wrapper,
		Claimed:        claimed,
		ReserveBalance: bc.ReserveBalance.Clone(),
		Graduation:     graduation,
	}, nil
}
