// =============================
// File: internal/launchpad/guard.go
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
)

// EmergencyWithdraw lets the operator move balances the engine does not owe
// anyone. Wrapper assets and launched source assets can never be withdrawn;
// native withdrawals are bounded by the balance above every active reserve and
// escrowed source withdrawals by the balance above outstanding deposits.
func (e *Engine) EmergencyWithdraw(ctx context.Context, asset, destination solana.PublicKey, amount *uint256.Int, actor solana.PublicKey) (err error) {
	tx, err := e.begin(ctx, "emergency_withdraw")
	if err != nil {
		return err
	}
	defer func() { e.finish(tx, err) }()

	if actor != e.cfg.Operator {
		return fmt.Errorf("%w: %s", ErrUnauthorized, actor)
	}
	if destination == zeroKey || destination == e.address {
		return validationf("invalid destination %s", destination)
	}
	if err := requirePositive("amount", amount); err != nil {
		return err
	}
	if err := e.checkProtected(asset); err != nil {
		return err
	}

	free, err := e.freeBalance(asset)
	if err != nil {
		return err
	}
	if amount.Gt(free) {
		return fmt.Errorf("%w: requested %s, free %s", ErrInsufficientFreeBalance, amount.Dec(), free.Dec())
	}
	if err := e.custody.Transfer(tx.ctx, asset, e.address, destination, amount); err != nil {
		return fmt.Errorf("failed to withdraw: %w", err)
	}

	tx.emit(&events.EmergencyWithdrawalEvent{
		BaseEvent:   events.NewBase(events.EmergencyWithdrawal, e.clock.Now()),
		Asset:       asset,
		Destination: destination,
		Amount:      amount.Clone(),
	})
	tx.log.Warn("Emergency withdrawal",
		zap.String("asset", asset.String()),
		zap.String("destination", destination.String()),
		zap.String("amount", amount.Dec()))
	return nil
}

// FreeNativeBalance returns the native balance the operator could withdraw.
func (e *Engine) FreeNativeBalance(ctx context.Context) (*uint256.Int, error) {
	defer e.read(ctx)()
	return e.freeBalance(ledger.Native)
}

func (e *Engine) checkProtected(asset solana.PublicKey) error {
	if _, isWrapper := e.tokens[asset]; isWrapper {
		return fmt.Errorf("%w: %s is a wrapper asset", ErrProtectedAsset, asset)
	}
	if _, launched := e.bySource[asset]; launched {
		return fmt.Errorf("%w: %s is a locked source asset", ErrProtectedAsset, asset)
	}
	return nil
}

// freeBalance is the engine's balance of asset minus what it owes.
func (e *Engine) freeBalance(asset solana.PublicKey) (*uint256.Int, error) {
	owed := new(uint256.Int)
	if asset == ledger.Native {
		for _, w := range e.order {
			if bc := e.curves[w]; bc.IsActive {
				var overflow bool
				if owed, overflow = new(uint256.Int).AddOverflow(owed, bc.ReserveBalance); overflow {
					return nil, validationf("reserve sum overflow")
				}
			}
		}
	} else {
		owed = e.escrowedOf(asset).Clone()
	}

	held := e.custody.BalanceOf(asset, e.address)
	if held.Lt(owed) {
		return new(uint256.Int), nil
	}
	return held.Sub(held, owed), nil
}
