// =============================
// File: internal/launchpad/vault.go
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

// DepositRT escrows amount of source from the actor for a later prefunded launch.
// Only the same actor can consume or withdraw the escrow.
func (e *Engine) DepositRT(ctx context.Context, source solana.PublicKey, amount *uint256.Int, actor solana.PublicKey) (err error) {
	tx, err := e.begin(ctx, "deposit")
	if err != nil {
		return err
	}
	defer func() { e.finish(tx, err) }()

	if err := requireActor(actor); err != nil {
		return err
	}
	if source == zeroKey || source == ledger.Native {
		return validationf("invalid source asset %s", source)
	}
	if _, isWrapper := e.tokens[source]; isWrapper {
		return validationf("%s is a wrapper asset", source)
	}
	if err := requirePositive("amount", amount); err != nil {
		return err
	}

	balance, total, err := e.escrowAfter(actor, source, amount, true)
	if err != nil {
		return err
	}
	if err := e.custody.Transfer(tx.ctx, source, actor, e.address, amount); err != nil {
		return fmt.Errorf("failed to escrow source asset: %w", err)
	}
	e.setDeposit(tx, actor, source, balance, total)

	tx.emit(&events.DepositEvent{
		BaseEvent: events.NewBase(events.Deposited, e.clock.Now()),
		Depositor: actor,
		Source:    source,
		Amount:    amount.Clone(),
		Balance:   balance.Clone(),
	})
	tx.log.Info("Source asset escrowed",
		zap.String("depositor", actor.String()),
		zap.String("source", source.String()),
		zap.String("amount", amount.Dec()),
		zap.String("balance", balance.Dec()))
	return nil
}

// LaunchPrefunded launches from the actor's own escrow instead of transferring
// the source units in.
func (e *Engine) LaunchPrefunded(ctx context.Context, params LaunchParams) (token *LaunchedToken, err error) {
	tx, err := e.begin(ctx, "launch_prefunded")
	if err != nil {
		return nil, err
	}
	defer func() { e.finish(tx, err) }()

	if err := e.validateLaunch(params); err != nil {
		return nil, err
	}
	balance, total, err := e.escrowAfter(params.Actor, params.Source, params.Amount, false)
	if err != nil {
		return nil, err
	}
	e.setDeposit(tx, params.Actor, params.Source, balance, total)

	return e.launch(tx, params, true)
}

// WithdrawDeposit returns unused escrow to the depositor.
func (e *Engine) WithdrawDeposit(ctx context.Context, source solana.PublicKey, amount *uint256.Int, actor solana.PublicKey) (err error) {
	tx, err := e.begin(ctx, "withdraw_deposit")
	if err != nil {
		return err
	}
	defer func() { e.finish(tx, err) }()

	if err := requireActor(actor); err != nil {
		return err
	}
	if err := requirePositive("amount", amount); err != nil {
		return err
	}
	balance, total, err := e.escrowAfter(actor, source, amount, false)
	if err != nil {
		return err
	}
	e.setDeposit(tx, actor, source, balance, total)
	if err := e.custody.Transfer(tx.ctx, source, e.address, actor, amount); err != nil {
		return fmt.Errorf("failed to release escrow: %w", err)
	}

	tx.emit(&events.DepositEvent{
		BaseEvent: events.NewBase(events.DepositWithdrawn, e.clock.Now()),
		Depositor: actor,
		Source:    source,
		Amount:    amount.Clone(),
		Balance:   balance.Clone(),
	})
	tx.log.Info("Escrow withdrawn",
		zap.String("depositor", actor.String()),
		zap.String("source", source.String()),
		zap.String("amount", amount.Dec()))
	return nil
}

// GetDepositBalance returns the actor's escrowed amount of source.
func (e *Engine) GetDepositBalance(ctx context.Context, actor, source solana.PublicKey) *uint256.Int {
	defer e.read(ctx)()
	return e.depositOf(actor, source).Clone()
}

func (e *Engine) depositOf(actor, source solana.PublicKey) *uint256.Int {
	if b, ok := e.deposits[actor][source]; ok {
		return b
	}
	return new(uint256.Int)
}

func (e *Engine) escrowedOf(source solana.PublicKey) *uint256.Int {
	if t, ok := e.escrowed[source]; ok {
		return t
	}
	return new(uint256.Int)
}

// escrowAfter computes the actor's balance and the per-source total after
// crediting or debiting amount.
func (e *Engine) escrowAfter(actor, source solana.PublicKey, amount *uint256.Int, credit bool) (balance, total *uint256.Int, err error) {
	current := e.depositOf(actor, source)
	outstanding := e.escrowedOf(source)

	if credit {
		var overflow bool
		if balance, overflow = new(uint256.Int).AddOverflow(current, amount); overflow {
			return nil, nil, validationf("deposit overflows escrow balance")
		}
		if total, overflow = new(uint256.Int).AddOverflow(outstanding, amount); overflow {
			return nil, nil, validationf("deposit overflows escrow total")
		}
		return balance, total, nil
	}

	if current.Lt(amount) {
		return nil, nil, fmt.Errorf("%w: %s has %s of %s escrowed, needs %s",
			ErrInsufficientEscrow, actor, current.Dec(), source, amount.Dec())
	}
	return new(uint256.Int).Sub(current, amount), new(uint256.Int).Sub(outstanding, amount), nil
}
