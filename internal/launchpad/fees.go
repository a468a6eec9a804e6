// =============================
// File: internal/launchpad/fees.go
// =============================
package launchpad

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// TradeFeeBps is the flat trade fee (1%).
const TradeFeeBps = 100

func tradeFee(base *uint256.Int) (*uint256.Int, error) {
	fee, err := curve.Fee(base, TradeFeeBps)
	if err != nil {
		return nil, validationf("trade fee: %v", err)
	}
	return fee, nil
}

// settleFees pays fee out of engine custody: floor(fee/2) to the treasury and
// the remainder to the wrapper's creator. Both legs must succeed.
func (e *Engine) settleFees(tx *txn, token *LaunchedToken, fee *uint256.Int) (toTreasury, toCreator *uint256.Int, err error) {
	toTreasury, toCreator = curve.HalfSplit(fee)

	if err := e.payNative(tx, e.cfg.Treasury, toTreasury); err != nil {
		return nil, nil, fmt.Errorf("failed to pay treasury fee: %w", err)
	}
	if err := e.payNative(tx, token.Creator, toCreator); err != nil {
		return nil, nil, fmt.Errorf("failed to pay creator fee: %w", err)
	}

	tx.emit(&events.FeesDistributedEvent{
		BaseEvent:      events.NewBase(events.FeesDistributed, e.clock.Now()),
		Wrapper:        token.Wrapper,
		Treasury:       e.cfg.Treasury,
		Creator:        token.Creator,
		TreasuryAmount: toTreasury.Clone(),
		CreatorAmount:  toCreator.Clone(),
	})
	tx.log.Debug("Fees distributed",
		zap.String("wrapper", token.Wrapper.String()),
		zap.String("treasury_fee", toTreasury.Dec()),
		zap.String("creator_fee", toCreator.Dec()))

	return toTreasury, toCreator, nil
}

func (e *Engine) payNative(tx *txn, to solana.PublicKey, amount *uint256.Int) error {
	return e.custody.Transfer(tx.ctx, ledger.Native, e.address, to, amount)
}
