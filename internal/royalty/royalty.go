// =============================
// File: internal/royalty/royalty.go
// =============================
package royalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

var (
	ErrNotEntitled = errors.New("recipient holds no royalty tokens")
	ErrZeroAccrual = errors.New("accrual amount must be greater than zero")
)

// vaultSeed derives the per-ancestor account that holds accrued revenue.
var vaultSeed = []byte("royalty-vault")

// ClaimRequest asks for the revenue accrued to an ancestry to be paid out.
type ClaimRequest struct {
	// Ancestor is the identity whose royalty vault accrued the revenue.
	Ancestor solana.PublicKey
	// Source is the royalty token that entitles Recipient to the revenue.
	Source solana.PublicKey
	// Recipient receives the native payout.
	Recipient solana.PublicKey
	// Children and Policies narrow the claim to specific derivative edges.
	Children []solana.PublicKey
	Policies []solana.PublicKey
	// Currencies restricts the claim; empty means native only.
	Currencies []solana.PublicKey
}

// Claimer pays out accrued revenue. A zero payout is not an error.
//
// Claim runs while the calling engine holds its write lock. Any call back into
// the engine must reuse ctx: the engine recognizes re-entry only through it,
// so a callback on a fresh context blocks on the lock forever.
type Claimer interface {
	Claim(ctx context.Context, req ClaimRequest) (*uint256.Int, error)
}

// Vault is a ledger-backed royalty module. Accrued revenue lives in a derived
// account per ancestor, so every accrual and payout is covered by ledger snapshots.
type Vault struct {
	custody   ledger.Custody
	programID solana.PublicKey
	logger    *zap.Logger
}

// NewVault creates a royalty vault over custody.
func NewVault(custody ledger.Custody, programID solana.PublicKey, logger *zap.Logger) *Vault {
	return &Vault{
		custody:   custody,
		programID: programID,
		logger:    logger.Named("royalty_vault"),
	}
}

// AccountFor returns the account holding revenue accrued to ancestor.
func (v *Vault) AccountFor(ancestor solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{vaultSeed, ancestor.Bytes()}, v.programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive royalty vault for %s: %w", ancestor, err)
	}
	return addr, nil
}

// Accrue moves native revenue from payer into ancestor's vault account.
func (v *Vault) Accrue(ctx context.Context, ancestor, payer solana.PublicKey, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAccrual
	}
	account, err := v.AccountFor(ancestor)
	if err != nil {
		return err
	}
	if err := v.custody.Transfer(ctx, ledger.Native, payer, account, amount); err != nil {
		return fmt.Errorf("failed to accrue revenue: %w", err)
	}

	v.logger.Debug("Revenue accrued",
		zap.String("ancestor", ancestor.String()),
		zap.String("amount", amount.Dec()))
	return nil
}

// Accrued returns the revenue currently claimable for ancestor.
func (v *Vault) Accrued(ancestor solana.PublicKey) (*uint256.Int, error) {
	account, err := v.AccountFor(ancestor)
	if err != nil {
		return nil, err
	}
	return v.custody.BalanceOf(ledger.Native, account), nil
}

// Claim pays the full accrued native balance of req.Ancestor to req.Recipient.
// The recipient must hold a nonzero balance of req.Source.
func (v *Vault) Claim(ctx context.Context, req ClaimRequest) (*uint256.Int, error) {
	if !wantsNative(req.Currencies) {
		return new(uint256.Int), nil
	}
	if v.custody.BalanceOf(req.Source, req.Recipient).IsZero() {
		return nil, fmt.Errorf("%w: %s has no %s", ErrNotEntitled, req.Recipient, req.Source)
	}

	account, err := v.AccountFor(req.Ancestor)
	if err != nil {
		return nil, err
	}
	payout := v.custody.BalanceOf(ledger.Native, account)
	if payout.IsZero() {
		return payout, nil
	}
	if err := v.custody.Transfer(ctx, ledger.Native, account, req.Recipient, payout); err != nil {
		return nil, fmt.Errorf("failed to pay royalty claim: %w", err)
	}

	v.logger.Info("Royalty claim paid",
		zap.String("ancestor", req.Ancestor.String()),
		zap.String("recipient", req.Recipient.String()),
		zap.Int("children", len(req.Children)),
		zap.String("payout", payout.Dec()))
	return payout, nil
}

func wantsNative(currencies []solana.PublicKey) bool {
	if len(currencies) == 0 {
		return true
	}
	for _, c := range currencies {
		if c.Equals(ledger.Native) {
			return true
		}
	}
	return false
}
