// =============================
// File: internal/amm/swap.go
// =============================
package amm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// SwapParams describes a swap against a graduated pool.
type SwapParams struct {
	Token        solana.PublicKey
	Trader       solana.PublicKey
	NativeIn     bool // true buys Token with native, false sells Token for native
	AmountIn     *uint256.Int
	MinAmountOut *uint256.Int
}

// CalculateOutput implements the constant-product formula with the fee applied
// to the input:
//
//	out = y * a' / (x + a'),  a' = a * (10000 - feeBps) / 10000
//
// where x is the input-side reserve and y the output-side reserve.
func CalculateOutput(reserveIn, reserveOut, amountIn *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	aFee, overflow := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(bpsDenominator-feeBps))
	if overflow {
		return nil, ErrOverflow
	}
	aFee.Div(aFee, uint256.NewInt(bpsDenominator))

	numerator, overflow := new(uint256.Int).MulOverflow(reserveOut, aFee)
	if overflow {
		return nil, ErrOverflow
	}
	denominator, overflow := new(uint256.Int).AddOverflow(reserveIn, aFee)
	if overflow {
		return nil, ErrOverflow
	}
	return numerator.Div(numerator, denominator), nil
}

// Quote returns the expected output of a swap without executing it.
func (pm *PoolManager) Quote(token solana.PublicKey, nativeIn bool, amountIn *uint256.Int) (*uint256.Int, error) {
	info, err := pm.FetchPoolInfo(token)
	if err != nil {
		return nil, err
	}
	if nativeIn {
		return CalculateOutput(info.NativeReserves, info.TokenReserves, amountIn, pm.feeBps)
	}
	return CalculateOutput(info.TokenReserves, info.NativeReserves, amountIn, pm.feeBps)
}

// Swap executes a swap and returns the amount paid out.
func (pm *PoolManager) Swap(ctx context.Context, params SwapParams) (*uint256.Int, error) {
	info, err := pm.FetchPoolInfo(params.Token)
	if err != nil {
		return nil, err
	}

	out, err := pm.Quote(params.Token, params.NativeIn, params.AmountIn)
	if err != nil {
		return nil, err
	}
	if params.MinAmountOut != nil && out.Lt(params.MinAmountOut) {
		return nil, fmt.Errorf("%w: got %s, minimum %s", ErrSlippageExceeded, out.Dec(), params.MinAmountOut.Dec())
	}

	inAsset, outAsset := params.Token, ledger.Native
	if params.NativeIn {
		inAsset, outAsset = ledger.Native, params.Token
	}

	snap := pm.custody.Snapshot()
	fail := func(err error) (*uint256.Int, error) {
		if rerr := pm.custody.RevertToSnapshot(snap); rerr != nil {
			pm.logger.Error("Failed to revert swap", zap.Error(rerr))
		}
		return nil, err
	}
	if err := pm.custody.Transfer(ctx, inAsset, params.Trader, info.Address, params.AmountIn); err != nil {
		return fail(fmt.Errorf("failed to pay swap input: %w", err))
	}
	if err := pm.custody.Transfer(ctx, outAsset, info.Address, params.Trader, out); err != nil {
		return fail(fmt.Errorf("failed to pay swap output: %w", err))
	}
	if err := pm.custody.DiscardSnapshot(snap); err != nil {
		pm.logger.Error("Failed to release swap snapshot", zap.Error(err))
	}

	pm.logger.Debug("Swap executed",
		zap.String("pool", info.Address.String()),
		zap.Bool("native_in", params.NativeIn),
		zap.String("amount_in", params.AmountIn.Dec()),
		zap.String("amount_out", out.Dec()))

	return out, nil
}
