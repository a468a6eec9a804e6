// =============================
// File: internal/launchpad/queries.go
// =============================
package launchpad

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// GetTokenInfo returns a copy of the launch record of wrapper.
func (e *Engine) GetTokenInfo(ctx context.Context, wrapper solana.PublicKey) (*LaunchedToken, error) {
	defer e.read(ctx)()
	token, _, err := e.lookup(wrapper)
	if err != nil {
		return nil, err
	}
	return token.clone(), nil
}

// GetBondingCurve returns a copy of the curve state of wrapper.
func (e *Engine) GetBondingCurve(ctx context.Context, wrapper solana.PublicKey) (*BondingCurve, error) {
	defer e.read(ctx)()
	_, bc, err := e.lookup(wrapper)
	if err != nil {
		return nil, err
	}
	return bc.clone(), nil
}

// GetCurrentPrice returns the price of the next wrapper unit on the curve.
// After graduation it stays at the final curve price.
func (e *Engine) GetCurrentPrice(ctx context.Context, wrapper solana.PublicKey) (*uint256.Int, error) {
	defer e.read(ctx)()
	token, bc, err := e.lookup(wrapper)
	if err != nil {
		return nil, err
	}
	price, err := curvePrice(token, bc)
	if err != nil {
		return nil, curveError(err)
	}
	return price, nil
}

// GetMarketCap returns the current price times the wrapper units outside the
// curve. After graduation it returns the market cap the curve migrated at.
func (e *Engine) GetMarketCap(ctx context.Context, wrapper solana.PublicKey) (*uint256.Int, error) {
	defer e.read(ctx)()
	token, bc, err := e.lookup(wrapper)
	if err != nil {
		return nil, err
	}
	mcap, err := marketCap(token, bc)
	if err != nil {
		return nil, curveError(err)
	}
	return mcap, nil
}

// GetAllLaunchedTokens returns every wrapper in launch order.
func (e *Engine) GetAllLaunchedTokens(ctx context.Context) []solana.PublicKey {
	defer e.read(ctx)()
	out := make([]solana.PublicKey, len(e.order))
	copy(out, e.order)
	return out
}

// WrapperOf returns the wrapper launched against source.
func (e *Engine) WrapperOf(ctx context.Context, source solana.PublicKey) (solana.PublicKey, bool) {
	defer e.read(ctx)()
	w, ok := e.bySource[source]
	return w, ok
}

// QuoteBuy prices a buy of amountOut wrapper units without executing it.
func (e *Engine) QuoteBuy(ctx context.Context, wrapper solana.PublicKey, amountOut *uint256.Int) (*Quote, error) {
	defer e.read(ctx)()
	token, bc, err := e.activeCurve(wrapper)
	if err != nil {
		return nil, err
	}
	return quoteBuy(token, bc, amountOut)
}

// QuoteSell prices a sell of amountIn wrapper units without executing it.
func (e *Engine) QuoteSell(ctx context.Context, wrapper solana.PublicKey, amountIn *uint256.Int) (*Quote, error) {
	defer e.read(ctx)()
	token, bc, err := e.activeCurve(wrapper)
	if err != nil {
		return nil, err
	}
	return quoteSell(token, bc, amountIn)
}

func (e *Engine) activeCurve(wrapper solana.PublicKey) (*LaunchedToken, *BondingCurve, error) {
	token, bc, err := e.lookup(wrapper)
	if err != nil {
		return nil, nil, err
	}
	if !bc.IsActive {
		return nil, nil, fmt.Errorf("%w: %s", ErrInactiveCurve, wrapper)
	}
	return token, bc, nil
}
