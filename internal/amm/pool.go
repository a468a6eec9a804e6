// =============================
// File: internal/amm/pool.go
// =============================
package amm

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

const (
	// DefaultFeeBps is the swap fee charged by graduated pools (0.25%).
	DefaultFeeBps = 25

	bpsDenominator = 10_000
)

// MinimumLiquidity is locked forever on the first deposit of every pool.
var MinimumLiquidity = uint256.NewInt(1_000)

var (
	ErrZeroLiquidity         = errors.New("liquidity amounts must be greater than zero")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrSlippageExceeded      = errors.New("swap output below minimum")
	ErrOverflow              = errors.New("arithmetic overflow")
)

var (
	poolSeed = []byte("pool")
	lpSeed   = []byte("lp-mint")
)

// AddLiquidityRequest deposits both sides of a token/native pool.
type AddLiquidityRequest struct {
	Token        solana.PublicKey
	Provider     solana.PublicKey
	TokenAmount  *uint256.Int
	NativeAmount *uint256.Int
}

// Receipt is the pool-ownership position returned to the provider.
type Receipt struct {
	Pool         solana.PublicKey
	LPMint       solana.PublicKey
	Liquidity    *uint256.Int
	TokenAmount  *uint256.Int
	NativeAmount *uint256.Int
}

// LiquidityProvider creates or tops up a constant-product pool. Implementations
// must leave no partial effect when they return an error. During graduation
// AddLiquidity runs under the engine's write lock, and callbacks into the
// engine must carry ctx to be rejected instead of deadlocking.
type LiquidityProvider interface {
	AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*Receipt, error)
}

// PoolInfo is a read-only view of a pool.
type PoolInfo struct {
	Address        solana.PublicKey
	Token          solana.PublicKey
	LPMint         solana.PublicKey
	TokenReserves  *uint256.Int
	NativeReserves *uint256.Int
	LPSupply       *uint256.Int
}

// PoolManager runs token/native constant-product pools on top of a ledger.
// All pool state lives in the ledger, so a ledger revert also reverts pools.
type PoolManager struct {
	custody   ledger.Custody
	programID solana.PublicKey
	feeBps    uint64
	logger    *zap.Logger
}

// PoolManagerOptions holds construction options for PoolManager.
type PoolManagerOptions struct {
	ProgramID solana.PublicKey
	FeeBps    uint64
}

// NewPoolManager creates a new PoolManager.
func NewPoolManager(custody ledger.Custody, logger *zap.Logger, opts PoolManagerOptions) *PoolManager {
	if opts.FeeBps == 0 {
		opts.FeeBps = DefaultFeeBps
	}

	logger.Info("Creating pool manager",
		zap.String("program_id", opts.ProgramID.String()),
		zap.Uint64("fee_bps", opts.FeeBps))

	return &PoolManager{
		custody:   custody,
		programID: opts.ProgramID,
		feeBps:    opts.FeeBps,
		logger:    logger.Named("pool_manager"),
	}
}

// Addresses derives the pool account and its LP mint for token.
func (pm *PoolManager) Addresses(token solana.PublicKey) (pool, lpMint solana.PublicKey, err error) {
	pool, _, err = solana.FindProgramAddress([][]byte{poolSeed, token.Bytes()}, pm.programID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive pool address: %w", err)
	}
	lpMint, _, err = solana.FindProgramAddress([][]byte{lpSeed, pool.Bytes()}, pm.programID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive lp mint: %w", err)
	}
	return pool, lpMint, nil
}

// FetchPoolInfo reads the pool for token from the ledger.
func (pm *PoolManager) FetchPoolInfo(token solana.PublicKey) (*PoolInfo, error) {
	pool, lpMint, err := pm.Addresses(token)
	if err != nil {
		return nil, err
	}
	supply := pm.custody.TotalSupply(lpMint)
	if supply.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, token)
	}
	return &PoolInfo{
		Address:        pool,
		Token:          token,
		LPMint:         lpMint,
		TokenReserves:  pm.custody.BalanceOf(token, pool),
		NativeReserves: pm.custody.BalanceOf(ledger.Native, pool),
		LPSupply:       supply,
	}, nil
}

// AddLiquidity deposits both sides and mints LP tokens to the provider. The first
// deposit mints sqrt(token*native) and locks MinimumLiquidity at the burn address.
func (pm *PoolManager) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*Receipt, error) {
	if req.TokenAmount == nil || req.NativeAmount == nil || req.TokenAmount.IsZero() || req.NativeAmount.IsZero() {
		return nil, ErrZeroLiquidity
	}

	pool, lpMint, err := pm.Addresses(req.Token)
	if err != nil {
		return nil, err
	}

	supply := pm.custody.TotalSupply(lpMint)
	var liquidity *uint256.Int
	lockMinimum := supply.IsZero()

	if lockMinimum {
		k, overflow := new(uint256.Int).MulOverflow(req.TokenAmount, req.NativeAmount)
		if overflow {
			return nil, ErrOverflow
		}
		root := new(uint256.Int).Sqrt(k)
		if !root.Gt(MinimumLiquidity) {
			return nil, fmt.Errorf("%w: sqrt(k)=%s", ErrInsufficientLiquidity, root.Dec())
		}
		liquidity = root.Sub(root, MinimumLiquidity)
	} else {
		tokenRes := pm.custody.BalanceOf(req.Token, pool)
		nativeRes := pm.custody.BalanceOf(ledger.Native, pool)
		byToken, err := proRata(req.TokenAmount, supply, tokenRes)
		if err != nil {
			return nil, err
		}
		byNative, err := proRata(req.NativeAmount, supply, nativeRes)
		if err != nil {
			return nil, err
		}
		liquidity = byToken
		if byNative.Lt(byToken) {
			liquidity = byNative
		}
		if liquidity.IsZero() {
			return nil, ErrInsufficientLiquidity
		}
	}

	snap := pm.custody.Snapshot()
	fail := func(err error) (*Receipt, error) {
		if rerr := pm.custody.RevertToSnapshot(snap); rerr != nil {
			pm.logger.Error("Failed to revert pool deposit", zap.Error(rerr))
		}
		return nil, err
	}

	if err := pm.custody.Transfer(ctx, req.Token, req.Provider, pool, req.TokenAmount); err != nil {
		return fail(fmt.Errorf("failed to deposit token side: %w", err))
	}
	if err := pm.custody.Transfer(ctx, ledger.Native, req.Provider, pool, req.NativeAmount); err != nil {
		return fail(fmt.Errorf("failed to deposit native side: %w", err))
	}
	if lockMinimum {
		if err := pm.custody.Mint(ctx, lpMint, ledger.BurnAddress, MinimumLiquidity); err != nil {
			return fail(fmt.Errorf("failed to lock minimum liquidity: %w", err))
		}
	}
	if err := pm.custody.Mint(ctx, lpMint, req.Provider, liquidity); err != nil {
		return fail(fmt.Errorf("failed to mint lp tokens: %w", err))
	}
	if err := pm.custody.DiscardSnapshot(snap); err != nil {
		pm.logger.Error("Failed to release pool deposit snapshot", zap.Error(err))
	}

	pm.logger.Info("Liquidity added",
		zap.String("pool", pool.String()),
		zap.String("token", req.Token.String()),
		zap.String("token_amount", req.TokenAmount.Dec()),
		zap.String("native_amount", req.NativeAmount.Dec()),
		zap.String("liquidity", liquidity.Dec()))

	return &Receipt{
		Pool:         pool,
		LPMint:       lpMint,
		Liquidity:    liquidity,
		TokenAmount:  req.TokenAmount.Clone(),
		NativeAmount: req.NativeAmount.Clone(),
	}, nil
}

func proRata(amount, supply, reserve *uint256.Int) (*uint256.Int, error) {
	if reserve.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	v, overflow := new(uint256.Int).MulOverflow(amount, supply)
	if overflow {
		return nil, ErrOverflow
	}
	return v.Div(v, reserve), nil
}
