package amm

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

func newPoolManager(t *testing.T) (*PoolManager, *ledger.Memory) {
	logger := zaptest.NewLogger(t)
	l := ledger.NewMemory(logger)
	pm := NewPoolManager(l, logger, PoolManagerOptions{ProgramID: solana.NewWallet().PublicKey()})
	return pm, l
}

func TestCalculateOutput(t *testing.T) {
	// Резервы взяты из реального пула PumpSwap
	reserves := uint256.NewInt(742080)
	otherReserves := uint256.NewInt(33322)
	amount := uint256.NewInt(136824)

	out, err := CalculateOutput(reserves, otherReserves, amount, DefaultFeeBps)
	require.NoError(t, err)

	// a' = 136824 * 9975 / 10000 = 136481; out = 33322 * 136481 / (742080 + 136481)
	assert.Equal(t, uint64(33322*136481/(742080+136481)), out.Uint64())

	_, err = CalculateOutput(new(uint256.Int), otherReserves, amount, DefaultFeeBps)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestAddLiquidityFirstDepositLocksMinimum(t *testing.T) {
	ctx := context.Background()
	pm, l := newPoolManager(t)

	token := solana.NewWallet().PublicKey()
	provider := solana.NewWallet().PublicKey()
	require.NoError(t, l.Mint(ctx, token, provider, uint256.NewInt(4_000_000)))
	require.NoError(t, l.Credit(provider, uint256.NewInt(1_000_000)))

	receipt, err := pm.AddLiquidity(ctx, AddLiquidityRequest{
		Token:        token,
		Provider:     provider,
		TokenAmount:  uint256.NewInt(4_000_000),
		NativeAmount: uint256.NewInt(1_000_000),
	})
	require.NoError(t, err)

	// sqrt(4e12) = 2e6
	assert.Equal(t, uint64(2_000_000-1_000), receipt.Liquidity.Uint64())
	assert.Equal(t, receipt.Liquidity.Uint64(), l.BalanceOf(receipt.LPMint, provider).Uint64())
	assert.Equal(t, uint64(1_000), l.BalanceOf(receipt.LPMint, ledger.BurnAddress).Uint64())

	info, err := pm.FetchPoolInfo(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_000_000), info.TokenReserves.Uint64())
	assert.Equal(t, uint64(1_000_000), info.NativeReserves.Uint64())
	assert.Equal(t, uint64(2_000_000), info.LPSupply.Uint64())
}

func TestAddLiquidityTopUpIsProRata(t *testing.T) {
	ctx := context.Background()
	pm, l := newPoolManager(t)

	token := solana.NewWallet().PublicKey()
	provider := solana.NewWallet().PublicKey()
	require.NoError(t, l.Mint(ctx, token, provider, uint256.NewInt(10_000_000)))
	require.NoError(t, l.Credit(provider, uint256.NewInt(10_000_000)))

	_, err := pm.AddLiquidity(ctx, AddLiquidityRequest{Token: token, Provider: provider,
		TokenAmount: uint256.NewInt(4_000_000), NativeAmount: uint256.NewInt(1_000_000)})
	require.NoError(t, err)

	receipt, err := pm.AddLiquidity(ctx, AddLiquidityRequest{Token: token, Provider: provider,
		TokenAmount: uint256.NewInt(2_000_000), NativeAmount: uint256.NewInt(1_000_000)})
	require.NoError(t, err)

	// token side gives 2e6*2e6/4e6 = 1e6, native side 1e6*2e6/1e6 = 2e6; the smaller wins
	assert.Equal(t, uint64(1_000_000), receipt.Liquidity.Uint64())
}

func TestAddLiquidityFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	pm, l := newPoolManager(t)

	token := solana.NewWallet().PublicKey()
	provider := solana.NewWallet().PublicKey()
	require.NoError(t, l.Mint(ctx, token, provider, uint256.NewInt(4_000_000)))
	// no native balance: the native leg fails after the token leg moved

	_, err := pm.AddLiquidity(ctx, AddLiquidityRequest{Token: token, Provider: provider,
		TokenAmount: uint256.NewInt(4_000_000), NativeAmount: uint256.NewInt(1_000_000)})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.Equal(t, uint64(4_000_000), l.BalanceOf(token, provider).Uint64())
	_, err = pm.FetchPoolInfo(token)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestAddLiquidityRejectsZero(t *testing.T) {
	pm, _ := newPoolManager(t)
	_, err := pm.AddLiquidity(context.Background(), AddLiquidityRequest{
		Token:        solana.NewWallet().PublicKey(),
		TokenAmount:  uint256.NewInt(1),
		NativeAmount: new(uint256.Int),
	})
	assert.ErrorIs(t, err, ErrZeroLiquidity)
}

func TestSwapMovesReserves(t *testing.T) {
	ctx := context.Background()
	pm, l := newPoolManager(t)

	token := solana.NewWallet().PublicKey()
	provider := solana.NewWallet().PublicKey()
	trader := solana.NewWallet().PublicKey()
	require.NoError(t, l.Mint(ctx, token, provider, uint256.NewInt(4_000_000)))
	require.NoError(t, l.Credit(provider, uint256.NewInt(1_000_000)))
	require.NoError(t, l.Credit(trader, uint256.NewInt(100_000)))

	_, err := pm.AddLiquidity(ctx, AddLiquidityRequest{Token: token, Provider: provider,
		TokenAmount: uint256.NewInt(4_000_000), NativeAmount: uint256.NewInt(1_000_000)})
	require.NoError(t, err)

	quote, err := pm.Quote(token, true, uint256.NewInt(100_000))
	require.NoError(t, err)

	_, err = pm.Swap(ctx, SwapParams{Token: token, Trader: trader, NativeIn: true,
		AmountIn: uint256.NewInt(100_000), MinAmountOut: new(uint256.Int).AddUint64(quote, 1)})
	assert.ErrorIs(t, err, ErrSlippageExceeded)

	out, err := pm.Swap(ctx, SwapParams{Token: token, Trader: trader, NativeIn: true,
		AmountIn: uint256.NewInt(100_000), MinAmountOut: quote})
	require.NoError(t, err)
	assert.Equal(t, quote.Uint64(), out.Uint64())
	assert.Equal(t, out.Uint64(), l.BalanceOf(token, trader).Uint64())
	assert.True(t, l.BalanceOf(ledger.Native, trader).IsZero())
}
