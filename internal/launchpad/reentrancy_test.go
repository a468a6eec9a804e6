package launchpad

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/curve"
)

func TestClaimerCannotReenter(t *testing.T) {
	claimer := new(MockClaimer)
	h := newHarness(t, withClaimer(claimer))
	token := h.launch(testLockAmount)

	var (
		reentryErr error
		observed   *BondingCurve
	)
	claimer.On("Claim", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, reentryErr = h.engine.Buy(ctx, BuyParams{
			Wrapper:   token.Wrapper,
			AmountOut: tokens(1),
			MaxCost:   uint256.NewInt(1_000_000_000_000),
			Actor:     h.trader,
		})
		// reads inside the call see the operation's own state without deadlocking
		observed, _ = h.engine.GetBondingCurve(ctx, token.Wrapper)
	}).Return(new(uint256.Int), nil)

	_, err := h.engine.Harvest(h.ctx, token.Wrapper, h.trader)
	require.NoError(t, err)
	assert.ErrorIs(t, reentryErr, ErrReentrantCall)
	require.NotNil(t, observed)
	assert.True(t, observed.IsActive)

	// the rejected buy left nothing behind
	assert.True(t, h.ledger.BalanceOf(token.Wrapper, h.trader).IsZero())
	assert.Equal(t, tokens(750).Dec(), h.curveOf(token.Wrapper).CurrentSupply.Dec())
}

// observingLiquidity records the curve state seen while the pool is created.
type observingLiquidity struct {
	inner    amm.LiquidityProvider
	observe  func(ctx context.Context)
	reenter  func(ctx context.Context) error
	reentErr error
}

func (o *observingLiquidity) AddLiquidity(ctx context.Context, req amm.AddLiquidityRequest) (*amm.Receipt, error) {
	o.observe(ctx)
	o.reentErr = o.reenter(ctx)
	return o.inner.AddLiquidity(ctx, req)
}

func TestGraduationDeactivatesBeforePoolCall(t *testing.T) {
	var (
		h        *harness
		wrapper  solana.PublicKey
		duringLP *BondingCurve
	)
	lp := &observingLiquidity{
		observe: func(ctx context.Context) {
			duringLP, _ = h.engine.GetBondingCurve(ctx, wrapper)
		},
		reenter: func(ctx context.Context) error {
			_, err := h.engine.Sell(ctx, SellParams{
				Wrapper:     wrapper,
				AmountIn:    tokens(1),
				MinProceeds: new(uint256.Int),
				Actor:       h.creator,
			})
			return err
		},
	}
	h = newHarness(t, withThreshold(uint256.NewInt(1)), withLiquidity(lp))
	lp.inner = h.pools

	token := h.launch(testLockAmount)
	wrapper = token.Wrapper
	h.accrue(token.Source, 5_000_000_000)

	receipt, err := h.engine.Harvest(h.ctx, token.Wrapper, h.trader)
	require.NoError(t, err)
	require.NotNil(t, receipt.Graduation)

	require.NotNil(t, duringLP)
	assert.False(t, duringLP.IsActive)
	assert.ErrorIs(t, lp.reentErr, ErrReentrantCall)
	assert.Equal(t, tokens(50).Dec(), h.ledger.BalanceOf(token.Wrapper, h.creator).Dec())
}

func TestConcurrentBuysSerialize(t *testing.T) {
	h := newHarness(t)
	token := h.launch(testLockAmount)

	const traders = 8
	const buysEach = 5
	buyers := make([]solana.PublicKey, traders)
	for i := range buyers {
		buyers[i] = solana.NewWallet().PublicKey()
		require.NoError(t, h.ledger.Credit(buyers[i], uint256.NewInt(1_000_000_000_000)))
	}

	g, ctx := errgroup.WithContext(h.ctx)
	for _, buyer := range buyers {
		g.Go(func() error {
			for i := 0; i < buysEach; i++ {
				if _, err := h.engine.Buy(ctx, BuyParams{
					Wrapper:   token.Wrapper,
					AmountOut: tokens(1),
					MaxCost:   uint256.NewInt(1_000_000_000_000),
					Actor:     buyer,
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// every buy has the same size, so the total is independent of ordering
	expected := new(uint256.Int)
	for sold := uint64(0); sold < traders*buysEach; sold++ {
		cost, err := curve.BuyCost(testBasePrice, testPriceIncrement, tokens(sold), tokens(1))
		require.NoError(t, err)
		expected.Add(expected, cost)
	}

	bc := h.curveOf(token.Wrapper)
	assert.Equal(t, expected.Dec(), bc.ReserveBalance.Dec())
	assert.Equal(t, tokens(750-traders*buysEach).Dec(), bc.CurrentSupply.Dec())
	assert.Equal(t, expected.Dec(), h.native(h.engine.Address()).Dec())
	for _, buyer := range buyers {
		assert.Equal(t, tokens(buysEach).Dec(), h.ledger.BalanceOf(token.Wrapper, buyer).Dec())
	}
}
