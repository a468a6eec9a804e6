// internal/launchpad/mocks_test.go
package launchpad

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/royalty"
)

// MockClaimer реализует интерфейс royalty.Claimer
type MockClaimer struct {
	mock.Mock
}

func (m *MockClaimer) Claim(ctx context.Context, req royalty.ClaimRequest) (*uint256.Int, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*uint256.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockLiquidity реализует интерфейс amm.LiquidityProvider
type MockLiquidity struct {
	mock.Mock
}

func (m *MockLiquidity) AddLiquidity(ctx context.Context, req amm.AddLiquidityRequest) (*amm.Receipt, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*amm.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

// failingCustody rejects every transfer to one destination.
type failingCustody struct {
	*ledger.Memory
	failTo solana.PublicKey
}

func (f *failingCustody) Transfer(ctx context.Context, asset, from, to solana.PublicKey, amount *uint256.Int) error {
	if to == f.failTo {
		return errors.New("transfer rejected")
	}
	return f.Memory.Transfer(ctx, asset, from, to, amount)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) ofType(t events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}

var (
	testBasePrice      = uint256.NewInt(1_000_000_000) // 1 SOL per whole token
	testPriceIncrement = uint256.NewInt(10_000_000)    // +0.01 SOL per whole token sold
	testLockAmount     = uint256.NewInt(1_000)
	testNow            = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
)

// tokens converts whole wrapper tokens into minor units.
func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), curve.WAD)
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	engine    *Engine
	ledger    *ledger.Memory
	vault     *royalty.Vault
	pools     *amm.PoolManager
	clock     *clock.Mock
	published *recordingPublisher

	programID solana.PublicKey
	treasury  solana.PublicKey
	operator  solana.PublicKey
	creator   solana.PublicKey
	trader    solana.PublicKey
}

type harnessOption func(h *harness, cfg *Config, opts *Options)

func withThreshold(v *uint256.Int) harnessOption {
	return func(_ *harness, cfg *Config, _ *Options) { cfg.GraduationThreshold = v }
}

func withClaimer(c royalty.Claimer) harnessOption {
	return func(_ *harness, _ *Config, opts *Options) { opts.Claimer = c }
}

func withLiquidity(l amm.LiquidityProvider) harnessOption {
	return func(_ *harness, _ *Config, opts *Options) { opts.Liquidity = l }
}

func withCustody(wrap func(h *harness) ledger.Custody) harnessOption {
	return func(h *harness, _ *Config, opts *Options) { opts.Custody = wrap(h) }
}

func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		ledger:    ledger.NewMemory(logger),
		clock:     clock.NewMock(),
		published: &recordingPublisher{},
		programID: solana.NewWallet().PublicKey(),
		treasury:  solana.NewWallet().PublicKey(),
		operator:  solana.NewWallet().PublicKey(),
		creator:   solana.NewWallet().PublicKey(),
		trader:    solana.NewWallet().PublicKey(),
	}
	h.clock.Set(testNow)
	h.vault = royalty.NewVault(h.ledger, h.programID, logger)
	h.pools = amm.NewPoolManager(h.ledger, logger, amm.PoolManagerOptions{ProgramID: h.programID})

	cfg := Config{
		ProgramID:           h.programID,
		Treasury:            h.treasury,
		Operator:            h.operator,
		GraduationThreshold: uint256.MustFromDecimal("1000000000000000000000000000000"),
		WrapPerRT:           1_000_000_000_000_000_000,
	}
	opts := Options{
		Custody:   h.ledger,
		Claimer:   h.vault,
		Liquidity: h.pools,
		Clock:     h.clock,
		Publisher: h.published,
	}
	for _, o := range options {
		o(h, &cfg, &opts)
	}

	engine, err := NewEngine(cfg, opts, logger)
	require.NoError(t, err)
	h.engine = engine

	require.NoError(t, h.ledger.Credit(h.trader, uint256.NewInt(1_000_000_000_000)))
	return h
}

// launch mints a fresh source asset to the creator and launches it.
func (h *harness) launch(amount *uint256.Int) *LaunchedToken {
	h.t.Helper()
	source := solana.NewWallet().PublicKey()
	require.NoError(h.t, h.ledger.Mint(h.ctx, source, h.creator, amount))

	token, err := h.engine.Launch(h.ctx, h.launchParams(source, amount))
	require.NoError(h.t, err)
	return token
}

func (h *harness) launchParams(source solana.PublicKey, amount *uint256.Int) LaunchParams {
	return LaunchParams{
		Source:         source,
		Amount:         amount,
		Name:           "Royalty Wrapper",
		Symbol:         "wRT",
		BasePrice:      testBasePrice,
		PriceIncrement: testPriceIncrement,
		Actor:          h.creator,
	}
}

func (h *harness) buy(wrapper solana.PublicKey, amount *uint256.Int) *TradeReceipt {
	h.t.Helper()
	receipt, err := h.engine.Buy(h.ctx, BuyParams{
		Wrapper:   wrapper,
		AmountOut: amount,
		MaxCost:   uint256.MustFromDecimal("1000000000000000000000000"),
		Actor:     h.trader,
	})
	require.NoError(h.t, err)
	return receipt
}

func (h *harness) curveOf(wrapper solana.PublicKey) *BondingCurve {
	h.t.Helper()
	bc, err := h.engine.GetBondingCurve(h.ctx, wrapper)
	require.NoError(h.t, err)
	return bc
}

func (h *harness) native(holder solana.PublicKey) *uint256.Int {
	return h.ledger.BalanceOf(ledger.Native, holder)
}

// accrue pays amount of native revenue into the royalty vault of ancestor.
func (h *harness) accrue(ancestor solana.PublicKey, amount uint64) {
	h.t.Helper()
	payer := solana.NewWallet().PublicKey()
	require.NoError(h.t, h.ledger.Credit(payer, uint256.NewInt(amount)))
	require.NoError(h.t, h.vault.Accrue(h.ctx, ancestor, payer, uint256.NewInt(amount)))
}
