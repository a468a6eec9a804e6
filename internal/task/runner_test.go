package task

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

var testStart = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fixture struct {
	env      *Environment
	runner   *Runner
	manager  *Manager
	operator solana.PublicKey
}

func newFixture(t *testing.T, threshold string) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	operator := solana.NewWallet().PublicKey()
	treasury := solana.NewWallet().PublicKey()

	env, err := NewEnvironment(EnvironmentConfig{
		Engine: launchpad.Config{
			ProgramID:           solana.NewWallet().PublicKey(),
			Treasury:            treasury,
			Operator:            operator,
			GraduationThreshold: uint256.MustFromDecimal(threshold),
			WrapPerRT:           1_000_000_000_000_000_000,
		},
		Start: testStart,
	}, nil, nil, logger)
	require.NoError(t, err)

	return &fixture{
		env:      env,
		runner:   NewRunner(env, operator, treasury, logger),
		manager:  NewManager(logger),
		operator: operator,
	}
}

func (f *fixture) parse(t *testing.T, doc string) *Scenario {
	t.Helper()
	scenario, err := f.manager.ParseScenario([]byte(doc))
	require.NoError(t, err)
	return scenario
}

func TestRunLifecycleScenario(t *testing.T) {
	f := newFixture(t, "69000000000000")
	ctx := context.Background()

	scenario, err := f.manager.LoadScenario(filepath.Join("testdata", "lifecycle.yaml"))
	require.NoError(t, err)

	report, err := f.runner.Run(ctx, scenario)
	require.NoError(t, err)
	require.Len(t, report.Results, len(scenario.Tasks))

	// expected failures are recorded, not fatal
	assert.Contains(t, report.Results[2].Err, "slippage exceeded")
	assert.Contains(t, report.Results[7].Err, "insufficient escrow")
	assert.Empty(t, report.Results[3].Err)
	assert.Contains(t, report.Results[1].Detail, "buy 10 for")
	assert.Equal(t, "clock at 2026-10-19T13:00:00Z", report.Results[9].Detail)

	require.Len(t, report.Tokens, 2)
	song, album := report.Tokens[0], report.Tokens[1]

	assert.Equal(t, "wSONG", song.Symbol)
	assert.Equal(t, "742", song.CurveLeft)
	assert.Equal(t, "1.08", song.Price)
	// 258 tokens outside the curve at 1.08
	assert.Equal(t, "278.64", song.MarketCap)
	// buy cost 10.499999999, sell proceeds 2.179999999, harvest 5
	assert.Equal(t, "13.32", song.Reserve)
	assert.Equal(t, "5", song.Harvested)
	assert.False(t, song.Graduated)
	assert.Empty(t, song.Pool)
	assert.Equal(t, "0", song.FreeNative)

	assert.Equal(t, "wALBUM", album.Symbol)
	assert.Equal(t, "0.5", album.Price)
	assert.Equal(t, "375", album.CurveLeft)

	alice := scenario.Wallets["alice"].PublicKey
	albumSource := f.runner.sources["album"]
	assert.True(t, f.env.Engine.GetDepositBalance(ctx, alice, albumSource).IsZero())
	assert.Equal(t, testStart.Add(time.Hour), f.env.Clock.Now())
}

func TestRunGraduationScenario(t *testing.T) {
	// 280 native
	f := newFixture(t, "280000000000")
	ctx := context.Background()

	scenario := f.parse(t, `
wallets:
  - name: alice
  - name: bob
    native: "100"
sources:
  - name: song
    owner: alice
    supply: "1000"
tasks:
  - operation: launch
    wallet: alice
    source: song
    amount: "1000"
    name: Song Royalty
    symbol: wSONG
    base_price: "1"
    price_increment: "0.01"
  - operation: buy
    wallet: bob
    source: song
    amount: "1"
  - task_name: crosses the threshold
    operation: buy
    wallet: bob
    source: song
    amount: "10"
  - task_name: curve closed
    operation: buy
    wallet: bob
    source: song
    amount: "1"
    expect_error: not active
  - task_name: pool trade
    operation: swap
    wallet: bob
    source: song
    native_in: true
    amount: "1"
    limit: "0.5"
`)

	report, err := f.runner.Run(ctx, scenario)
	require.NoError(t, err)

	assert.NotContains(t, report.Results[1].Detail, "graduated")
	assert.Contains(t, report.Results[2].Detail, "graduated into")
	assert.True(t, strings.HasPrefix(report.Results[4].Detail, "swapped 1 for"))

	require.Len(t, report.Tokens, 1)
	song := report.Tokens[0]
	assert.True(t, song.Graduated)
	assert.NotEmpty(t, song.Pool)
	assert.Equal(t, "0", song.Reserve)
	assert.Equal(t, "0", song.CurveLeft)

	pool, err := solana.PublicKeyFromBase58(song.Pool)
	require.NoError(t, err)
	wrapper := solana.MustPublicKeyFromBase58(song.Wrapper)
	bob := scenario.Wallets["bob"].PublicKey
	// 11 bought on the curve, the rest from the pool
	assert.True(t, f.env.Ledger.BalanceOf(wrapper, bob).Gt(uint256.MustFromDecimal("11000000000000000000")))
	assert.False(t, f.env.Ledger.BalanceOf(ledger.Native, pool).IsZero())
}

func TestRunStopsOnUnexpectedOutcome(t *testing.T) {
	tests := []struct {
		name    string
		task    string
		results int
		wantErr error
		message string
	}{
		{
			name:    "expected failure succeeded",
			task:    `{operation: buy, wallet: bob, source: song, amount: "1", expect_error: slippage}`,
			results: 2,
			wantErr: ErrUnexpectedOutcome,
			message: "succeeded",
		},
		{
			name:    "different failure",
			task:    `{operation: buy, wallet: bob, source: song, amount: "1", limit: "0.5", expect_error: deadline}`,
			results: 2,
			wantErr: ErrUnexpectedOutcome,
			message: "slippage",
		},
		{
			name:    "unexpected failure",
			task:    `{operation: sell, wallet: bob, source: song, amount: "1"}`,
			results: 2,
			wantErr: launchpad.ErrValidation,
		},
		{
			name:    "unknown wallet",
			task:    `{operation: buy, wallet: mallory, source: song, amount: "1"}`,
			results: 2,
			message: "unknown wallet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "69000000000000")
			scenario := f.parse(t, `
wallets: [{name: alice}, {name: bob, native: "10"}]
sources: [{name: song, owner: alice, supply: "1000"}]
tasks:
  - {operation: launch, wallet: alice, source: song, amount: "1000", name: Song, symbol: wSONG, base_price: "1"}
  - `+tt.task+`
  - {operation: advance, duration: 1m}
`)
			report, err := f.runner.Run(context.Background(), scenario)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
			require.NotNil(t, report)
			assert.Len(t, report.Results, tt.results)
			assert.Nil(t, report.Tokens)
			// the advance step never ran
			assert.Equal(t, testStart, f.env.Clock.Now())
		})
	}
}

func TestRunBindsOperator(t *testing.T) {
	f := newFixture(t, "69000000000000")
	ctx := context.Background()

	scenario := f.parse(t, `
wallets: [{name: alice, native: "3"}, {name: vault_keeper}]
tasks:
  - task_name: revenue accrues
    operation: accrue
    wallet: alice
    source: song
    amount: "1"
  - {operation: emergency_withdraw, wallet: operator, asset: native, destination: vault_keeper, amount: "2", expect_error: free balance}
sources: [{name: song, owner: alice, supply: "1"}]
`)
	report, err := f.runner.Run(ctx, scenario)
	require.NoError(t, err)
	assert.Contains(t, report.Results[1].Err, "exceeds free balance")
	assert.Equal(t, f.operator, f.runner.wallets["operator"].PublicKey)
	assert.Nil(t, f.runner.wallets["operator"].PrivateKey)
	// accrued revenue sits in the royalty vault, not the engine
	accrued, err := f.env.Vault.Accrued(f.runner.sources["song"])
	require.NoError(t, err)
	assert.Equal(t, "1000000000", accrued.Dec())
}

func TestRunHonorsContext(t *testing.T) {
	f := newFixture(t, "69000000000000")
	scenario := f.parse(t, "tasks: [{operation: advance, duration: 1s}]")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := f.runner.Run(ctx, scenario)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
}
