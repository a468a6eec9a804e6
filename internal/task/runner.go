// =============================================
// File: internal/task/runner.go
// =============================================
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/royalty"
)

// ErrUnexpectedOutcome marks a step whose result differs from its expect_error.
var ErrUnexpectedOutcome = errors.New("unexpected task outcome")

// EnvironmentConfig holds the parameters of an in-memory deployment.
type EnvironmentConfig struct {
	Engine     launchpad.Config
	PoolFeeBps uint64
	Start      time.Time
}

// Environment is an in-memory deployment: one ledger shared by the engine,
// the royalty vault and the pools.
type Environment struct {
	Engine *launchpad.Engine
	Ledger *ledger.Memory
	Vault  *royalty.Vault
	Pools  *amm.PoolManager
	Clock  *clock.Mock
}

// NewEnvironment wires an engine to in-memory capabilities.
func NewEnvironment(cfg EnvironmentConfig, publisher launchpad.Publisher, recorder launchpad.OperationRecorder, logger *zap.Logger) (*Environment, error) {
	book := ledger.NewMemory(logger)
	vault := royalty.NewVault(book, cfg.Engine.ProgramID, logger)
	pools := amm.NewPoolManager(book, logger, amm.PoolManagerOptions{
		ProgramID: cfg.Engine.ProgramID,
		FeeBps:    cfg.PoolFeeBps,
	})

	mock := clock.NewMock()
	if !cfg.Start.IsZero() {
		mock.Set(cfg.Start)
	}

	engine, err := launchpad.NewEngine(cfg.Engine, launchpad.Options{
		Custody:   book,
		Claimer:   vault,
		Liquidity: pools,
		Clock:     mock,
		Publisher: publisher,
		Recorder:  recorder,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Environment{
		Engine: engine,
		Ledger: book,
		Vault:  vault,
		Pools:  pools,
		Clock:  mock,
	}, nil
}

// Result is the outcome of one task.
type Result struct {
	Task   string
	Detail string
	Err    string
}

// TokenSummary is the final state of one launched token.
type TokenSummary struct {
	Symbol     string
	Wrapper    string
	Price      string
	MarketCap  string
	Reserve    string
	CurveLeft  string
	Harvested  string
	Graduated  bool
	Pool       string
	FreeNative string
}

// Report collects task results and the final token states.
type Report struct {
	Results []Result
	Tokens  []TokenSummary
}

// Runner executes scenarios against an environment.
type Runner struct {
	env       *Environment
	operator  solana.PublicKey
	treasury  solana.PublicKey
	logger    *zap.Logger
	sources   map[string]solana.PublicKey
	wallets   Wallets
	sourceKey func() solana.PublicKey
}

// NewRunner creates a runner. operator and treasury are bound to the wallet
// names "operator" and "treasury" unless a scenario defines them.
func NewRunner(env *Environment, operator, treasury solana.PublicKey, logger *zap.Logger) *Runner {
	return &Runner{
		env:      env,
		operator: operator,
		treasury: treasury,
		logger:   logger.Named("runner"),
		sourceKey: func() solana.PublicKey {
			return solana.NewWallet().PublicKey()
		},
	}
}

// Run funds the scenario's wallets, mints its sources and executes every task
// in order. It stops at the first task whose outcome differs from its expectation.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) (*Report, error) {
	if err := r.setup(ctx, scenario); err != nil {
		return nil, err
	}

	report := &Report{}
	for _, t := range scenario.Tasks {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		done := logger.Track(r.logger, string(t.Operation))
		detail, err := r.execute(ctx, t)
		done(err)
		res := Result{Task: t.String(), Detail: detail}
		if err != nil {
			res.Err = err.Error()
		}
		report.Results = append(report.Results, res)

		if outcome := checkOutcome(t, err); outcome != nil {
			r.logger.Error("Task failed", zap.String("task", t.String()), zap.Error(outcome))
			return report, outcome
		}
		r.logger.Debug("Task done",
			zap.String("task", t.String()),
			zap.String("detail", detail),
			zap.NamedError("expected_error", err))
	}

	tokens, err := r.summarize(ctx)
	if err != nil {
		return report, err
	}
	report.Tokens = tokens
	return report, nil
}

func checkOutcome(t *Task, err error) error {
	switch {
	case t.ExpectError == "" && err != nil:
		return fmt.Errorf("task %s: %w", t, err)
	case t.ExpectError != "" && err == nil:
		return fmt.Errorf("%w: task %s succeeded, expected error %q", ErrUnexpectedOutcome, t, t.ExpectError)
	case t.ExpectError != "" && !strings.Contains(err.Error(), t.ExpectError):
		return fmt.Errorf("%w: task %s failed with %q, expected %q", ErrUnexpectedOutcome, t, err, t.ExpectError)
	}
	return nil
}

func (r *Runner) setup(ctx context.Context, scenario *Scenario) error {
	r.wallets = make(Wallets, len(scenario.Wallets)+2)
	for name, w := range scenario.Wallets {
		r.wallets[name] = w
	}
	r.wallets.Bind("operator", r.operator)
	r.wallets.Bind("treasury", r.treasury)

	for _, w := range r.wallets {
		if w.Native == "" {
			continue
		}
		amount, err := curve.ParseUnits(w.Native, curve.NativeDecimals)
		if err != nil {
			return fmt.Errorf("wallet %s: %w", w.Name, err)
		}
		if err := r.env.Ledger.Credit(w.PublicKey, amount); err != nil {
			return fmt.Errorf("wallet %s: %w", w.Name, err)
		}
	}

	r.sources = make(map[string]solana.PublicKey, len(scenario.Sources))
	for _, s := range scenario.Sources {
		owner, err := r.wallets.Lookup(s.Owner)
		if err != nil {
			return fmt.Errorf("source %s: %w", s.Name, err)
		}
		supply, err := uint256.FromDecimal(s.Supply)
		if err != nil {
			return fmt.Errorf("source %s: invalid supply %q: %w", s.Name, s.Supply, err)
		}
		key := r.sourceKey()
		if err := r.env.Ledger.Mint(ctx, key, owner.PublicKey, supply); err != nil {
			return fmt.Errorf("source %s: %w", s.Name, err)
		}
		r.sources[s.Name] = key
		r.logger.Info("Source minted",
			zap.String("source", s.Name),
			zap.String("mint", key.String()),
			zap.String("owner", owner.Name),
			zap.String("supply", supply.Dec()))
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, t *Task) (string, error) {
	if t.Operation == OperationAdvance {
		r.env.Clock.Add(t.Duration)
		return fmt.Sprintf("clock at %s", r.env.Clock.Now().UTC().Format(time.RFC3339)), nil
	}

	actor, err := r.wallets.Lookup(t.WalletName)
	if err != nil {
		return "", err
	}
	engine := r.env.Engine

	switch t.Operation {
	case OperationLaunch, OperationLaunchPrefunded:
		params, err := r.launchParams(t, actor.PublicKey)
		if err != nil {
			return "", err
		}
		launch := engine.Launch
		if t.Operation == OperationLaunchPrefunded {
			launch = engine.LaunchPrefunded
		}
		token, err := launch(ctx, params)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s launched as %s", token.Symbol, token.Wrapper), nil

	case OperationDeposit, OperationWithdrawDeposit:
		source := r.sources[t.Source]
		amount, err := uint256.FromDecimal(t.Amount)
		if err != nil {
			return "", fmt.Errorf("invalid amount %q: %w", t.Amount, err)
		}
		if t.Operation == OperationDeposit {
			err = engine.DepositRT(ctx, source, amount, actor.PublicKey)
		} else {
			err = engine.WithdrawDeposit(ctx, source, amount, actor.PublicKey)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("escrow %s", engine.GetDepositBalance(ctx, actor.PublicKey, source).Dec()), nil

	case OperationBuy, OperationSell:
		return r.trade(ctx, t, actor.PublicKey)

	case OperationAccrue:
		amount, err := curve.ParseUnits(t.Amount, curve.NativeDecimals)
		if err != nil {
			return "", err
		}
		if err := r.env.Vault.Accrue(ctx, r.sources[t.Source], actor.PublicKey, amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("accrued %s", curve.FormatUnits(amount, curve.NativeDecimals)), nil

	case OperationHarvest:
		wrapper, err := r.wrapperOf(ctx, t.Source)
		if err != nil {
			return "", err
		}
		receipt, err := engine.Harvest(ctx, wrapper, actor.PublicKey)
		if err != nil {
			return "", err
		}
		detail := fmt.Sprintf("claimed %s, reserve %s",
			curve.FormatUnits(receipt.Claimed, curve.NativeDecimals),
			curve.FormatUnits(receipt.ReserveBalance, curve.NativeDecimals))
		return withGraduation(detail, receipt.Graduation), nil

	case OperationGraduate:
		wrapper, err := r.wrapperOf(ctx, t.Source)
		if err != nil {
			return "", err
		}
		result, err := engine.Graduate(ctx, wrapper, actor.PublicKey)
		if err != nil {
			return "", err
		}
		return withGraduation("graduate", result), nil

	case OperationSwap:
		return r.swap(ctx, t, actor.PublicKey)

	case OperationEmergencyWithdraw:
		return r.emergencyWithdraw(ctx, t, actor.PublicKey)
	}

	return "", fmt.Errorf("unsupported operation: %q", t.Operation)
}

func (r *Runner) launchParams(t *Task, actor solana.PublicKey) (launchpad.LaunchParams, error) {
	amount, err := uint256.FromDecimal(t.Amount)
	if err != nil {
		return launchpad.LaunchParams{}, fmt.Errorf("invalid amount %q: %w", t.Amount, err)
	}
	base, err := curve.ParseUnits(t.BasePrice, curve.NativeDecimals)
	if err != nil {
		return launchpad.LaunchParams{}, err
	}
	inc := new(uint256.Int)
	if t.PriceIncrement != "" {
		if inc, err = curve.ParseUnits(t.PriceIncrement, curve.NativeDecimals); err != nil {
			return launchpad.LaunchParams{}, err
		}
	}
	return launchpad.LaunchParams{
		Source:         r.sources[t.Source],
		Amount:         amount,
		Name:           t.Name,
		Symbol:         t.Symbol,
		BasePrice:      base,
		PriceIncrement: inc,
		Actor:          actor,
	}, nil
}

func (r *Runner) trade(ctx context.Context, t *Task, actor solana.PublicKey) (string, error) {
	wrapper, err := r.wrapperOf(ctx, t.Source)
	if err != nil {
		return "", err
	}
	amount, err := curve.ParseUnits(t.Amount, curve.WrapperDecimals)
	if err != nil {
		return "", err
	}
	var deadline time.Time
	if t.Deadline > 0 {
		deadline = r.env.Clock.Now().Add(t.Deadline)
	}

	var receipt *launchpad.TradeReceipt
	if t.Operation == OperationBuy {
		maxCost := new(uint256.Int).SetAllOne()
		if t.Limit != "" {
			if maxCost, err = curve.ParseUnits(t.Limit, curve.NativeDecimals); err != nil {
				return "", err
			}
		}
		receipt, err = r.env.Engine.Buy(ctx, launchpad.BuyParams{
			Wrapper:   wrapper,
			AmountOut: amount,
			MaxCost:   maxCost,
			Deadline:  deadline,
			Actor:     actor,
		})
	} else {
		minProceeds := new(uint256.Int)
		if t.Limit != "" {
			if minProceeds, err = curve.ParseUnits(t.Limit, curve.NativeDecimals); err != nil {
				return "", err
			}
		}
		receipt, err = r.env.Engine.Sell(ctx, launchpad.SellParams{
			Wrapper:     wrapper,
			AmountIn:    amount,
			MinProceeds: minProceeds,
			Deadline:    deadline,
			Actor:       actor,
		})
	}
	if err != nil {
		return "", err
	}

	detail := fmt.Sprintf("%s %s for %s (fee %s), price %s",
		t.Operation,
		curve.FormatUnits(receipt.WrapperAmount, curve.WrapperDecimals),
		curve.FormatUnits(receipt.Total, curve.NativeDecimals),
		curve.FormatUnits(receipt.Fee, curve.NativeDecimals),
		curve.FormatUnits(receipt.PriceAfter, curve.NativeDecimals))
	return withGraduation(detail, receipt.Graduation), nil
}

func (r *Runner) swap(ctx context.Context, t *Task, trader solana.PublicKey) (string, error) {
	wrapper, err := r.wrapperOf(ctx, t.Source)
	if err != nil {
		return "", err
	}
	inDecimals, outDecimals := int32(curve.WrapperDecimals), int32(curve.NativeDecimals)
	if t.NativeIn {
		inDecimals, outDecimals = outDecimals, inDecimals
	}
	amount, err := curve.ParseUnits(t.Amount, inDecimals)
	if err != nil {
		return "", err
	}
	var minOut *uint256.Int
	if t.Limit != "" {
		if minOut, err = curve.ParseUnits(t.Limit, outDecimals); err != nil {
			return "", err
		}
	}

	out, err := r.env.Pools.Swap(ctx, amm.SwapParams{
		Token:        wrapper,
		Trader:       trader,
		NativeIn:     t.NativeIn,
		AmountIn:     amount,
		MinAmountOut: minOut,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("swapped %s for %s", t.Amount, curve.FormatUnits(out, outDecimals)), nil
}

func (r *Runner) emergencyWithdraw(ctx context.Context, t *Task, actor solana.PublicKey) (string, error) {
	destination, err := r.wallets.Lookup(t.Destination)
	if err != nil {
		return "", err
	}

	var (
		asset  solana.PublicKey
		amount *uint256.Int
	)
	if t.Asset == "native" {
		asset = ledger.Native
		amount, err = curve.ParseUnits(t.Amount, curve.NativeDecimals)
	} else {
		source, ok := r.sources[t.Asset]
		if !ok {
			return "", fmt.Errorf("unknown asset %q", t.Asset)
		}
		asset = source
		amount, err = uint256.FromDecimal(t.Amount)
	}
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", t.Amount, err)
	}

	if err := r.env.Engine.EmergencyWithdraw(ctx, asset, destination.PublicKey, amount, actor); err != nil {
		return "", err
	}
	return fmt.Sprintf("withdrew %s %s to %s", t.Amount, t.Asset, destination.Name), nil
}

func (r *Runner) wrapperOf(ctx context.Context, sourceName string) (solana.PublicKey, error) {
	wrapper, ok := r.env.Engine.WrapperOf(ctx, r.sources[sourceName])
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("%w: source %s is not launched", launchpad.ErrUnknownToken, sourceName)
	}
	return wrapper, nil
}

func withGraduation(detail string, g *launchpad.GraduationResult) string {
	if g == nil {
		return detail
	}
	return fmt.Sprintf("%s; graduated into %s with %s native, %s LP burned",
		detail, g.Pool, curve.FormatUnits(g.NativeAmount, curve.NativeDecimals), g.LPBurned.Dec())
}

func (r *Runner) summarize(ctx context.Context) ([]TokenSummary, error) {
	engine := r.env.Engine
	free, err := engine.FreeNativeBalance(ctx)
	if err != nil {
		return nil, err
	}

	var out []TokenSummary
	for _, wrapper := range engine.GetAllLaunchedTokens(ctx) {
		token, err := engine.GetTokenInfo(ctx, wrapper)
		if err != nil {
			return nil, err
		}
		bc, err := engine.GetBondingCurve(ctx, wrapper)
		if err != nil {
			return nil, err
		}
		price, err := engine.GetCurrentPrice(ctx, wrapper)
		if err != nil {
			return nil, err
		}
		mcap, err := engine.GetMarketCap(ctx, wrapper)
		if err != nil {
			return nil, err
		}

		s := TokenSummary{
			Symbol:     token.Symbol,
			Wrapper:    wrapper.String(),
			Price:      curve.FormatUnits(price, curve.NativeDecimals),
			MarketCap:  curve.FormatUnits(mcap, curve.NativeDecimals),
			Reserve:    curve.FormatUnits(bc.ReserveBalance, curve.NativeDecimals),
			CurveLeft:  curve.FormatUnits(bc.CurrentSupply, curve.WrapperDecimals),
			Harvested:  curve.FormatUnits(token.TotalRoyaltiesHarvested, curve.NativeDecimals),
			Graduated:  token.Graduated,
			FreeNative: curve.FormatUnits(free, curve.NativeDecimals),
		}
		if token.Graduated {
			s.Pool = token.Pool.String()
		}
		out = append(out, s)
	}
	return out, nil
}
