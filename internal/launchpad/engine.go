// =============================
// File: internal/launchpad/engine.go
// =============================
package launchpad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/amm"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/royalty"
)

var (
	vaultSeed   = []byte("launchpad-vault")
	wrapperSeed = []byte("wrapper")
)

var zeroKey solana.PublicKey

// Publisher receives events after an operation commits.
type Publisher interface {
	Publish(event events.Event) error
}

// OperationRecorder observes the outcome and latency of every state-changing operation.
type OperationRecorder interface {
	ObserveOperation(operation string, duration time.Duration, err error)
}

// Config holds the engine parameters fixed at construction.
type Config struct {
	ProgramID           solana.PublicKey
	Treasury            solana.PublicKey
	Operator            solana.PublicKey
	GraduationThreshold *uint256.Int // native minor units
	WrapPerRT           uint64       // wrapper minor units per source unit
}

// Options carries the capabilities the engine consumes.
type Options struct {
	Custody   ledger.Custody
	Claimer   royalty.Claimer
	Liquidity amm.LiquidityProvider
	Clock     clock.Clock
	Publisher Publisher
	Recorder  OperationRecorder
}

// Engine is the bonding-curve launch engine. One mutex serializes every
// state-changing operation and is held until all external calls return.
//
// Re-entry is detected through the context handed to collaborators: a
// state-changing call on it fails with ErrReentrantCall and reads on it skip
// the lock. Go offers no goroutine identity, so a collaborator that drops the
// context and calls back on a fresh one deadlocks; Claimer and
// LiquidityProvider implementations must pass ctx through.
type Engine struct {
	mu sync.RWMutex

	cfg     Config
	address solana.PublicKey

	custody   ledger.Custody
	claimer   royalty.Claimer
	liquidity amm.LiquidityProvider
	clock     clock.Clock
	publisher Publisher
	recorder  OperationRecorder
	logger    *zap.Logger

	tokens   map[solana.PublicKey]*LaunchedToken
	curves   map[solana.PublicKey]*BondingCurve
	bySource map[solana.PublicKey]solana.PublicKey
	order    []solana.PublicKey

	deposits map[solana.PublicKey]map[solana.PublicKey]*uint256.Int
	escrowed map[solana.PublicKey]*uint256.Int // outstanding deposits per source
}

// NewEngine creates an engine with an empty registry.
func NewEngine(cfg Config, opts Options, logger *zap.Logger) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if opts.Custody == nil || opts.Claimer == nil || opts.Liquidity == nil {
		return nil, errors.New("custody, claimer and liquidity capabilities are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	address, _, err := solana.FindProgramAddress([][]byte{vaultSeed}, cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive engine vault: %w", err)
	}

	logger = logger.Named("launchpad")
	logger.Info("Launch engine created",
		zap.String("vault", address.String()),
		zap.String("treasury", cfg.Treasury.String()),
		zap.String("operator", cfg.Operator.String()),
		zap.String("graduation_threshold", cfg.GraduationThreshold.Dec()),
		zap.Uint64("wrap_per_rt", cfg.WrapPerRT))

	return &Engine{
		cfg:       cfg,
		address:   address,
		custody:   opts.Custody,
		claimer:   opts.Claimer,
		liquidity: opts.Liquidity,
		clock:     opts.Clock,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		logger:    logger,
		tokens:    make(map[solana.PublicKey]*LaunchedToken),
		curves:    make(map[solana.PublicKey]*BondingCurve),
		bySource:  make(map[solana.PublicKey]solana.PublicKey),
		deposits:  make(map[solana.PublicKey]map[solana.PublicKey]*uint256.Int),
		escrowed:  make(map[solana.PublicKey]*uint256.Int),
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Treasury == zeroKey {
		return errors.New("treasury address is required")
	}
	if cfg.Operator == zeroKey {
		return errors.New("operator address is required")
	}
	if cfg.GraduationThreshold == nil {
		return errors.New("graduation threshold is required")
	}
	if cfg.WrapPerRT == 0 {
		return errors.New("wrap_per_rt must be greater than zero")
	}
	return nil
}

// Address is the engine account that holds escrow, locked source units,
// curve wrapper units and native reserves.
func (e *Engine) Address() solana.PublicKey {
	return e.address
}

// WrapperFor derives the wrapper identity of a source asset.
func (e *Engine) WrapperFor(source solana.PublicKey) (solana.PublicKey, error) {
	w, _, err := solana.FindProgramAddress([][]byte{wrapperSeed, source.Bytes()}, e.cfg.ProgramID)
	if err != nil {
		return zeroKey, fmt.Errorf("failed to derive wrapper for %s: %w", source, err)
	}
	return w, nil
}

// callKey marks a context as running inside an engine operation.
type callKey struct{}

func (e *Engine) inCall(ctx context.Context) bool {
	owner, _ := ctx.Value(callKey{}).(*Engine)
	return owner == e
}

// txn is the rollback boundary of one operation: an undo log over engine state
// plus a custody snapshot. Events are held until commit.
type txn struct {
	ctx    context.Context
	op     string
	log    *zap.Logger
	snap   int
	start  time.Time
	undo   []func()
	saved  map[solana.PublicKey]bool
	events []events.Event
}

func (e *Engine) begin(ctx context.Context, op string) (*txn, error) {
	if e.inCall(ctx) {
		return nil, fmt.Errorf("%w: %s inside another engine operation", ErrReentrantCall, op)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	return &txn{
		ctx:   context.WithValue(ctx, callKey{}, e),
		op:    op,
		log:   logger.WithOperation(e.logger, op),
		snap:  e.custody.Snapshot(),
		start: time.Now(),
		saved: make(map[solana.PublicKey]bool),
	}, nil
}

// finish commits or reverts tx, releases the lock and publishes committed events.
func (e *Engine) finish(tx *txn, err error) {
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		if rerr := e.custody.RevertToSnapshot(tx.snap); rerr != nil {
			tx.log.Error("Failed to revert custody", zap.Error(rerr))
		}
		tx.log.Warn("Operation reverted", zap.Error(err))
	} else {
		if derr := e.custody.DiscardSnapshot(tx.snap); derr != nil {
			tx.log.Error("Failed to release custody snapshot", zap.Error(derr))
		}
		tx.log.Debug("Operation committed", zap.Int("events", len(tx.events)))
	}
	e.mu.Unlock()

	if e.recorder != nil {
		e.recorder.ObserveOperation(tx.op, time.Since(tx.start), err)
	}
	if err != nil || e.publisher == nil {
		return
	}
	for _, ev := range tx.events {
		if perr := e.publisher.Publish(ev); perr != nil {
			tx.log.Warn("Failed to publish event",
				zap.String("event_type", string(ev.Type())),
				zap.Error(perr))
		}
	}
}

// read acquires the read lock unless ctx already runs inside an operation,
// in which case the caller observes that operation's state as it stands.
func (e *Engine) read(ctx context.Context) func() {
	if e.inCall(ctx) {
		return func() {}
	}
	e.mu.RLock()
	return e.mu.RUnlock
}

func (tx *txn) emit(ev events.Event) {
	tx.events = append(tx.events, ev)
}

// save records the token and curve of wrapper once per txn so they can be restored.
func (e *Engine) save(tx *txn, wrapper solana.PublicKey) {
	if tx.saved[wrapper] {
		return
	}
	tx.saved[wrapper] = true
	t, c := e.tokens[wrapper], e.curves[wrapper]
	prevT, prevC := t.clone(), c.clone()
	tx.undo = append(tx.undo, func() {
		*t = *prevT
		*c = *prevC
	})
}

func (e *Engine) insert(tx *txn, t *LaunchedToken, c *BondingCurve) {
	n := len(e.order)
	e.tokens[t.Wrapper] = t
	e.curves[t.Wrapper] = c
	e.bySource[t.Source] = t.Wrapper
	e.order = append(e.order, t.Wrapper)
	tx.saved[t.Wrapper] = true
	tx.undo = append(tx.undo, func() {
		delete(e.tokens, t.Wrapper)
		delete(e.curves, t.Wrapper)
		delete(e.bySource, t.Source)
		e.order = e.order[:n]
	})
}

func (e *Engine) setDeposit(tx *txn, actor, source solana.PublicKey, balance, total *uint256.Int) {
	prevBalance, hadBalance := e.deposits[actor][source]
	prevTotal, hadTotal := e.escrowed[source]
	tx.undo = append(tx.undo, func() {
		if hadBalance {
			e.deposits[actor][source] = prevBalance
		} else {
			delete(e.deposits[actor], source)
		}
		if hadTotal {
			e.escrowed[source] = prevTotal
		} else {
			delete(e.escrowed, source)
		}
	})

	if e.deposits[actor] == nil {
		e.deposits[actor] = make(map[solana.PublicKey]*uint256.Int)
	}
	e.deposits[actor][source] = balance
	e.escrowed[source] = total
}

// lookup returns the records of wrapper.
func (e *Engine) lookup(wrapper solana.PublicKey) (*LaunchedToken, *BondingCurve, error) {
	t, ok := e.tokens[wrapper]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownToken, wrapper)
	}
	return t, e.curves[wrapper], nil
}

func (e *Engine) checkDeadline(deadline time.Time) error {
	if deadline.IsZero() {
		return nil
	}
	if now := e.clock.Now(); now.After(deadline) {
		return fmt.Errorf("%w: now %s, deadline %s", ErrDeadlineExpired,
			now.UTC().Format(time.RFC3339), deadline.UTC().Format(time.RFC3339))
	}
	return nil
}

func requirePositive(name string, v *uint256.Int) error {
	if v == nil || v.IsZero() {
		return validationf("%s must be greater than zero", name)
	}
	return nil
}

func requireActor(actor solana.PublicKey) error {
	if actor == zeroKey {
		return validationf("actor address is required")
	}
	return nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
