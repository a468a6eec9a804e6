// =============================
// File: internal/ledger/ledger.go
// =============================
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

var (
	// Native identifies the chain's native value (lamports) in the ledger.
	Native = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	// BurnAddress is the incinerator: an address with no known controlling key.
	BurnAddress = solana.MustPublicKeyFromBase58("1nc1nerator11111111111111111111111111111111")
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransfer     = errors.New("invalid transfer")
	ErrUnknownSnapshot     = errors.New("unknown snapshot")
)

// Custody moves native and token units between holders with exact amounts.
// Snapshot/RevertToSnapshot give the caller an all-or-nothing boundary over
// every balance change made after the snapshot, including changes made by
// collaborators that share the same ledger. Every snapshot must end in
// exactly one RevertToSnapshot or DiscardSnapshot.
type Custody interface {
	BalanceOf(asset, holder solana.PublicKey) *uint256.Int
	TotalSupply(asset solana.PublicKey) *uint256.Int
	Transfer(ctx context.Context, asset, from, to solana.PublicKey, amount *uint256.Int) error
	Mint(ctx context.Context, asset, to solana.PublicKey, amount *uint256.Int) error
	Snapshot() int
	RevertToSnapshot(id int) error
	DiscardSnapshot(id int) error
}

type holding struct {
	asset  solana.PublicKey
	holder solana.PublicKey
}

// journalEntry records the value a slot held before it was changed.
type journalEntry struct {
	key      holding
	prev     *uint256.Int
	isSupply bool
}

// Memory is an in-process Custody backed by maps and an undo journal. The
// journal only records changes while a snapshot is open and keeps nothing
// older than the oldest open snapshot.
type Memory struct {
	mu       sync.RWMutex
	balances map[holding]*uint256.Int
	supply   map[solana.PublicKey]*uint256.Int

	journal []journalEntry
	base    int   // snapshot id of journal[0]
	open    []int // outstanding snapshot ids, ascending
	logger  *zap.Logger
}

// NewMemory creates an empty ledger.
func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{
		balances: make(map[holding]*uint256.Int),
		supply:   make(map[solana.PublicKey]*uint256.Int),
		logger:   logger.Named("ledger"),
	}
}

// BalanceOf returns a copy of holder's balance of asset.
func (m *Memory) BalanceOf(asset, holder solana.PublicKey) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(asset, holder).Clone()
}

// TotalSupply returns the minted-minus-burned supply of asset.
func (m *Memory) TotalSupply(asset solana.PublicKey) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.supply[asset]; ok {
		return s.Clone()
	}
	return new(uint256.Int)
}

// Transfer moves amount of asset from one holder to another.
func (m *Memory) Transfer(_ context.Context, asset, from, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: nil amount", ErrInvalidTransfer)
	}
	if from.Equals(to) {
		return fmt.Errorf("%w: self transfer", ErrInvalidTransfer)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fromBal := m.balanceLocked(asset, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			ErrInsufficientBalance, from, fromBal.Dec(), asset, amount.Dec())
	}
	toBal := m.balanceLocked(asset, to)
	next, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return fmt.Errorf("%w: balance overflow", ErrInvalidTransfer)
	}

	m.setBalanceLocked(asset, from, new(uint256.Int).Sub(fromBal, amount))
	m.setBalanceLocked(asset, to, next)
	return nil
}

// Mint creates amount of asset for holder.
func (m *Memory) Mint(_ context.Context, asset, to solana.PublicKey, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: nil amount", ErrInvalidTransfer)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	supply := m.supplyLocked(asset)
	nextSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return fmt.Errorf("%w: supply overflow", ErrInvalidTransfer)
	}
	next := new(uint256.Int).Add(m.balanceLocked(asset, to), amount)

	m.setSupplyLocked(asset, nextSupply)
	m.setBalanceLocked(asset, to, next)
	return nil
}

// Snapshot returns an id that RevertToSnapshot can roll back to.
func (m *Memory) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.base + len(m.journal)
	m.open = append(m.open, id)
	return id
}

// RevertToSnapshot undoes every change made after the snapshot was taken.
// Snapshots taken after it are released as well.
func (m *Memory) RevertToSnapshot(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.openIndexLocked(id)
	if err != nil {
		return err
	}

	keep := id - m.base
	for i := len(m.journal) - 1; i >= keep; i-- {
		e := m.journal[i]
		if e.isSupply {
			m.supply[e.key.asset] = e.prev
		} else {
			m.balances[e.key] = e.prev
		}
	}
	m.journal = m.journal[:keep]
	m.open = m.open[:idx]
	m.trimLocked()

	m.logger.Debug("Ledger reverted", zap.Int("snapshot", id))
	return nil
}

// DiscardSnapshot commits the changes made since the snapshot. They stay
// revertible through any older snapshot still open.
func (m *Memory) DiscardSnapshot(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.openIndexLocked(id)
	if err != nil {
		return err
	}
	m.open = append(m.open[:idx], m.open[idx+1:]...)
	m.trimLocked()
	return nil
}

// JournalLen reports how many undo entries are retained.
func (m *Memory) JournalLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.journal)
}

// Credit is a test and bootstrap helper that mints native value to holder.
func (m *Memory) Credit(holder solana.PublicKey, amount *uint256.Int) error {
	return m.Mint(context.Background(), Native, holder, amount)
}

func (m *Memory) openIndexLocked(id int) (int, error) {
	// ищем с конца: вложенные снимки закрываются первыми
	for i := len(m.open) - 1; i >= 0; i-- {
		if m.open[i] == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d (open %v)", ErrUnknownSnapshot, id, m.open)
}

// trimLocked drops journal entries no open snapshot can revert to.
func (m *Memory) trimLocked() {
	if len(m.open) == 0 {
		m.base += len(m.journal)
		m.journal = nil
		return
	}
	if drop := m.open[0] - m.base; drop > 0 {
		m.journal = append([]journalEntry(nil), m.journal[drop:]...)
		m.base = m.open[0]
	}
}

func (m *Memory) balanceLocked(asset, holder solana.PublicKey) *uint256.Int {
	if b, ok := m.balances[holding{asset: asset, holder: holder}]; ok {
		return b
	}
	return new(uint256.Int)
}

func (m *Memory) supplyLocked(asset solana.PublicKey) *uint256.Int {
	if s, ok := m.supply[asset]; ok {
		return s
	}
	return new(uint256.Int)
}

func (m *Memory) setBalanceLocked(asset, holder solana.PublicKey, v *uint256.Int) {
	key := holding{asset: asset, holder: holder}
	if len(m.open) > 0 {
		m.journal = append(m.journal, journalEntry{key: key, prev: m.balanceLocked(asset, holder)})
	}
	m.balances[key] = v
}

func (m *Memory) setSupplyLocked(asset solana.PublicKey, v *uint256.Int) {
	if len(m.open) > 0 {
		m.journal = append(m.journal, journalEntry{key: holding{asset: asset}, prev: m.supplyLocked(asset), isSupply: true})
	}
	m.supply[asset] = v
}
