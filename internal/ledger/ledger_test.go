package ledger

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemoryTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(zaptest.NewLogger(t))
	asset := solana.NewWallet().PublicKey()
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	require.NoError(t, l.Mint(ctx, asset, alice, uint256.NewInt(100)))
	require.NoError(t, l.Transfer(ctx, asset, alice, bob, uint256.NewInt(40)))

	assert.Equal(t, uint64(60), l.BalanceOf(asset, alice).Uint64())
	assert.Equal(t, uint64(40), l.BalanceOf(asset, bob).Uint64())
	assert.Equal(t, uint64(100), l.TotalSupply(asset).Uint64())

	err := l.Transfer(ctx, asset, bob, alice, uint256.NewInt(41))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(40), l.BalanceOf(asset, bob).Uint64())

	err = l.Transfer(ctx, asset, bob, bob, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidTransfer)
}

func TestMemorySnapshotRevert(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(zaptest.NewLogger(t))
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	require.NoError(t, l.Credit(alice, uint256.NewInt(1_000)))
	snap := l.Snapshot()

	require.NoError(t, l.Transfer(ctx, Native, alice, bob, uint256.NewInt(300)))
	require.NoError(t, l.Mint(ctx, Native, bob, uint256.NewInt(5)))
	inner := l.Snapshot()
	require.NoError(t, l.Transfer(ctx, Native, bob, alice, uint256.NewInt(1)))

	require.NoError(t, l.RevertToSnapshot(inner))
	assert.Equal(t, uint64(305), l.BalanceOf(Native, bob).Uint64())

	require.NoError(t, l.RevertToSnapshot(snap))
	assert.Equal(t, uint64(1_000), l.BalanceOf(Native, alice).Uint64())
	assert.True(t, l.BalanceOf(Native, bob).IsZero())
	assert.Equal(t, uint64(1_000), l.TotalSupply(Native).Uint64())

	assert.ErrorIs(t, l.RevertToSnapshot(snap+10), ErrUnknownSnapshot)
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	l := NewMemory(zaptest.NewLogger(t))
	alice := solana.NewWallet().PublicKey()
	require.NoError(t, l.Credit(alice, uint256.NewInt(7)))

	b := l.BalanceOf(Native, alice)
	b.SetUint64(0)
	assert.Equal(t, uint64(7), l.BalanceOf(Native, alice).Uint64())
}

func TestJournalOnlyWhileSnapshotOpen(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(zaptest.NewLogger(t))
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	require.NoError(t, l.Credit(alice, uint256.NewInt(1_000)))
	require.NoError(t, l.Transfer(ctx, Native, alice, bob, uint256.NewInt(10)))
	assert.Zero(t, l.JournalLen())

	snap := l.Snapshot()
	require.NoError(t, l.Transfer(ctx, Native, alice, bob, uint256.NewInt(10)))
	assert.Equal(t, 2, l.JournalLen())

	require.NoError(t, l.DiscardSnapshot(snap))
	assert.Zero(t, l.JournalLen())
	assert.Equal(t, uint64(20), l.BalanceOf(Native, bob).Uint64())

	assert.ErrorIs(t, l.DiscardSnapshot(snap), ErrUnknownSnapshot)
	assert.ErrorIs(t, l.RevertToSnapshot(snap), ErrUnknownSnapshot)
}

func TestDiscardInnerSnapshotKeepsOuterRevertible(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(zaptest.NewLogger(t))
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	require.NoError(t, l.Credit(alice, uint256.NewInt(1_000)))

	outer := l.Snapshot()
	require.NoError(t, l.Transfer(ctx, Native, alice, bob, uint256.NewInt(100)))
	inner := l.Snapshot()
	require.NoError(t, l.Transfer(ctx, Native, alice, bob, uint256.NewInt(50)))

	require.NoError(t, l.DiscardSnapshot(inner))
	assert.Equal(t, 4, l.JournalLen())
	assert.Equal(t, uint64(150), l.BalanceOf(Native, bob).Uint64())

	require.NoError(t, l.RevertToSnapshot(outer))
	assert.Zero(t, l.JournalLen())
	assert.Equal(t, uint64(1_000), l.BalanceOf(Native, alice).Uint64())
	assert.True(t, l.BalanceOf(Native, bob).IsZero())
}

func TestDiscardOuterSnapshotTrimsJournal(t *testing.T) {
	ctx := context.Background()
	l := NewMemory(zaptest.NewLogger(t))
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	require.NoError(t, l.Credit(alice, uint256.NewInt(1_000)))

	outer := l.Snapshot()
	require.NoError(t, l.Transfer(ctx, Native, alice, bob, uint256.NewInt(100)))
	inner := l.Snapshot()
	require.NoError(t, l.Transfer(ctx, Native, alice, bob, uint256.NewInt(50)))

	// only entries after inner are still reachable
	require.NoError(t, l.DiscardSnapshot(outer))
	assert.Equal(t, 2, l.JournalLen())

	require.NoError(t, l.RevertToSnapshot(inner))
	assert.Zero(t, l.JournalLen())
	assert.Equal(t, uint64(100), l.BalanceOf(Native, bob).Uint64())
	assert.Equal(t, uint64(900), l.BalanceOf(Native, alice).Uint64())
}

func TestCreditReportsOverflow(t *testing.T) {
	l := NewMemory(zaptest.NewLogger(t))
	alice := solana.NewWallet().PublicKey()
	top := new(uint256.Int).SetAllOne()

	require.NoError(t, l.Credit(alice, top))
	err := l.Credit(alice, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidTransfer)
	assert.True(t, l.BalanceOf(Native, alice).Eq(top))
}
