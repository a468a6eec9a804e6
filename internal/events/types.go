// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// EventType represents the type of event.
type EventType string

const (
	// Launch events
	TokenLaunched    EventType = "token.launched"
	Deposited        EventType = "escrow.deposited"
	DepositWithdrawn EventType = "escrow.withdrawn"

	// Trade events
	TokensBought    EventType = "trade.bought"
	TokensSold      EventType = "trade.sold"
	FeesDistributed EventType = "trade.fees_distributed"

	// Curve lifecycle events
	RevenueHarvested EventType = "curve.harvested"
	Graduated        EventType = "curve.graduated"

	// Guard events
	EmergencyWithdrawal EventType = "guard.emergency_withdrawal"
)

// AllTypes lists every event type the engine emits.
var AllTypes = []EventType{
	TokenLaunched, Deposited, DepositWithdrawn,
	TokensBought, TokensSold, FeesDistributed,
	RevenueHarvested, Graduated, EmergencyWithdrawal,
}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// NewBase stamps an event of type t at time at.
func NewBase(t EventType, at time.Time) BaseEvent {
	return BaseEvent{EventType: t, EventTime: at}
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// TokenLaunchedEvent is emitted when a wrapper asset is minted against a locked source.
type TokenLaunchedEvent struct {
	BaseEvent
	Source         solana.PublicKey
	Wrapper        solana.PublicKey
	Creator        solana.PublicKey
	Name           string
	Symbol         string
	TotalLocked    *uint256.Int
	WrapperSupply  *uint256.Int
	CurveSupply    *uint256.Int
	BasePrice      *uint256.Int
	PriceIncrement *uint256.Int
	Prefunded      bool
}

// DepositEvent is emitted when source units enter or leave prefund escrow.
type DepositEvent struct {
	BaseEvent
	Depositor solana.PublicKey
	Source    solana.PublicKey
	Amount    *uint256.Int
	Balance   *uint256.Int // depositor's escrow after the change
}

// TradeEvent is emitted for every buy and sell against a curve.
type TradeEvent struct {
	BaseEvent
	Wrapper       solana.PublicKey
	Trader        solana.PublicKey
	WrapperAmount *uint256.Int
	BaseAmount    *uint256.Int // cost or proceeds before the fee
	Fee           *uint256.Int
	PriceAfter    *uint256.Int
	ReserveAfter  *uint256.Int
}

// FeesDistributedEvent is emitted when a trade fee has been paid out.
type FeesDistributedEvent struct {
	BaseEvent
	Wrapper        solana.PublicKey
	Treasury       solana.PublicKey
	Creator        solana.PublicKey
	TreasuryAmount *uint256.Int
	CreatorAmount  *uint256.Int
}

// RevenueHarvestedEvent is emitted when claimed revenue is pumped into a reserve.
type RevenueHarvestedEvent struct {
	BaseEvent
	Wrapper      solana.PublicKey
	Ancestor     solana.PublicKey
	Amount       *uint256.Int
	ReserveAfter *uint256.Int
}

// GraduatedEvent is emitted when a curve migrates into a constant-product pool.
type GraduatedEvent struct {
	BaseEvent
	Wrapper       solana.PublicKey
	Pool          solana.PublicKey
	LPMint        solana.PublicKey
	LPBurned      *uint256.Int
	WrapperAmount *uint256.Int
	NativeAmount  *uint256.Int
	MarketCap     *uint256.Int
}

// EmergencyWithdrawalEvent is emitted when the operator sweeps a free balance.
type EmergencyWithdrawalEvent struct {
	BaseEvent
	Asset       solana.PublicKey
	Destination solana.PublicKey
	Amount      *uint256.Int
}
