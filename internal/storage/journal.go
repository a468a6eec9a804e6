// internal/storage/journal.go
package storage

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

// Journal persists committed engine events. Subscribe it to every event type
// with events.Bus.SubscribeAll.
type Journal struct {
	store  Storage
	logger *zap.Logger
}

func NewJournal(store Storage, logger *zap.Logger) *Journal {
	return &Journal{store: store, logger: logger.Named("journal")}
}

// Handle implements events.Handler.
func (j *Journal) Handle(ctx context.Context, event events.Event) error {
	var err error
	switch ev := event.(type) {
	case *events.TokenLaunchedEvent:
		err = j.store.SaveLaunch(ctx, &models.Launch{
			Wrapper:        ev.Wrapper.String(),
			Source:         ev.Source.String(),
			Creator:        ev.Creator.String(),
			Name:           ev.Name,
			Symbol:         ev.Symbol,
			TotalLocked:    dec(ev.TotalLocked),
			WrapperSupply:  dec(ev.WrapperSupply),
			CurveSupply:    dec(ev.CurveSupply),
			BasePrice:      dec(ev.BasePrice),
			PriceIncrement: dec(ev.PriceIncrement),
			Prefunded:      ev.Prefunded,
			LaunchedAt:     ev.Timestamp(),
		})
	case *events.DepositEvent:
		direction := "deposit"
		if ev.Type() == events.DepositWithdrawn {
			direction = "withdraw"
		}
		err = j.store.SaveEscrow(ctx, &models.Escrow{
			Depositor: ev.Depositor.String(),
			Source:    ev.Source.String(),
			Direction: direction,
			Amount:    dec(ev.Amount),
			Balance:   dec(ev.Balance),
			At:        ev.Timestamp(),
		})
	case *events.TradeEvent:
		side := models.SideBuy
		if ev.Type() == events.TokensSold {
			side = models.SideSell
		}
		err = j.store.SaveTrade(ctx, &models.Trade{
			Wrapper:       ev.Wrapper.String(),
			Trader:        ev.Trader.String(),
			Side:          side,
			WrapperAmount: dec(ev.WrapperAmount),
			BaseAmount:    dec(ev.BaseAmount),
			Fee:           dec(ev.Fee),
			PriceAfter:    dec(ev.PriceAfter),
			ReserveAfter:  dec(ev.ReserveAfter),
			ExecutedAt:    ev.Timestamp(),
		})
	case *events.FeesDistributedEvent:
		err = j.store.SaveFeeDistribution(ctx, &models.FeeDistribution{
			Wrapper:        ev.Wrapper.String(),
			Treasury:       ev.Treasury.String(),
			Creator:        ev.Creator.String(),
			TreasuryAmount: dec(ev.TreasuryAmount),
			CreatorAmount:  dec(ev.CreatorAmount),
			PaidAt:         ev.Timestamp(),
		})
	case *events.RevenueHarvestedEvent:
		err = j.store.SaveHarvest(ctx, &models.Harvest{
			Wrapper:      ev.Wrapper.String(),
			Ancestor:     ev.Ancestor.String(),
			Amount:       dec(ev.Amount),
			ReserveAfter: dec(ev.ReserveAfter),
			HarvestedAt:  ev.Timestamp(),
		})
	case *events.GraduatedEvent:
		err = j.store.SaveGraduation(ctx, &models.Graduation{
			Wrapper:       ev.Wrapper.String(),
			Pool:          ev.Pool.String(),
			LPMint:        ev.LPMint.String(),
			LPBurned:      dec(ev.LPBurned),
			WrapperAmount: dec(ev.WrapperAmount),
			NativeAmount:  dec(ev.NativeAmount),
			MarketCap:     dec(ev.MarketCap),
			GraduatedAt:   ev.Timestamp(),
		})
	case *events.EmergencyWithdrawalEvent:
		err = j.store.SaveEmergencyWithdrawal(ctx, &models.EmergencyWithdrawal{
			Asset:       ev.Asset.String(),
			Destination: ev.Destination.String(),
			Amount:      dec(ev.Amount),
			WithdrawnAt: ev.Timestamp(),
		})
	default:
		j.logger.Debug("Event not journaled", zap.String("event_type", string(event.Type())))
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to journal %s: %w", event.Type(), err)
	}
	return nil
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
