// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

var ErrNotFound = errors.New("record not found")

// Storage определяет интерфейс журнала операций движка
type Storage interface {
	// Запуски
	SaveLaunch(ctx context.Context, launch *models.Launch) error
	GetLaunch(ctx context.Context, wrapper string) (*models.Launch, error)
	ListLaunches(ctx context.Context, limit, offset int) ([]*models.Launch, error)

	// Эскроу
	SaveEscrow(ctx context.Context, escrow *models.Escrow) error

	// Торговля
	SaveTrade(ctx context.Context, trade *models.Trade) error
	ListTrades(ctx context.Context, wrapper string, limit, offset int) ([]*models.Trade, error)
	SaveFeeDistribution(ctx context.Context, fees *models.FeeDistribution) error

	// Жизненный цикл кривой
	SaveHarvest(ctx context.Context, harvest *models.Harvest) error
	SaveGraduation(ctx context.Context, graduation *models.Graduation) error
	GetGraduation(ctx context.Context, wrapper string) (*models.Graduation, error)

	SaveEmergencyWithdrawal(ctx context.Context, withdrawal *models.EmergencyWithdrawal) error

	RunMigrations() error
	Close() error
}
