// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
)

const (
	migrationLockID = 101
	connectTimeout  = 30 * time.Second
)

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

// LogMode реализация интерфейса logger.Interface
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace логирует SQL; ошибки всегда, остальное только на уровне Info
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", time.Since(begin)),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Debug("trace", fields...)
	}
}

// postgresStorage реализует интерфейс Storage
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStorage connects to dsn, retrying with exponential backoff until the
// database answers or ctx is done.
func NewStorage(ctx context.Context, dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	notify := func(err error, d time.Duration) {
		zapLogger.Warn("Database not ready, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	connect := func() (storage.Storage, error) {
		s, err := NewWithDialector(postgres.Open(dsn), zapLogger)
		if err != nil {
			return nil, err
		}
		ps := s.(*postgresStorage)
		sqlDB, err := ps.db.DB()
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to get database instance: %w", err))
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return s, nil
	}

	return backoff.Retry(ctx, connect,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectTimeout),
		backoff.WithNotify(notify))
}

// NewWithDialector opens a storage over any gorm dialector.
func NewWithDialector(dialector gorm.Dialector, zapLogger *zap.Logger) (storage.Storage, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger.Named("storage"),
	}, nil
}

// RunMigrations использует GORM AutoMigrate; на postgres под advisory lock
func (p *postgresStorage) RunMigrations() error {
	if p.db.Dialector.Name() == "postgres" {
		var lockObtained bool
		if err := p.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer p.db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)
	}

	err := p.db.AutoMigrate(
		&models.Launch{},
		&models.Escrow{},
		&models.Trade{},
		&models.FeeDistribution{},
		&models.Harvest{},
		&models.Graduation{},
		&models.EmergencyWithdrawal{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	p.logger.Info("Migrations applied", zap.String("dialect", p.db.Dialector.Name()))
	return nil
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *postgresStorage) SaveLaunch(ctx context.Context, launch *models.Launch) error {
	return p.db.WithContext(ctx).Create(launch).Error
}

func (p *postgresStorage) GetLaunch(ctx context.Context, wrapper string) (*models.Launch, error) {
	var launch models.Launch
	if err := p.db.WithContext(ctx).Where("wrapper = ?", wrapper).First(&launch).Error; err != nil {
		return nil, notFound(err)
	}
	return &launch, nil
}

func (p *postgresStorage) ListLaunches(ctx context.Context, limit, offset int) ([]*models.Launch, error) {
	var launches []*models.Launch
	err := p.db.WithContext(ctx).
		Order("launched_at asc, id asc").
		Limit(limit).
		Offset(offset).
		Find(&launches).Error
	return launches, err
}

func (p *postgresStorage) SaveEscrow(ctx context.Context, escrow *models.Escrow) error {
	return p.db.WithContext(ctx).Create(escrow).Error
}

func (p *postgresStorage) SaveTrade(ctx context.Context, trade *models.Trade) error {
	return p.db.WithContext(ctx).Create(trade).Error
}

func (p *postgresStorage) ListTrades(ctx context.Context, wrapper string, limit, offset int) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := p.db.WithContext(ctx).
		Where("wrapper = ?", wrapper).
		Order("id asc").
		Limit(limit).
		Offset(offset).
		Find(&trades).Error
	return trades, err
}

func (p *postgresStorage) SaveFeeDistribution(ctx context.Context, fees *models.FeeDistribution) error {
	return p.db.WithContext(ctx).Create(fees).Error
}

func (p *postgresStorage) SaveHarvest(ctx context.Context, harvest *models.Harvest) error {
	return p.db.WithContext(ctx).Create(harvest).Error
}

// SaveGraduation records the migration and marks the launch graduated in one transaction.
func (p *postgresStorage) SaveGraduation(ctx context.Context, graduation *models.Graduation) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(graduation).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Launch{}).
			Where("wrapper = ?", graduation.Wrapper).
			Updates(map[string]interface{}{
				"graduated_at": graduation.GraduatedAt,
				"pool":         graduation.Pool,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: launch %s", storage.ErrNotFound, graduation.Wrapper)
		}
		return nil
	})
}

func (p *postgresStorage) GetGraduation(ctx context.Context, wrapper string) (*models.Graduation, error) {
	var graduation models.Graduation
	if err := p.db.WithContext(ctx).Where("wrapper = ?", wrapper).First(&graduation).Error; err != nil {
		return nil, notFound(err)
	}
	return &graduation, nil
}

func (p *postgresStorage) SaveEmergencyWithdrawal(ctx context.Context, withdrawal *models.EmergencyWithdrawal) error {
	return p.db.WithContext(ctx).Create(withdrawal).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}
