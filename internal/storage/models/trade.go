// internal/storage/models/trade.go
package models

import "time"

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

type Trade struct {
	Record
	Wrapper       string    `gorm:"index;not null;type:varchar(44)"`
	Trader        string    `gorm:"index;not null;type:varchar(44)"`
	Side          string    `gorm:"not null;type:varchar(4)"`
	WrapperAmount string    `gorm:"not null;type:varchar(78)"`
	BaseAmount    string    `gorm:"not null;type:varchar(78)"`
	Fee           string    `gorm:"not null;type:varchar(78)"`
	PriceAfter    string    `gorm:"not null;type:varchar(78)"`
	ReserveAfter  string    `gorm:"not null;type:varchar(78)"`
	ExecutedAt    time.Time `gorm:"index;not null"`
}

type FeeDistribution struct {
	Record
	Wrapper        string    `gorm:"index;not null;type:varchar(44)"`
	Treasury       string    `gorm:"not null;type:varchar(44)"`
	Creator        string    `gorm:"not null;type:varchar(44)"`
	TreasuryAmount string    `gorm:"not null;type:varchar(78)"`
	CreatorAmount  string    `gorm:"not null;type:varchar(78)"`
	PaidAt         time.Time `gorm:"index;not null"`
}
