// internal/storage/models/launch.go
package models

import "time"

// Amounts are decimal strings of minor units. uint256 values overflow bigint
// and sqlite coerces wide numerics to REAL.

type Launch struct {
	Record
	Wrapper        string     `gorm:"unique;not null;type:varchar(44)"`
	Source         string     `gorm:"unique;not null;type:varchar(44)"`
	Creator        string     `gorm:"index;not null;type:varchar(44)"`
	Name           string     `gorm:"not null;type:varchar(100)"`
	Symbol         string     `gorm:"not null;type:varchar(20)"`
	TotalLocked    string     `gorm:"not null;type:varchar(78)"`
	WrapperSupply  string     `gorm:"not null;type:varchar(78)"`
	CurveSupply    string     `gorm:"not null;type:varchar(78)"`
	BasePrice      string     `gorm:"not null;type:varchar(78)"`
	PriceIncrement string     `gorm:"not null;type:varchar(78)"`
	Prefunded      bool       `gorm:"not null;default:false"`
	LaunchedAt     time.Time  `gorm:"index;not null"`
	GraduatedAt    *time.Time `gorm:"index"`
	Pool           string     `gorm:"type:varchar(44)"`
}

type Escrow struct {
	Record
	Depositor string    `gorm:"index;not null;type:varchar(44)"`
	Source    string    `gorm:"index;not null;type:varchar(44)"`
	Direction string    `gorm:"not null;type:varchar(10)"` // deposit | withdraw
	Amount    string    `gorm:"not null;type:varchar(78)"`
	Balance   string    `gorm:"not null;type:varchar(78)"`
	At        time.Time `gorm:"index;not null"`
}
