// internal/storage/models/curve.go
package models

import "time"

type Harvest struct {
	Record
	Wrapper      string    `gorm:"index;not null;type:varchar(44)"`
	Ancestor     string    `gorm:"not null;type:varchar(44)"`
	Amount       string    `gorm:"not null;type:varchar(78)"`
	ReserveAfter string    `gorm:"not null;type:varchar(78)"`
	HarvestedAt  time.Time `gorm:"index;not null"`
}

type Graduation struct {
	Record
	Wrapper       string    `gorm:"unique;not null;type:varchar(44)"`
	Pool          string    `gorm:"not null;type:varchar(44)"`
	LPMint        string    `gorm:"not null;type:varchar(44)"`
	LPBurned      string    `gorm:"not null;type:varchar(78)"`
	WrapperAmount string    `gorm:"not null;type:varchar(78)"`
	NativeAmount  string    `gorm:"not null;type:varchar(78)"`
	MarketCap     string    `gorm:"not null;type:varchar(78)"`
	GraduatedAt   time.Time `gorm:"index;not null"`
}

type EmergencyWithdrawal struct {
	Record
	Asset       string    `gorm:"index;not null;type:varchar(44)"`
	Destination string    `gorm:"not null;type:varchar(44)"`
	Amount      string    `gorm:"not null;type:varchar(78)"`
	WithdrawnAt time.Time `gorm:"index;not null"`
}
