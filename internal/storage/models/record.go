// internal/storage/models/record.go
package models

import "time"

// Record is embedded by every journal row. Nothing is soft-deleted; the only
// in-place update is a launch row gaining its pool on graduation.
type Record struct {
	ID         uint      `gorm:"primarykey"`
	RecordedAt time.Time `gorm:"autoCreateTime"`
}
