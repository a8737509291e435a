package models

import "time"

// Record is an expense event. Immutable once created except for deletion;
// Timestamp is set at creation time.
type Record struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"index;not null"`
	CategoryID uint      `json:"category_id" gorm:"index;not null"`
	Amount     float64   `json:"amount" gorm:"not null"`
	Timestamp  time.Time `json:"timestamp" gorm:"not null"`
}
