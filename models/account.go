package models

import "time"

// Account holds the derived balance for a user. Exactly zero or one per
// user (unique index on user_id); the balance changes only through income
// deposits.
type Account struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Balance   float64   `json:"balance" gorm:"not null"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
