package events

import "time"

// Routing keys for ledger events.
const (
	KeyRecordCreated   = "record.created"
	KeyIncomeDeposited = "income.deposited"
)

// RecordCreated announces a new expense record to downstream consumers.
type RecordCreated struct {
	RecordID   uint      `json:"record_id"`
	UserID     uint      `json:"user_id"`
	CategoryID uint      `json:"category_id"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// IncomeDeposited announces a balance change. Balance is the value after
// the deposit was applied.
type IncomeDeposited struct {
	UserID    uint      `json:"user_id"`
	Amount    float64   `json:"amount"`
	Balance   float64   `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}
