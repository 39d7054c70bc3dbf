package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Payment struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Status      PaymentStatus
	Provider    string
	ProviderID  string
	ProductID   string
	ProductName string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// PendingSettlement is a completed payment together with the commission
// levels already recorded for it.
type PendingSettlement struct {
	PaymentID     string
	CompletedAt   time.Time
	SettledLevels []int
}
