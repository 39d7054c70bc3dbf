package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID            string
	FullName      string
	Email         string
	WalletBalance decimal.Decimal
	ReferralCode  string
	ReferredBy    *string
	CreatedAt     time.Time
}

type ReferredUser struct {
	ID           string
	FullName     string
	ReferralCode string
	CreatedAt    time.Time
}
