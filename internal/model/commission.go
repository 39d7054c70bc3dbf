package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const MaxReferralLevel = 3

type ReferralCommission struct {
	ID         string
	FromUserID string
	ToUserID   string
	PaymentID  string
	Level      int
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// ChainLink is one earner in a payer's referral chain.
type ChainLink struct {
	Earner *User
	Level  int
}

type LevelEarnings struct {
	Level int
	Count int
	Total decimal.Decimal
}

type EarningsSummary struct {
	UserID string
	Levels []LevelEarnings
	Total  decimal.Decimal
}
