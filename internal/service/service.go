package service

import (
	"context"
	"errors"
	"time"

	"referral_platform/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPaymentNotCompleted = errors.New("payment is not completed")
	ErrPaymentFailed       = errors.New("payment has failed")
	ErrPaymentCompleted    = errors.New("payment is already completed")
	ErrInvalidAmount       = errors.New("payment amount must be positive")
)

type Service struct {
	*UserService
	*PaymentService
	*ReferralService
	*SettlementService
}

func NewService(
	userService *UserService,
	paymentService *PaymentService,
	referralService *ReferralService,
	settlementService *SettlementService,
) *Service {
	return &Service{
		UserService:       userService,
		PaymentService:    paymentService,
		ReferralService:   referralService,
		SettlementService: settlementService,
	}
}

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetWalletBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
}

type PaymentServiceI interface {
	CreatePayment(ctx context.Context, payment *model.Payment) error
	CompletePayment(ctx context.Context, paymentID string) (*model.Payment, error)
	CompleteByProvider(ctx context.Context, provider, providerID string) (*model.Payment, error)
	FailPayment(ctx context.Context, paymentID string) (*model.Payment, error)
	GetUserPayments(ctx context.Context, userID string) ([]*model.Payment, error)
}

type PaymentRepository interface {
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	CreatePayment(ctx context.Context, payment *model.Payment) error
	GetPaymentByID(ctx context.Context, paymentID string) (*model.Payment, error)
	GetPaymentByProvider(ctx context.Context, provider, providerID string) (*model.Payment, error)
	GetPaymentsByUserID(ctx context.Context, userID string) ([]*model.Payment, error)
	MarkPaymentCompleted(ctx context.Context, paymentID string, completedAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, paymentID string) (bool, error)
}

type ReferralServiceI interface {
	GetCommissionsEarned(ctx context.Context, userID string) ([]*model.ReferralCommission, error)
	GetReferredUsers(ctx context.Context, userID string) ([]*model.ReferredUser, error)
	GetEarningsSummary(ctx context.Context, userID string) (*model.EarningsSummary, error)
}

type ReferralRepository interface {
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetCommissionsByEarner(ctx context.Context, userID string) ([]*model.ReferralCommission, error)
	GetReferredUsers(ctx context.Context, userID string) ([]*model.ReferredUser, error)
	GetEarningsByLevel(ctx context.Context, userID string) ([]model.LevelEarnings, error)
}

type SettlementServiceI interface {
	Settle(ctx context.Context, paymentID string) (*SettlementResult, error)
}

// ReferrerLookup is the read side the chain resolver walks.
type ReferrerLookup interface {
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
}

// LedgerRepository is the storage the settlement engine writes through.
// RecordCommission must insert the commission and credit the earner
// atomically, returning false when (payment, level) is already recorded.
type LedgerRepository interface {
	ReferrerLookup
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetPaymentByID(ctx context.Context, paymentID string) (*model.Payment, error)
	GetCommissionsByPayment(ctx context.Context, paymentID string) ([]*model.ReferralCommission, error)
	RecordCommission(ctx context.Context, commission *model.ReferralCommission) (bool, error)
}

// Locker serializes work on a key across goroutines or instances.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type Notifier interface {
	NotifyCommission(commission *model.ReferralCommission)
}
