package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"referral_platform/internal/model"
	"referral_platform/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const settlementLockPrefix = "settlement:"

type SettlementResult struct {
	PaymentID string
	// ChainLength is the number of resolvable referrers above the payer.
	ChainLength int
	// Credited holds the commissions recorded by this call.
	Credited []*model.ReferralCommission
	// AlreadySettled counts levels recorded by an earlier call.
	AlreadySettled int
}

func (r *SettlementResult) Noop() bool {
	return len(r.Credited) == 0
}

type SettlementService struct {
	repo     LedgerRepository
	resolver *ChainResolver
	calc     *Calculator
	locker   Locker
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewSettlementService(
	repo LedgerRepository,
	calc *Calculator,
	locker Locker,
	notifier Notifier,
	log *zap.Logger,
) *SettlementService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementService{
		repo:     repo,
		resolver: NewChainResolver(repo),
		calc:     calc,
		locker:   locker,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Settle converts a completed payment into commission records and wallet
// credits for up to three referral levels. Levels already recorded for the
// payment are skipped, so the call is safe to repeat after a partial failure
// or a redelivered event.
func (s *SettlementService) Settle(ctx context.Context, paymentID string) (*SettlementResult, error) {
	unlock, err := s.locker.Lock(ctx, settlementLockPrefix+paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire settlement lock: %w", err)
	}
	defer unlock()

	payment, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if payment.Status != model.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, payment.Status)
	}

	existing, err := s.repo.GetCommissionsByPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing commissions: %w", err)
	}
	settled := make(map[int]struct{}, len(existing))
	for _, c := range existing {
		settled[c.Level] = struct{}{}
	}

	payer, err := s.repo.GetUserByID(ctx, payment.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get payer: %w", err)
	}

	chain, err := s.resolver.Resolve(ctx, payer)
	if err != nil {
		return nil, err
	}

	result := &SettlementResult{
		PaymentID:   paymentID,
		ChainLength: len(chain),
	}

	for _, link := range chain {
		if _, ok := settled[link.Level]; ok {
			result.AlreadySettled++
			s.log.Debug("commission level already settled",
				zap.String("payment_id", paymentID),
				zap.Int("level", link.Level))
			continue
		}

		// Levels that round to 0.00 are still recorded so the payment
		// reads as settled for every resolvable level.
		amount := s.calc.Amount(payment.Amount, link.Level)

		commission := &model.ReferralCommission{
			ID:         uuid.NewString(),
			FromUserID: payer.ID,
			ToUserID:   link.Earner.ID,
			PaymentID:  paymentID,
			Level:      link.Level,
			Amount:     amount,
			CreatedAt:  s.now(),
		}

		recorded, err := s.repo.RecordCommission(ctx, commission)
		if err != nil {
			return nil, fmt.Errorf("failed to record level %d commission: %w", link.Level, err)
		}
		if !recorded {
			result.AlreadySettled++
			continue
		}

		result.Credited = append(result.Credited, commission)
		s.log.Info("commission credited",
			zap.String("payment_id", paymentID),
			zap.String("from_user_id", commission.FromUserID),
			zap.String("to_user_id", commission.ToUserID),
			zap.Int("level", commission.Level),
			zap.String("amount", commission.Amount.StringFixed(moneyPlaces)))

		if s.notifier != nil {
			s.notifier.NotifyCommission(commission)
		}
	}

	return result, nil
}
