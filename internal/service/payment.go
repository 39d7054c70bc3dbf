package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"referral_platform/internal/model"
	"referral_platform/internal/repository"

	"github.com/google/uuid"
)

const defaultCurrency = "INR"

type PaymentService struct {
	repo PaymentRepository
	now  func() time.Time
}

func NewPaymentService(repo PaymentRepository) *PaymentService {
	return &PaymentService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *PaymentService) CreatePayment(ctx context.Context, payment *model.Payment) error {
	if !payment.Amount.IsPositive() {
		return ErrInvalidAmount
	}

	if _, err := s.repo.GetUserByID(ctx, payment.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	payment.ID = uuid.NewString()
	payment.Amount = payment.Amount.Round(moneyPlaces)
	payment.Status = model.PaymentStatusPending
	payment.CreatedAt = s.now()
	payment.CompletedAt = nil
	if payment.Currency == "" {
		payment.Currency = defaultCurrency
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// CompletePayment moves a pending payment to completed. Completing an already
// completed payment returns it unchanged.
func (s *PaymentService) CompletePayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	if _, err := s.repo.MarkPaymentCompleted(ctx, paymentID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case model.PaymentStatusCompleted:
		return payment, nil
	case model.PaymentStatusFailed:
		return nil, ErrPaymentFailed
	default:
		return nil, fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, payment.Status)
	}
}

func (s *PaymentService) CompleteByProvider(ctx context.Context, provider, providerID string) (*model.Payment, error) {
	payment, err := s.repo.GetPaymentByProvider(ctx, provider, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by provider: %w", err)
	}

	return s.CompletePayment(ctx, payment.ID)
}

func (s *PaymentService) FailPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	if _, err := s.repo.MarkPaymentFailed(ctx, paymentID); err != nil {
		return nil, fmt.Errorf("failed to fail payment: %w", err)
	}

	payment, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == model.PaymentStatusCompleted {
		return nil, ErrPaymentCompleted
	}

	return payment, nil
}

func (s *PaymentService) GetUserPayments(ctx context.Context, userID string) ([]*model.Payment, error) {
	payments, err := s.repo.GetPaymentsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user payments: %w", err)
	}
	return payments, nil
}

func (s *PaymentService) getPayment(ctx context.Context, paymentID string) (*model.Payment, error) {
	payment, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}
