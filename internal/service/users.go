package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"referral_platform/internal/model"
	"referral_platform/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	referralCodePrefix   = "REF"
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeSuffix   = 3
	maxReferralCodeTries = 5
)

type UserService struct {
	repo UserRepository
	now  func() time.Time
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// GenerateReferralCode builds REF + base36 millis + a short random suffix.
func GenerateReferralCode(at time.Time) string {
	var b strings.Builder
	b.WriteString(referralCodePrefix)
	b.WriteString(strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36)))

	random := uuid.New()
	for i := 0; i < referralCodeSuffix; i++ {
		b.WriteByte(referralCodeAlphabet[int(random[i])%len(referralCodeAlphabet)])
	}
	return b.String()
}

func (s *UserService) RegisterUser(ctx context.Context, user *model.User) error {
	if user.ReferredBy != nil {
		code := strings.TrimSpace(*user.ReferredBy)
		if code == "" {
			user.ReferredBy = nil
		} else {
			if _, err := s.repo.GetUserByReferralCode(ctx, code); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrInvalidReferralCode
				}
				return fmt.Errorf("failed to validate referral code: %w", err)
			}
			user.ReferredBy = &code
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = s.now()

	for attempt := 0; attempt < maxReferralCodeTries; attempt++ {
		user.ReferralCode = GenerateReferralCode(s.now())

		err := s.repo.CreateUser(ctx, user)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrDuplicateReferralCode):
			continue
		case errors.Is(err, repository.ErrDuplicate):
			return ErrUserAlreadyExists
		default:
			return fmt.Errorf("failed to create user: %w", err)
		}
	}

	return fmt.Errorf("failed to generate a unique referral code after %d attempts", maxReferralCodeTries)
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (s *UserService) GetWalletBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.WalletBalance, nil
}
