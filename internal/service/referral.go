package service

import (
	"context"
	"errors"
	"fmt"

	"referral_platform/internal/model"
	"referral_platform/internal/repository"
)

type ChainResolver struct {
	users ReferrerLookup
}

func NewChainResolver(users ReferrerLookup) *ChainResolver {
	return &ChainResolver{
		users: users,
	}
}

// Resolve walks referredBy pointers from the payer, returning at most
// MaxReferralLevel links in level order. A code that resolves to nobody or a
// user already in the chain (the payer included) ends the walk.
func (r *ChainResolver) Resolve(ctx context.Context, payer *model.User) ([]model.ChainLink, error) {
	visited := map[string]struct{}{payer.ID: {}}
	links := make([]model.ChainLink, 0, model.MaxReferralLevel)

	code := payer.ReferredBy
	for level := 1; level <= model.MaxReferralLevel; level++ {
		if code == nil || *code == "" {
			break
		}

		earner, err := r.users.GetUserByReferralCode(ctx, *code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("failed to resolve level %d referrer: %w", level, err)
		}

		if _, seen := visited[earner.ID]; seen {
			break
		}
		visited[earner.ID] = struct{}{}

		links = append(links, model.ChainLink{Earner: earner, Level: level})
		code = earner.ReferredBy
	}

	return links, nil
}

type ReferralService struct {
	repo ReferralRepository
}

func NewReferralService(repo ReferralRepository) *ReferralService {
	return &ReferralService{
		repo: repo,
	}
}

func (s *ReferralService) ensureUser(ctx context.Context, userID string) error {
	_, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	return nil
}

func (s *ReferralService) GetCommissionsEarned(ctx context.Context, userID string) ([]*model.ReferralCommission, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	commissions, err := s.repo.GetCommissionsByEarner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get commissions: %w", err)
	}
	return commissions, nil
}

func (s *ReferralService) GetReferredUsers(ctx context.Context, userID string) ([]*model.ReferredUser, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	users, err := s.repo.GetReferredUsers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referred users: %w", err)
	}
	return users, nil
}

// GetEarningsSummary reports commission count and total for every level,
// including levels that earned nothing.
func (s *ReferralService) GetEarningsSummary(ctx context.Context, userID string) (*model.EarningsSummary, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.repo.GetEarningsByLevel(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get earnings: %w", err)
	}

	summary := &model.EarningsSummary{
		UserID: userID,
		Levels: make([]model.LevelEarnings, model.MaxReferralLevel),
	}
	for i := range summary.Levels {
		summary.Levels[i].Level = i + 1
	}
	for _, row := range rows {
		if row.Level < 1 || row.Level > model.MaxReferralLevel {
			continue
		}
		summary.Levels[row.Level-1] = row
	}
	for _, l := range summary.Levels {
		summary.Total = summary.Total.Add(l.Total)
	}

	return summary, nil
}
