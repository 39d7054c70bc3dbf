package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"referral_platform/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrDuplicateReferralCode = errors.New("referral code already taken")

var userColumns = []string{
	"id",
	"full_name",
	"email",
	"wallet_balance",
	"referral_code",
	"referred_by",
	"created_at",
}

type User struct {
	ID            string          `db:"id"`
	FullName      string          `db:"full_name"`
	Email         string          `db:"email"`
	WalletBalance decimal.Decimal `db:"wallet_balance"`
	ReferralCode  string          `db:"referral_code"`
	ReferredBy    *string         `db:"referred_by"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (u *User) toModel() *model.User {
	return &model.User{
		ID:            u.ID,
		FullName:      u.FullName,
		Email:         u.Email,
		WalletBalance: u.WalletBalance,
		ReferralCode:  u.ReferralCode,
		ReferredBy:    u.ReferredBy,
		CreatedAt:     u.CreatedAt,
	}
}

type referredUser struct {
	ID           string    `db:"id"`
	FullName     string    `db:"full_name"`
	ReferralCode string    `db:"referral_code"`
	CreatedAt    time.Time `db:"created_at"`
}

// CreateUser inserts a new user with a zero wallet. A clash on the referral
// code is reported as ErrDuplicateReferralCode so the caller can pick a new one.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query, args, err := squirrel.
		Insert("users").
		SetMap(map[string]interface{}{
			"id":             user.ID,
			"full_name":      user.FullName,
			"email":          user.Email,
			"wallet_balance": decimal.Zero,
			"referral_code":  user.ReferralCode,
			"referred_by":    user.ReferredBy,
			"created_at":     user.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && strings.Contains(pgErr.ConstraintName, "referral_code") {
				return ErrDuplicateReferralCode
			}
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.WalletBalance = decimal.Zero
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	return r.getUser(ctx, r.db, squirrel.Eq{"id": userID})
}

func (r *Repository) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return r.getUser(ctx, r.db, squirrel.Eq{"referral_code": code})
}

func (r *Repository) getUser(ctx context.Context, q sqlx.QueryerContext, where squirrel.Eq) (*model.User, error) {
	var user User
	query, args, err := squirrel.
		Select(userColumns...).
		From("users").
		Where(where).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = sqlx.GetContext(ctx, q, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return user.toModel(), nil
}

// CreditWallet atomically increments the user's wallet balance.
func (r *Repository) CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		return r.creditWalletWithTx(ctx, tx, userID, amount)
	})
}

func (r *Repository) creditWalletWithTx(ctx context.Context, tx *sqlx.Tx, userID string, amount decimal.Decimal) error {
	updateQuery, updateArgs, err := squirrel.
		Update("users").
		Set("wallet_balance", squirrel.Expr("wallet_balance + ?", amount)).
		Where(squirrel.Eq{"id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build wallet update query: %w", err)
	}

	result, err := tx.ExecContext(ctx, updateQuery, updateArgs...)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) GetReferredUsers(ctx context.Context, userID string) ([]*model.ReferredUser, error) {
	query := squirrel.Select(
		"id",
		"full_name",
		"referral_code",
		"created_at",
	).
		From("users").
		Where("referred_by = (SELECT referral_code FROM users WHERE id = ?)", userID).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var referrals []*referredUser
	err = r.db.SelectContext(ctx, &referrals, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get referred users: %w", err)
	}

	refs := make([]*model.ReferredUser, len(referrals))
	for i, ref := range referrals {
		refs[i] = &model.ReferredUser{
			ID:           ref.ID,
			FullName:     ref.FullName,
			ReferralCode: ref.ReferralCode,
			CreatedAt:    ref.CreatedAt,
		}
	}

	return refs, nil
}
