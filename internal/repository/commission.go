package repository

import (
	"context"
	"fmt"
	"time"

	"referral_platform/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var commissionColumns = []string{
	"id",
	"from_user_id",
	"to_user_id",
	"payment_id",
	"level",
	"amount",
	"created_at",
}

type ReferralCommission struct {
	ID         string          `db:"id"`
	FromUserID string          `db:"from_user_id"`
	ToUserID   string          `db:"to_user_id"`
	PaymentID  string          `db:"payment_id"`
	Level      int             `db:"level"`
	Amount     decimal.Decimal `db:"amount"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (c *ReferralCommission) toModel() *model.ReferralCommission {
	return &model.ReferralCommission{
		ID:         c.ID,
		FromUserID: c.FromUserID,
		ToUserID:   c.ToUserID,
		PaymentID:  c.PaymentID,
		Level:      c.Level,
		Amount:     c.Amount,
		CreatedAt:  c.CreatedAt,
	}
}

type levelEarnings struct {
	Level int             `db:"level"`
	Count int             `db:"count"`
	Total decimal.Decimal `db:"total"`
}

// RecordCommission inserts the commission row and credits the earner's wallet
// in a single transaction. The wallet is only credited when the insert took
// effect; an existing (payment_id, level) row makes the call a no-op and it
// reports false.
func (r *Repository) RecordCommission(ctx context.Context, commission *model.ReferralCommission) (bool, error) {
	var recorded bool

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("referral_commissions").
			SetMap(map[string]interface{}{
				"id":           commission.ID,
				"from_user_id": commission.FromUserID,
				"to_user_id":   commission.ToUserID,
				"payment_id":   commission.PaymentID,
				"level":        commission.Level,
				"amount":       commission.Amount,
				"created_at":   commission.CreatedAt,
			}).
			Suffix("ON CONFLICT (payment_id, level) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build commission insert query: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert commission: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		if err := r.creditWalletWithTx(ctx, tx, commission.ToUserID, commission.Amount); err != nil {
			return err
		}

		recorded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return recorded, nil
}

func (r *Repository) GetCommissionsByPayment(ctx context.Context, paymentID string) ([]*model.ReferralCommission, error) {
	return r.selectCommissions(ctx, squirrel.Eq{"payment_id": paymentID}, "level")
}

func (r *Repository) GetCommissionsByEarner(ctx context.Context, userID string) ([]*model.ReferralCommission, error) {
	return r.selectCommissions(ctx, squirrel.Eq{"to_user_id": userID}, "created_at DESC")
}

func (r *Repository) selectCommissions(ctx context.Context, where squirrel.Eq, orderBy string) ([]*model.ReferralCommission, error) {
	query, args, err := squirrel.
		Select(commissionColumns...).
		From("referral_commissions").
		Where(where).
		OrderBy(orderBy).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []*ReferralCommission
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get commissions: %w", err)
	}

	commissions := make([]*model.ReferralCommission, len(rows))
	for i, c := range rows {
		commissions[i] = c.toModel()
	}

	return commissions, nil
}

func (r *Repository) GetEarningsByLevel(ctx context.Context, userID string) ([]model.LevelEarnings, error) {
	query, args, err := squirrel.
		Select("level", "count(*) AS count", "COALESCE(sum(amount), 0) AS total").
		From("referral_commissions").
		Where(squirrel.Eq{"to_user_id": userID}).
		GroupBy("level").
		OrderBy("level").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []levelEarnings
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get earnings: %w", err)
	}

	out := make([]model.LevelEarnings, len(rows))
	for i, row := range rows {
		out[i] = model.LevelEarnings{
			Level: row.Level,
			Count: row.Count,
			Total: row.Total,
		}
	}

	return out, nil
}
