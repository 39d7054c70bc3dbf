package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"referral_platform/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var paymentColumns = []string{
	"id",
	"user_id",
	"amount",
	"currency",
	"status",
	"provider",
	"provider_id",
	"product_id",
	"product_name",
	"created_at",
	"completed_at",
}

type Payment struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	Amount      decimal.Decimal `db:"amount"`
	Currency    string          `db:"currency"`
	Status      string          `db:"status"`
	Provider    sql.NullString  `db:"provider"`
	ProviderID  sql.NullString  `db:"provider_id"`
	ProductID   sql.NullString  `db:"product_id"`
	ProductName sql.NullString  `db:"product_name"`
	CreatedAt   time.Time       `db:"created_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

func (p *Payment) toModel() *model.Payment {
	return &model.Payment{
		ID:          p.ID,
		UserID:      p.UserID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      model.PaymentStatus(p.Status),
		Provider:    p.Provider.String,
		ProviderID:  p.ProviderID.String,
		ProductID:   p.ProductID.String,
		ProductName: p.ProductName.String,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
}

type pendingSettlement struct {
	PaymentID     string        `db:"payment_id"`
	CompletedAt   time.Time     `db:"completed_at"`
	SettledLevels pq.Int64Array `db:"settled_levels"`
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *Repository) CreatePayment(ctx context.Context, payment *model.Payment) error {
	query, args, err := squirrel.
		Insert("payments").
		SetMap(map[string]interface{}{
			"id":           payment.ID,
			"user_id":      payment.UserID,
			"amount":       payment.Amount,
			"currency":     payment.Currency,
			"status":       string(payment.Status),
			"provider":     nullable(payment.Provider),
			"provider_id":  nullable(payment.ProviderID),
			"product_id":   nullable(payment.ProductID),
			"product_name": nullable(payment.ProductName),
			"created_at":   payment.CreatedAt,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build payment insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

func (r *Repository) GetPaymentByID(ctx context.Context, paymentID string) (*model.Payment, error) {
	return r.getPayment(ctx, squirrel.Eq{"id": paymentID})
}

func (r *Repository) GetPaymentByProvider(ctx context.Context, provider, providerID string) (*model.Payment, error) {
	return r.getPayment(ctx, squirrel.Eq{"provider": provider, "provider_id": providerID})
}

func (r *Repository) getPayment(ctx context.Context, where squirrel.Eq) (*model.Payment, error) {
	var payment Payment
	query, args, err := squirrel.
		Select(paymentColumns...).
		From("payments").
		Where(where).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &payment, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return payment.toModel(), nil
}

func (r *Repository) GetPaymentsByUserID(ctx context.Context, userID string) ([]*model.Payment, error) {
	query, args, err := squirrel.
		Select(paymentColumns...).
		From("payments").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []*Payment
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}

	payments := make([]*model.Payment, len(rows))
	for i, p := range rows {
		payments[i] = p.toModel()
	}

	return payments, nil
}

// MarkPaymentCompleted moves a pending payment to completed. It reports false
// when the payment was not pending, leaving the row untouched.
func (r *Repository) MarkPaymentCompleted(ctx context.Context, paymentID string, completedAt time.Time) (bool, error) {
	return r.transitionPayment(ctx, paymentID, map[string]interface{}{
		"status":       string(model.PaymentStatusCompleted),
		"completed_at": completedAt,
	})
}

func (r *Repository) MarkPaymentFailed(ctx context.Context, paymentID string) (bool, error) {
	return r.transitionPayment(ctx, paymentID, map[string]interface{}{
		"status": string(model.PaymentStatusFailed),
	})
}

func (r *Repository) transitionPayment(ctx context.Context, paymentID string, set map[string]interface{}) (bool, error) {
	query, args, err := squirrel.
		Update("payments").
		SetMap(set).
		Where(squirrel.Eq{
			"id":     paymentID,
			"status": string(model.PaymentStatusPending),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// ListPendingSettlements returns payments completed since the given time that
// have fewer than the maximum number of commission levels recorded.
func (r *Repository) ListPendingSettlements(ctx context.Context, since time.Time, limit int) ([]*model.PendingSettlement, error) {
	query := squirrel.Select(
		"p.id AS payment_id",
		"p.completed_at",
		"COALESCE(array_agg(rc.level ORDER BY rc.level) FILTER (WHERE rc.level IS NOT NULL), '{}') AS settled_levels",
	).
		From("payments p").
		LeftJoin("referral_commissions rc ON rc.payment_id = p.id").
		Where(squirrel.Eq{"p.status": string(model.PaymentStatusCompleted)}).
		Where(squirrel.GtOrEq{"p.completed_at": since}).
		GroupBy("p.id", "p.completed_at").
		Having(squirrel.Lt{"count(rc.level)": model.MaxReferralLevel}).
		OrderBy("p.completed_at").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var rows []*pendingSettlement
	err = r.db.SelectContext(ctx, &rows, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending settlements: %w", err)
	}

	out := make([]*model.PendingSettlement, len(rows))
	for i, row := range rows {
		levels := make([]int, len(row.SettledLevels))
		for j, l := range row.SettledLevels {
			levels[j] = int(l)
		}
		out[i] = &model.PendingSettlement{
			PaymentID:     row.PaymentID,
			CompletedAt:   row.CompletedAt,
			SettledLevels: levels,
		}
	}

	return out, nil
}
