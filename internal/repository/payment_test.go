package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_MarkPaymentCompleted(t *testing.T) {
	repo, mock := newMockRepository(t)
	completedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE payments SET completed_at = \$1, status = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs(completedAt, "completed", "p1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payments`).
		WithArgs(completedAt, "completed", "p1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkPaymentCompleted(context.Background(), "p1", completedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPaymentCompleted(context.Background(), "p1", completedAt)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetPaymentByID(t *testing.T) {
	repo, mock := newMockRepository(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM payments WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(paymentColumns).
			AddRow("p1", "u1", "1000.00", "INR", "completed", "razorpay", "order_1", nil, nil, created, created))

	payment, err := repo.GetPaymentByID(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "1000.00", payment.Amount.StringFixed(2))
	assert.Equal(t, "razorpay", payment.Provider)
	assert.Empty(t, payment.ProductID)
	require.NotNil(t, payment.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListPendingSettlements(t *testing.T) {
	repo, mock := newMockRepository(t)
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	completed := since.Add(time.Hour)

	mock.ExpectQuery(`SELECT p.id AS payment_id, p.completed_at, .* FROM payments p LEFT JOIN referral_commissions rc .* HAVING count\(rc.level\) < \$3 ORDER BY p.completed_at LIMIT 10`).
		WithArgs("completed", since, 3).
		WillReturnRows(sqlmock.NewRows([]string{"payment_id", "completed_at", "settled_levels"}).
			AddRow("p1", completed, "{1}").
			AddRow("p2", completed, "{}"))

	pending, err := repo.ListPendingSettlements(context.Background(), since, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	assert.Equal(t, []int{1}, pending[0].SettledLevels)
	assert.Empty(t, pending[1].SettledLevels)
	assert.NoError(t, mock.ExpectationsWereMet())
}
