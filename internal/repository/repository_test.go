package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewWithDB(sqlx.NewDb(db, "pgx")), mock
}

func TestConfig_GetDatabaseURL(t *testing.T) {
	cfg := Config{
		Host:     "db",
		Port:     "5432",
		User:     "app",
		Password: "secret",
		Name:     "referrals",
	}
	require.Equal(t, "postgres://app:secret@db:5432/referrals?sslmode=disable", cfg.GetDatabaseURL())

	cfg.SSLMode = "require"
	require.Equal(t, "postgres://app:secret@db:5432/referrals?sslmode=require", cfg.GetDatabaseURL())
}
