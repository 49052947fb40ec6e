package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/digicheckout/server/internal/model"
	"github.com/digicheckout/server/internal/port/outbound"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestTransactionAdapter_CommitsOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	tx := NewTransactionAdapter(db)
	orders := NewOrderAdapter(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var moved bool
	err := tx.RunInTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		moved, err = orders.TransitionStatus(ctx, uuid.New(), model.OrderStatusDraft, model.OrderStatusPendingPayment,
			outbound.OrderStatusChange{At: time.Now()})
		return err
	})
	require.NoError(t, err)
	assert.True(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionAdapter_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tx := NewTransactionAdapter(db)
	boom := errors.New("history insert failed")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tx.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionAdapter_NestedJoinsOuter(t *testing.T) {
	db, mock := newMockDB(t)
	tx := NewTransactionAdapter(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := tx.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return tx.RunInTransaction(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
