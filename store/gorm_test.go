package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T, allowUnfiltered bool) (*Gorm, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDb.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewGorm(db, allowUnfiltered), mock
}

func TestGormGetUser(t *testing.T) {
	s, mock := newMockStore(t, false)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
		AddRow(1, "Alice", time.Now().UTC(), time.Now().UTC())
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(1, 1).WillReturnRows(rows)

	user, err := s.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)
	assert.Equal(t, "Alice", user.Name)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}))

	_, err = s.GetUser(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCreateUser(t *testing.T) {
	s, mock := newMockStore(t, false)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users" (.+) RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	user, err := s.CreateUser(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.ID)

	// Validation happens before any SQL.
	_, err = s.CreateUser(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDeleteUserCascades(t *testing.T) {
	s, mock := newMockStore(t, false)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "accounts" WHERE user_id = \$1`).
		WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "records" WHERE user_id = \$1`).
		WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteUser(ctx, 1))

	// Unknown user rolls back and reports not found.
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, s.DeleteUser(ctx, 9), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDepositIncomeCreatesAccount(t *testing.T) {
	s, mock := newMockStore(t, false)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow(1, "Alice", time.Now().UTC(), time.Now().UTC()))
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE user_id = \$1 (.+)FOR UPDATE`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}))
	mock.ExpectQuery(`INSERT INTO "accounts" (.+) RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	acct, err := s.DepositIncome(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, uint(1), acct.UserID)
	assert.Equal(t, 50.0, acct.Balance)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDepositIncomeLocksExistingAccount(t *testing.T) {
	s, mock := newMockStore(t, false)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow(1, "Alice", time.Now().UTC(), time.Now().UTC()))
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE user_id = \$1 (.+)FOR UPDATE`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
			AddRow(1, 1, 50.0, time.Now().UTC(), time.Now().UTC()))
	mock.ExpectExec(`UPDATE "accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	acct, err := s.DepositIncome(ctx, 1, 25)
	require.NoError(t, err)
	assert.Equal(t, 75.0, acct.Balance)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDepositIncomeFirstDepositConflict(t *testing.T) {
	s, mock := newMockStore(t, false)
	ctx := context.Background()

	// The account insert hits the unique user_id because a concurrent first
	// deposit won; DO NOTHING inserts no row and the winner's row is
	// re-read under the lock.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow(1, "Alice", time.Now().UTC(), time.Now().UTC()))
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE user_id = \$1 (.+)FOR UPDATE`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}))
	mock.ExpectQuery(`INSERT INTO "accounts" (.+) ON CONFLICT \("user_id"\) DO NOTHING RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE user_id = \$1 (.+)FOR UPDATE`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
			AddRow(1, 1, 50.0, time.Now().UTC(), time.Now().UTC()))
	mock.ExpectExec(`UPDATE "accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	acct, err := s.DepositIncome(ctx, 1, 25)
	require.NoError(t, err)
	assert.Equal(t, 75.0, acct.Balance)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDepositIncomeUnknownUser(t *testing.T) {
	s, mock := newMockStore(t, false)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WithArgs(9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}))
	mock.ExpectRollback()

	_, err := s.DepositIncome(ctx, 9, 50)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormListRecordsPolicy(t *testing.T) {
	strict, _ := newMockStore(t, false)
	_, err := strict.ListRecords(context.Background(), RecordFilter{})
	assert.ErrorIs(t, err, ErrValidation)

	open, mock := newMockStore(t, true)
	mock.ExpectQuery(`SELECT \* FROM "records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "category_id", "amount", "timestamp"}).
			AddRow(1, 1, 1, 10.0, time.Now().UTC()))

	records, err := open.ListRecords(context.Background(), RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 10.0, records[0].Amount)

	require.NoError(t, mock.ExpectationsWereMet())
}
