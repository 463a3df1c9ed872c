package store

import (
	"context"
	"errors"
	"testing"

	apperr "github.com/realestateinvestorceo/FirstPulse1.2/internal/errors"
	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCommitExecution_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteStore(db, zap.NewNop())
	tx := model.Transaction{ID: "d1", AccountID: "acct", Amount: decimal.RequireFromString("-12"),
		BalanceAfter: decimal.RequireFromString("38"), Timestamp: t0}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallet_transactions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO wallets").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO tracking").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = s.CommitExecution(context.Background(), Execution{
		AccountID:   "acct",
		Tracking:    []model.TrackingEntity{sampleEntity("t1", "p1")},
		Batch:       sampleBatch("b1", t0),
		Transaction: &tx,
	})

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitGeneration_MissingSupersededBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteStore(db, zap.NewNop())
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE batches SET status").
		WithArgs(string(model.BatchArchived), sqlmock.AnyArg(), "acct", "old").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = s.CommitGeneration(context.Background(), Generation{AccountID: "acct", Batch: sampleBatch("b2", t0), Supersede: []string{"old"}})

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccount_StorageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteStore(db, nil)
	mock.ExpectQuery("SELECT data FROM accounts").WithArgs("acct").WillReturnError(errors.New("database is locked"))

	_, err = s.GetAccount(context.Background(), "acct")
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccount_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLiteStore(db, nil)
	mock.ExpectQuery("SELECT data FROM accounts").WithArgs("acct").WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err = s.GetAccount(context.Background(), "acct")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
