package wallet

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargolink/escrow-api/internal/pkg/database"
	"github.com/cargolink/escrow-api/internal/pkg/money"
)

var walletCols = []string{"id", "owner_id", "currency", "balance", "version", "created_at", "updated_at"}

var transactionCols = []string{"id", "wallet_id", "type", "amount", "currency", "status", "reference",
	"related_id", "counterpart_wallet_id", "metadata", "created_at", "updated_at"}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func walletRow(id uuid.UUID, balance string, version int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(walletCols).AddRow(id.String(), uuid.New().String(), "KZT", balance, version, now, now)
}

func transactionRow(t *Transaction) *sqlmock.Rows {
	return sqlmock.NewRows(transactionCols).AddRow(
		t.ID.String(), t.WalletID.String(), string(t.Type), t.Amount.String(), "KZT", string(t.Status),
		t.Reference, nil, nil, []byte(`{}`), t.CreatedAt, t.UpdatedAt)
}

func TestApplyDeltaVersionConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets")).
		WillReturnRows(sqlmock.NewRows(walletCols))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	w := &Wallet{ID: uuid.New(), Currency: money.KZT, Balance: decimal.NewFromInt(10), Version: 3}
	err = NewRepository().ApplyDelta(context.Background(), tx, w, decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, database.ErrVersionConflict)
}

func TestApplyDeltaCheckViolationIsInsufficientFunds(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets")).
		WillReturnError(&pq.Error{Code: "23514", Constraint: "wallets_balance_non_negative"})
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	w := &Wallet{ID: uuid.New(), Version: 1}
	err = NewRepository().ApplyDelta(context.Background(), tx, w, decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestInsertReferenceRaceIsRetryable(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: referenceConstraint})
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	entry, err := NewEntry(EntryParams{WalletID: uuid.New(), Type: TypeTopUp, Amount: decimal.NewFromInt(1), Reference: "r-1"})
	require.NoError(t, err)

	err = NewRepository().Insert(context.Background(), tx, entry)
	assert.True(t, database.IsRetryable(err))
}

func TestUpdateStatusLostRace(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	entry := &Transaction{ID: uuid.New(), Status: StatusPending}
	err = NewRepository().UpdateStatus(context.Background(), tx, entry, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPending, entry.Status)
}

func TestUpdateStatusRejectsIllegalTransitionWithoutQuery(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	entry := &Transaction{ID: uuid.New(), Status: StatusFailed}
	err = NewRepository().UpdateStatus(context.Background(), tx, entry, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBalanceDerivesAvailable(t *testing.T) {
	db, mock := newMock(t)
	walletID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("AS reserved")).
		WithArgs(walletID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_id", "currency", "stored", "reserved"}).
			AddRow(walletID.String(), "KZT", "1000.00", "800.00"))

	b, err := NewRepository().Balance(context.Background(), db, walletID)
	require.NoError(t, err)
	assert.True(t, b.Available.Equal(decimal.NewFromInt(200)), "available = %s", b.Available)
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(walletCols))

	_, err := NewRepository().GetByID(context.Background(), db, uuid.New())
	assert.True(t, errors.Is(err, ErrWalletNotFound))
}

func TestListAppliesFiltersAndPage(t *testing.T) {
	db, mock := newMock(t)
	walletID := uuid.New()
	entry := &Transaction{
		ID: uuid.New(), WalletID: walletID, Type: TypeWithdrawal, Amount: decimal.NewFromInt(50),
		Status: StatusPending, Reference: "bank:wd-1", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE wallet_id = $1 AND type = $2 AND status = $3 ORDER BY created_at DESC, id DESC LIMIT $4 OFFSET $5")).
		WithArgs(walletID.String(), "withdrawal", "pending", 20, 40).
		WillReturnRows(transactionRow(entry))

	items, err := NewRepository().List(context.Background(), db, walletID, ListFilter{
		Type: TypeWithdrawal, Status: StatusPending, Limit: 500, Offset: 40,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "bank:wd-1", items[0].Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}
