package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/model"
)

const (
	reLockBalance = `SELECT balance FROM users WHERE id=\$1 FOR UPDATE`
	reDebit       = `UPDATE users SET balance=balance\+\$1 WHERE id=\$2`
	reInsertTx    = `INSERT INTO transactions \(id, created_at, user_id, amount, kind, status, external_ref, service_details, provider_data\)`
	reLockTx      = `SELECT id, created_at, user_id, amount, kind, status, external_ref, service_details, provider_data FROM transactions WHERE id=\$1 FOR UPDATE`
	reUpdateTx    = `UPDATE transactions SET status=\$1, service_details=\$2 WHERE id=\$3`
	reCancelTx    = `UPDATE transactions SET status=\$1 WHERE id=\$2`
)

func newLedgerMock(t *testing.T) (*LedgerRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r, err := NewLedgerRepository(db)
	require.NoError(t, err)

	return r, mock
}

func txRow(m *model.Transaction) *sqlmock.Rows {
	var details []byte
	if m.ServiceDetails != nil {
		details, _ = json.Marshal(m.ServiceDetails)
	}

	var extRef interface{}
	if m.ExternalRef != "" {
		extRef = m.ExternalRef
	}

	return sqlmock.NewRows([]string{
		"id", "created_at", "user_id", "amount", "kind", "status",
		"external_ref", "service_details", "provider_data",
	}).AddRow(
		m.ID.String(), m.CreatedAt, m.UserID.String(), m.Amount.String(),
		int64(m.Kind), int64(m.Status), extRef, details, []byte(m.ProviderData),
	)
}

func TestLedgerOpenPurchaseReservesFunds(t *testing.T) {
	r, mock := newLedgerMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(reLockBalance).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("10.00"))
	mock.ExpectExec(reDebit).
		WithArgs(decimal.RequireFromString("-7.5"), userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(reInsertTx).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), userID, decimal.RequireFromString("-7.5"),
			model.KindPurchase, model.StatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := r.Open(context.Background(), &model.Transaction{
		UserID: userID,
		Amount: decimal.RequireFromString("-7.5"),
		Kind:   model.KindPurchase,
		ServiceDetails: &model.ServiceDetails{
			Provider: model.ProviderSevenProxy,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerOpenPurchaseInsufficientFunds(t *testing.T) {
	r, mock := newLedgerMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(reLockBalance).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("2.50"))
	mock.ExpectRollback()

	_, err := r.Open(context.Background(), &model.Transaction{
		UserID: userID,
		Amount: decimal.RequireFromString("-7.5"),
		Kind:   model.KindPurchase,
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerOpenExactBalanceSucceeds(t *testing.T) {
	r, mock := newLedgerMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(reLockBalance).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("7.50"))
	mock.ExpectExec(reDebit).
		WithArgs(decimal.RequireFromString("-7.5"), userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(reInsertTx).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := r.Open(context.Background(), &model.Transaction{
		UserID: userID,
		Amount: decimal.RequireFromString("-7.5"),
		Kind:   model.KindPurchase,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerOpenTopupSkipsReservation(t *testing.T) {
	r, mock := newLedgerMock(t)
	userID := uuid.New()

	// No balance lock and no debit for a topup: funds arrive at settlement.
	mock.ExpectBegin()
	mock.ExpectExec(reInsertTx).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), userID, decimal.RequireFromString("25"),
			model.KindTopup, model.StatusPending, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := r.Open(context.Background(), &model.Transaction{
		UserID:      userID,
		Amount:      decimal.RequireFromString("25"),
		Kind:        model.KindTopup,
		ExternalRef: "pay-uuid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerOpenRejectsWrongSign(t *testing.T) {
	r, _ := newLedgerMock(t)

	tt := []struct {
		name   string
		kind   model.TransactionKind
		amount string
	}{
		{"zero amount", model.KindTopup, "0"},
		{"positive purchase", model.KindPurchase, "5"},
		{"negative topup", model.KindTopup, "-5"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Open(context.Background(), &model.Transaction{
				UserID: uuid.New(),
				Amount: decimal.RequireFromString(tc.amount),
				Kind:   tc.kind,
			})
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
}

func TestLedgerFinalizeCompletedTopupCredits(t *testing.T) {
	r, mock := newLedgerMock(t)

	pending := &model.Transaction{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		UserID:      uuid.New(),
		Amount:      decimal.RequireFromString("25"),
		Kind:        model.KindTopup,
		Status:      model.StatusPending,
		ExternalRef: "pay-uuid-1",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(reLockTx).WithArgs(pending.ID).WillReturnRows(txRow(pending))
	mock.ExpectExec(reUpdateTx).
		WithArgs(model.StatusCompleted, sqlmock.AnyArg(), pending.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(reDebit).
		WithArgs(decimal.RequireFromString("25"), pending.UserID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := r.Finalize(context.Background(), pending.ID, model.StatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFinalizeFailedPurchaseRefunds(t *testing.T) {
	r, mock := newLedgerMock(t)

	pending := &model.Transaction{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UserID:    uuid.New(),
		Amount:    decimal.RequireFromString("-7.5"),
		Kind:      model.KindPurchase,
		Status:    model.StatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(reLockTx).WithArgs(pending.ID).WillReturnRows(txRow(pending))
	mock.ExpectExec(reUpdateTx).
		WithArgs(model.StatusFailed, sqlmock.AnyArg(), pending.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(reDebit).
		WithArgs(decimal.RequireFromString("7.5"), pending.UserID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := r.Finalize(context.Background(), pending.ID, model.StatusFailed, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFinalizeCompletedPurchaseIsBalanceNeutral(t *testing.T) {
	r, mock := newLedgerMock(t)

	pending := &model.Transaction{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UserID:    uuid.New(),
		Amount:    decimal.RequireFromString("-7.5"),
		Kind:      model.KindPurchase,
		Status:    model.StatusPending,
	}

	// Funds were reserved at Open time: the only write is the status flip.
	mock.ExpectBegin()
	mock.ExpectQuery(reLockTx).WithArgs(pending.ID).WillReturnRows(txRow(pending))
	mock.ExpectExec(reUpdateTx).
		WithArgs(model.StatusCompleted, sqlmock.AnyArg(), pending.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := r.Finalize(context.Background(), pending.ID, model.StatusCompleted, &model.ServiceDetails{
		Provider: model.ProviderSevenProxy,
		OrderRef: "12345",
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", got.ServiceDetails.OrderRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFinalizeTerminalIsNoOp(t *testing.T) {
	r, mock := newLedgerMock(t)

	settled := &model.Transaction{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		UserID:      uuid.New(),
		Amount:      decimal.RequireFromString("25"),
		Kind:        model.KindTopup,
		Status:      model.StatusCompleted,
		ExternalRef: "pay-uuid-1",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(reLockTx).WithArgs(settled.ID).WillReturnRows(txRow(settled))
	mock.ExpectRollback()

	got, err := r.Finalize(context.Background(), settled.ID, model.StatusFailed, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFinalizeRejectsNonTerminalOutcome(t *testing.T) {
	r, _ := newLedgerMock(t)

	_, err := r.Finalize(context.Background(), uuid.New(), model.StatusPending, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = r.Finalize(context.Background(), uuid.New(), model.StatusCancelled, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestLedgerCancelRefundsCompletedPurchase(t *testing.T) {
	r, mock := newLedgerMock(t)

	completed := &model.Transaction{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UserID:    uuid.New(),
		Amount:    decimal.RequireFromString("-7.5"),
		Kind:      model.KindPurchase,
		Status:    model.StatusCompleted,
		ServiceDetails: &model.ServiceDetails{
			Provider: model.ProviderSevenProxy,
			OrderRef: "12345",
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(reLockTx).WithArgs(completed.ID).WillReturnRows(txRow(completed))
	mock.ExpectExec(reCancelTx).
		WithArgs(model.StatusCancelled, completed.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(reDebit).
		WithArgs(decimal.RequireFromString("7.5"), completed.UserID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	refund, err := r.Cancel(context.Background(), completed.ID)
	require.NoError(t, err)
	assert.True(t, refund.Equal(decimal.RequireFromString("7.5")), "refund = %s", refund)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerCancelRejectsPending(t *testing.T) {
	r, mock := newLedgerMock(t)

	pending := &model.Transaction{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UserID:    uuid.New(),
		Amount:    decimal.RequireFromString("-7.5"),
		Kind:      model.KindPurchase,
		Status:    model.StatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(reLockTx).WithArgs(pending.ID).WillReturnRows(txRow(pending))
	mock.ExpectRollback()

	_, err := r.Cancel(context.Background(), pending.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerCancelRejectsTopup(t *testing.T) {
	r, mock := newLedgerMock(t)

	topup := &model.Transaction{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		UserID:    uuid.New(),
		Amount:    decimal.RequireFromString("25"),
		Kind:      model.KindTopup,
		Status:    model.StatusCompleted,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(reLockTx).WithArgs(topup.ID).WillReturnRows(txRow(topup))
	mock.ExpectRollback()

	_, err := r.Cancel(context.Background(), topup.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerAdjustRecordsDelta(t *testing.T) {
	r, mock := newLedgerMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(reLockBalance).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("10.00"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions (id, created_at, user_id, amount, kind, status)`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), userID, decimal.RequireFromString("-4"),
			model.KindTopup, model.StatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET balance=$1 WHERE id=$2`)).
		WithArgs(decimal.RequireFromString("6"), userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := r.Adjust(context.Background(), userID, decimal.RequireFromString("6"))
	require.NoError(t, err)

	// Lowering a balance records a negative completed topup of the delta,
	// the one sanctioned exception to the amount-sign rule.
	assert.Equal(t, model.KindTopup, got.Kind)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("-4")))
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerAdjustNoChangeIsSoftConflict(t *testing.T) {
	r, mock := newLedgerMock(t)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(reLockBalance).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("6.00"))
	mock.ExpectRollback()

	_, err := r.Adjust(context.Background(), userID, decimal.RequireFromString("6"))
	assert.ErrorIs(t, err, apperr.ErrSoftConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFindByExternalRefNotFound(t *testing.T) {
	r, mock := newLedgerMock(t)

	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE external_ref=\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := r.FindByExternalRef(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFindByExternalRef(t *testing.T) {
	r, mock := newLedgerMock(t)

	m := &model.Transaction{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		UserID:      uuid.New(),
		Amount:      decimal.RequireFromString("25"),
		Kind:        model.KindTopup,
		Status:      model.StatusPending,
		ExternalRef: "pay-uuid-1",
	}

	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE external_ref=\$1`).
		WithArgs("pay-uuid-1").
		WillReturnRows(txRow(m))

	got, err := r.FindByExternalRef(context.Background(), "pay-uuid-1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerListStalePending(t *testing.T) {
	r, mock := newLedgerMock(t)

	m := &model.Transaction{
		ID:          uuid.New(),
		CreatedAt:   time.Now().Add(-time.Hour),
		UserID:      uuid.New(),
		Amount:      decimal.RequireFromString("25"),
		Kind:        model.KindTopup,
		Status:      model.StatusPending,
		ExternalRef: "pay-uuid-1",
	}

	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE kind=\$1 AND status=\$2 AND created_at < \$3`).
		WithArgs(model.KindTopup, model.StatusPending, sqlmock.AnyArg()).
		WillReturnRows(txRow(m))

	got, err := r.ListStalePending(context.Background(), model.KindTopup, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, m.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
