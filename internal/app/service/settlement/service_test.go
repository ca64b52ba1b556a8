package settlement

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
	"proxymart/pkg/cryptomus"
)

const testAPIKey = "test-api-key"

// fakeLedgerBase panics on everything the settlement path must never touch.
type fakeLedgerBase struct{}

var _ storage.LedgerRepository = (*recordingLedger)(nil)

func (fakeLedgerBase) Open(context.Context, *model.Transaction) (*model.Transaction, error) {
	panic("unexpected Open")
}

func (fakeLedgerBase) Cancel(context.Context, uuid.UUID) (decimal.Decimal, error) {
	panic("unexpected Cancel")
}

func (fakeLedgerBase) Read(context.Context, uuid.UUID) (*model.Transaction, error) {
	panic("unexpected Read")
}

func (fakeLedgerBase) ReadForUser(context.Context, uuid.UUID, uuid.UUID) (*model.Transaction, error) {
	panic("unexpected ReadForUser")
}

func (fakeLedgerBase) AllByUserID(context.Context, uuid.UUID) ([]*model.Transaction, error) {
	panic("unexpected AllByUserID")
}

func (fakeLedgerBase) All(context.Context) ([]*model.Transaction, error) {
	panic("unexpected All")
}

func (fakeLedgerBase) ListStalePending(context.Context, model.TransactionKind, time.Duration) ([]*model.Transaction, error) {
	panic("unexpected ListStalePending")
}

func (fakeLedgerBase) GetTopupSum(context.Context, uuid.UUID) (*decimal.Decimal, error) {
	panic("unexpected GetTopupSum")
}

func (fakeLedgerBase) GetSpentSum(context.Context, uuid.UUID) (*decimal.Decimal, error) {
	panic("unexpected GetSpentSum")
}

func (fakeLedgerBase) Adjust(context.Context, uuid.UUID, decimal.Decimal) (*model.Transaction, error) {
	panic("unexpected Adjust")
}

// recordingLedger covers only the calls the settlement path makes.
type recordingLedger struct {
	fakeLedgerBase

	byRef     map[string]*model.Transaction
	finalized []finalizeCall
}

type finalizeCall struct {
	id      uuid.UUID
	outcome model.TransactionStatus
}

func (f *recordingLedger) FindByExternalRef(_ context.Context, ref string) (*model.Transaction, error) {
	if m, ok := f.byRef[ref]; ok {
		return m, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *recordingLedger) Finalize(_ context.Context, id uuid.UUID, outcome model.TransactionStatus, _ *model.ServiceDetails) (*model.Transaction, error) {
	f.finalized = append(f.finalized, finalizeCall{id: id, outcome: outcome})
	for _, m := range f.byRef {
		if m.ID == id {
			m.Status = outcome
			return m, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func signedPayload(t *testing.T, event map[string]interface{}) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	return payload, cryptomus.Sign(payload, []byte(testAPIKey))
}

func newPendingTopup(ref string) *model.Transaction {
	return &model.Transaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Amount:      decimal.RequireFromString("25"),
		Kind:        model.KindTopup,
		Status:      model.StatusPending,
		ExternalRef: ref,
	}
}

func TestHandleSettlesPaidTopup(t *testing.T) {
	ledger := &recordingLedger{byRef: map[string]*model.Transaction{
		"pay-1": newPendingTopup("pay-1"),
	}}
	svc := New(ledger, testAPIKey)

	payload, sig := signedPayload(t, map[string]interface{}{
		"uuid":     "pay-1",
		"order_id": "topup_x1",
		"status":   cryptomus.StatusPaid,
	})

	tx, err := svc.Handle(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, tx.Status)
	require.Len(t, ledger.finalized, 1)
	assert.Equal(t, model.StatusCompleted, ledger.finalized[0].outcome)
}

func TestHandlePaidOverCountsAsPaid(t *testing.T) {
	ledger := &recordingLedger{byRef: map[string]*model.Transaction{
		"pay-1": newPendingTopup("pay-1"),
	}}
	svc := New(ledger, testAPIKey)

	payload, sig := signedPayload(t, map[string]interface{}{
		"uuid":   "pay-1",
		"status": cryptomus.StatusPaidOver,
	})

	tx, err := svc.Handle(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, tx.Status)
}

func TestHandleTerminalFailureFailsTopup(t *testing.T) {
	ledger := &recordingLedger{byRef: map[string]*model.Transaction{
		"pay-1": newPendingTopup("pay-1"),
	}}
	svc := New(ledger, testAPIKey)

	payload, sig := signedPayload(t, map[string]interface{}{
		"uuid":   "pay-1",
		"status": cryptomus.StatusExpired,
	})

	tx, err := svc.Handle(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, tx.Status)
}

func TestHandleNonTerminalStatusWaits(t *testing.T) {
	ledger := &recordingLedger{byRef: map[string]*model.Transaction{
		"pay-1": newPendingTopup("pay-1"),
	}}
	svc := New(ledger, testAPIKey)

	payload, sig := signedPayload(t, map[string]interface{}{
		"uuid":   "pay-1",
		"status": "process",
	})

	tx, err := svc.Handle(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, tx.Status)
	assert.Empty(t, ledger.finalized)
}

func TestHandleRejectsForgedSignature(t *testing.T) {
	ledger := &recordingLedger{byRef: map[string]*model.Transaction{
		"pay-1": newPendingTopup("pay-1"),
	}}
	svc := New(ledger, testAPIKey)

	payload, _ := signedPayload(t, map[string]interface{}{
		"uuid":   "pay-1",
		"status": cryptomus.StatusPaid,
	})

	_, err := svc.Handle(context.Background(), payload, "deadbeef")
	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)
	assert.Empty(t, ledger.finalized)
}

func TestHandleRejectsTamperedPayload(t *testing.T) {
	ledger := &recordingLedger{byRef: map[string]*model.Transaction{
		"pay-1": newPendingTopup("pay-1"),
	}}
	svc := New(ledger, testAPIKey)

	payload, sig := signedPayload(t, map[string]interface{}{
		"uuid":   "pay-1",
		"status": cryptomus.StatusFail,
	})

	tampered := append(append([]byte{}, payload...), ' ')

	_, err := svc.Handle(context.Background(), tampered, sig)
	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)
	assert.Empty(t, ledger.finalized)
}

func TestHandleReplayIsNoOp(t *testing.T) {
	settled := newPendingTopup("pay-1")
	settled.Status = model.StatusCompleted

	ledger := &recordingLedger{byRef: map[string]*model.Transaction{
		"pay-1": settled,
	}}
	svc := New(ledger, testAPIKey)

	payload, sig := signedPayload(t, map[string]interface{}{
		"uuid":   "pay-1",
		"status": cryptomus.StatusPaid,
	})

	tx, err := svc.Handle(context.Background(), payload, sig)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, tx.Status)
	assert.Empty(t, ledger.finalized, "replay must not re-finalize")
}

func TestHandleUnknownReference(t *testing.T) {
	ledger := &recordingLedger{byRef: map[string]*model.Transaction{}}
	svc := New(ledger, testAPIKey)

	payload, sig := signedPayload(t, map[string]interface{}{
		"uuid":   "pay-unknown",
		"status": cryptomus.StatusPaid,
	})

	_, err := svc.Handle(context.Background(), payload, sig)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHandleRejectsEmptyUUID(t *testing.T) {
	ledger := &recordingLedger{byRef: map[string]*model.Transaction{}}
	svc := New(ledger, testAPIKey)

	payload, sig := signedPayload(t, map[string]interface{}{
		"status": cryptomus.StatusPaid,
	})

	_, err := svc.Handle(context.Background(), payload, sig)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
