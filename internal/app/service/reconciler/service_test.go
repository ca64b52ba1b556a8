package reconciler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
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

type stubLedger struct {
	mu        sync.Mutex
	stale     []*model.Transaction
	finalized map[uuid.UUID]model.TransactionStatus
}

var _ storage.LedgerRepository = (*stubLedger)(nil)

func (s *stubLedger) ListStalePending(context.Context, model.TransactionKind, time.Duration) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale, nil
}

func (s *stubLedger) Finalize(_ context.Context, id uuid.UUID, outcome model.TransactionStatus, _ *model.ServiceDetails) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized[id] = outcome
	return &model.Transaction{ID: id, Status: outcome}, nil
}

func (s *stubLedger) Open(context.Context, *model.Transaction) (*model.Transaction, error) {
	return nil, apperr.ErrInvalidInput
}

func (s *stubLedger) Cancel(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, apperr.ErrInvalidTransition
}

func (s *stubLedger) FindByExternalRef(context.Context, string) (*model.Transaction, error) {
	return nil, apperr.ErrNotFound
}

func (s *stubLedger) Read(context.Context, uuid.UUID) (*model.Transaction, error) {
	return nil, apperr.ErrNotFound
}

func (s *stubLedger) ReadForUser(context.Context, uuid.UUID, uuid.UUID) (*model.Transaction, error) {
	return nil, apperr.ErrNotFound
}

func (s *stubLedger) AllByUserID(context.Context, uuid.UUID) ([]*model.Transaction, error) {
	return nil, nil
}

func (s *stubLedger) All(context.Context) ([]*model.Transaction, error) {
	return nil, nil
}

func (s *stubLedger) GetTopupSum(context.Context, uuid.UUID) (*decimal.Decimal, error) {
	sum := decimal.Zero
	return &sum, nil
}

func (s *stubLedger) GetSpentSum(context.Context, uuid.UUID) (*decimal.Decimal, error) {
	sum := decimal.Zero
	return &sum, nil
}

func (s *stubLedger) Adjust(context.Context, uuid.UUID, decimal.Decimal) (*model.Transaction, error) {
	return nil, apperr.ErrInvalidInput
}

func newTestGateway(t *testing.T, status string) *cryptomus.Service {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment/info", r.URL.Path)
		_, _ = w.Write([]byte(`{"result": {"uuid": "pay-1", "status": "` + status + `"}}`))
	}))
	t.Cleanup(srv.Close)

	gw, err := cryptomus.NewService(srv.URL, "merchant-1", "api-key")
	require.NoError(t, err)

	return gw
}

func TestReconcileTopupPaid(t *testing.T) {
	ledger := &stubLedger{finalized: make(map[uuid.UUID]model.TransactionStatus)}
	gw := newTestGateway(t, cryptomus.StatusPaid)

	svc, err := New(ledger, gw, 30*time.Minute, WithSweepInterval(time.Hour))
	require.NoError(t, err)
	defer svc.Stop()

	id := uuid.New()
	require.NoError(t, svc.ReconcileTopup(id, "pay-1")())

	assert.Equal(t, model.StatusCompleted, ledger.finalized[id])
}

func TestReconcileTopupExpired(t *testing.T) {
	ledger := &stubLedger{finalized: make(map[uuid.UUID]model.TransactionStatus)}
	gw := newTestGateway(t, cryptomus.StatusExpired)

	svc, err := New(ledger, gw, 30*time.Minute, WithSweepInterval(time.Hour))
	require.NoError(t, err)
	defer svc.Stop()

	id := uuid.New()
	require.NoError(t, svc.ReconcileTopup(id, "pay-1")())

	assert.Equal(t, model.StatusFailed, ledger.finalized[id])
}

func TestReconcileTopupStillOpenLeavesPending(t *testing.T) {
	ledger := &stubLedger{finalized: make(map[uuid.UUID]model.TransactionStatus)}
	gw := newTestGateway(t, "process")

	svc, err := New(ledger, gw, 30*time.Minute, WithSweepInterval(time.Hour))
	require.NoError(t, err)
	defer svc.Stop()

	id := uuid.New()
	require.NoError(t, svc.ReconcileTopup(id, "pay-1")())

	assert.Empty(t, ledger.finalized)
}
