package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/logger"
	"proxymart/internal/app/service/purchase"
	"proxymart/internal/app/storage"
)

type PurchaseHandler struct {
	purchases *purchase.Service
	ledger    storage.LedgerRepository
}

func NewPurchaseHandler(purchases *purchase.Service, ledger storage.LedgerRepository) *PurchaseHandler {
	return &PurchaseHandler{
		purchases: purchases,
		ledger:    ledger,
	}
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Purchase.Create")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := &struct {
		ServiceID uuid.UUID `json:"service_id" validate:"required"`
		Quantity  int       `json:"quantity" validate:"omitempty,min=1"`
	}{}
	if err := readBody(r, in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}
	if !validateData(w, in) {
		return
	}

	tx, err := h.purchases.Purchase(ctx, u.ID, in.ServiceID, in.Quantity)
	if err != nil {
		l.Debug().Err(err).Msg("Purchase failed")
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, tx, http.StatusCreated)
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Purchase.List")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	mm, err := h.ledger.AllByUserID(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	purchases := mm[:0]
	for _, m := range mm {
		if m.Kind.IsDebit() {
			purchases = append(purchases, m)
		}
	}

	WriteResponse(w, purchases, http.StatusOK)
}

func (h *PurchaseHandler) Details(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Purchase.Details")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	tx, err := h.ledger.ReadForUser(ctx, id, u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !tx.Kind.IsDebit() {
		WriteError(w, apperr.ErrNotFound, http.StatusNotFound)
		return
	}

	WriteResponse(w, tx, http.StatusOK)
}

func (h *PurchaseHandler) Extend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Purchase.Extend")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	tx, err := h.purchases.Extend(ctx, u.ID, id)
	if err != nil {
		l.Debug().Err(err).Msg("Extension failed")
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, tx, http.StatusCreated)
}

func (h *PurchaseHandler) Traffic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Purchase.Traffic")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	report, err := h.purchases.Usage(ctx, u.ID, id)
	if err != nil {
		l.Debug().Err(err).Msg("Traffic query failed")
		writeDomainError(w, err)
		return
	}

	out := struct {
		Traffic decimal.NullDecimal `json:"traffic"`
	}{
		Traffic: report.Remaining,
	}

	WriteResponse(w, out, http.StatusOK)
}

func (h *PurchaseHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Purchase.Cancel")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	// Ownership check before the refund path.
	if _, err := h.ledger.ReadForUser(ctx, id, u.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	refund, err := h.ledger.Cancel(ctx, id)
	if err != nil {
		l.Debug().Err(err).Msg("Cancel failed")
		writeDomainError(w, err)
		return
	}

	out := struct {
		Refund decimal.Decimal `json:"refund"`
	}{
		Refund: refund,
	}

	WriteResponse(w, out, http.StatusOK)
}
