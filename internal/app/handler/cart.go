package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/logger"
	"proxymart/internal/app/service/purchase"
	"proxymart/internal/app/storage"
)

type CartHandler struct {
	cart      storage.CartRepository
	services  storage.ServiceRepository
	purchases *purchase.Service
}

func NewCartHandler(cart storage.CartRepository, services storage.ServiceRepository, purchases *purchase.Service) *CartHandler {
	return &CartHandler{
		cart:      cart,
		services:  services,
		purchases: purchases,
	}
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Cart.Add")
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
	if in.Quantity == 0 {
		in.Quantity = 1
	}

	// The catalog is the source of truth; reject unknown services here
	// rather than at checkout.
	if _, err := h.services.Read(ctx, in.ServiceID); err != nil {
		writeDomainError(w, err)
		return
	}

	item, err := h.cart.AddItem(ctx, u.ID, in.ServiceID, in.Quantity)
	if err != nil {
		l.Error().Err(err).Send()
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, item, http.StatusCreated)
}

func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Cart.List")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	items, err := h.cart.AllByUserID(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	WriteResponse(w, items, http.StatusOK)
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Cart.Remove")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	if err := h.cart.Remove(ctx, u.ID, id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Cart.Checkout")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	results, err := h.purchases.Checkout(ctx, u.ID)
	if err != nil {
		l.Debug().Err(err).Msg("Checkout failed")
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, results, http.StatusOK)
}
