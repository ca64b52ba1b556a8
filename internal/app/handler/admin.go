package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/logger"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
)

type AdminHandler struct {
	users    storage.UserRepository
	ledger   storage.LedgerRepository
	services storage.ServiceRepository
}

func NewAdminHandler(users storage.UserRepository, ledger storage.LedgerRepository, services storage.ServiceRepository) *AdminHandler {
	return &AdminHandler{
		users:    users,
		ledger:   ledger,
		services: services,
	}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Admin.ListUsers")
	l.Debug().Send()

	users, err := h.users.All(ctx)
	if err != nil {
		l.Error().Err(err).Send()
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	WriteResponse(w, users, http.StatusOK)
}

func (h *AdminHandler) UserDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Admin.UserDetails")
	l.Debug().Send()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	u, err := h.users.Read(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, u, http.StatusOK)
}

// SetBalance adjusts a user's balance to the requested value. The change
// goes through the ledger as a completed topup of the difference so the
// conservation invariant keeps holding.
func (h *AdminHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Admin.SetBalance")
	l.Debug().Send()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	in := &struct {
		Amount decimal.Decimal `json:"amount"`
	}{}
	if err := readBody(r, in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	tx, err := h.ledger.Adjust(ctx, id, in.Amount)
	if err != nil {
		if err == apperr.ErrSoftConflict {
			// Target equals the current balance. Nothing to record.
			WriteResponse(w, struct {
				Balance decimal.Decimal `json:"balance"`
			}{in.Amount}, http.StatusOK)
			return
		}
		l.Debug().Err(err).Msg("Adjust failed")
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, tx, http.StatusOK)
}

func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Admin.ListTransactions")
	l.Debug().Send()

	mm, err := h.ledger.All(ctx)
	if err != nil {
		l.Error().Err(err).Send()
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}

func (h *AdminHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Admin.CreateService")
	l.Debug().Send()

	in := &struct {
		Provider     string               `json:"provider" validate:"required"`
		Name         string               `json:"name" validate:"required"`
		Description  string               `json:"description"`
		Price        decimal.Decimal      `json:"price"`
		ProviderData model.ProviderParams `json:"provider_data"`
	}{}
	if err := readBody(r, in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}
	if !validateData(w, in) {
		return
	}

	svc, err := h.services.Create(ctx, &model.Service{
		Provider:     model.ProviderID(in.Provider),
		Name:         in.Name,
		Description:  in.Description,
		Price:        in.Price,
		ProviderData: in.ProviderData,
	})
	if err != nil {
		l.Debug().Err(err).Msg("Service create failed")
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, svc, http.StatusCreated)
}
