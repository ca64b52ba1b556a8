package handler

import (
	"net/http"

	"proxymart/internal/app/logger"
	"proxymart/internal/app/storage"
)

type ServiceHandler struct {
	services storage.ServiceRepository
}

func NewServiceHandler(services storage.ServiceRepository) *ServiceHandler {
	return &ServiceHandler{
		services: services,
	}
}

// List exposes the public catalog.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Service.List")
	l.Debug().Send()

	services, err := h.services.All(ctx)
	if err != nil {
		l.Error().Err(err).Send()
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	WriteResponse(w, services, http.StatusOK)
}
