package handler

import (
	"io/ioutil"
	"net/http"

	"proxymart/internal/app/logger"
	"proxymart/internal/app/service/settlement"
)

type WebhookHandler struct {
	settlement *settlement.Service
}

func NewWebhookHandler(s *settlement.Service) *WebhookHandler {
	return &WebhookHandler{
		settlement: s,
	}
}

// Settle accepts gateway payment webhooks. The body is passed through as
// raw bytes: the signature covers the exact payload the gateway sent.
func (h *WebhookHandler) Settle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Webhook.Settle")
	l.Debug().Send()

	payload, err := ioutil.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	tx, err := h.settlement.Handle(ctx, payload, r.Header.Get("Sign"))
	if err != nil {
		l.Debug().Err(err).Msg("Settlement rejected")
		writeDomainError(w, err)
		return
	}

	WriteResponse(w, tx, http.StatusOK)
}
