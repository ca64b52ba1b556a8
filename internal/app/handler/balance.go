package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/logger"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
	"proxymart/pkg/cryptomus"
)

type BalanceHandler struct {
	users   storage.UserRepository
	ledger  storage.LedgerRepository
	gateway *cryptomus.Service

	minTopup    decimal.Decimal
	callbackURL string
	returnURL   string
	lifetime    time.Duration
}

func NewBalanceHandler(users storage.UserRepository, ledger storage.LedgerRepository, gateway *cryptomus.Service, minTopup decimal.Decimal, callbackURL, returnURL string, lifetime time.Duration) *BalanceHandler {
	return &BalanceHandler{
		users:       users,
		ledger:      ledger,
		gateway:     gateway,
		minTopup:    minTopup,
		callbackURL: callbackURL,
		returnURL:   returnURL,
		lifetime:    lifetime,
	}
}

func (h *BalanceHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Balance.Balance")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	// Fresh read: the context user was loaded before any concurrent
	// ledger activity in this request window.
	u, err = h.users.Read(ctx, u.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	topups, err := h.ledger.GetTopupSum(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	spent, err := h.ledger.GetSpentSum(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Send()
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	out := struct {
		Current  decimal.Decimal `json:"current"`
		ToppedUp decimal.Decimal `json:"topped_up"`
		Spent    decimal.Decimal `json:"spent"`
	}{
		Current:  u.Balance,
		ToppedUp: *topups,
		Spent:    *spent,
	}

	WriteResponse(w, out, http.StatusOK)
}

func (h *BalanceHandler) CreateTopup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Balance.CreateTopup")
	l.Debug().Send()

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := &struct {
		Amount decimal.Decimal `json:"amount"`
	}{}
	if err := readBody(r, in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if in.Amount.LessThan(h.minTopup) {
		l.Debug().Str("amount", in.Amount.String()).Msg("Below minimum topup")
		WriteError(w, apperr.ErrInvalidInput, http.StatusBadRequest)
		return
	}

	payIn := &cryptomus.CreatePaymentRequest{
		Amount:      in.Amount.StringFixed(2),
		Currency:    "USD",
		OrderID:     "topup_" + xid.New().String(),
		URLCallback: h.callbackURL,
		URLReturn:   h.returnURL,
		Lifetime:    int(h.lifetime.Seconds()),
	}
	payOut := &cryptomus.CreatePaymentResponse{}

	if err := h.gateway.CreatePayment(ctx, payIn, payOut); err != nil {
		l.Error().Err(err).Msg("Gateway payment create failed")
		WriteError(w, err, http.StatusBadGateway)
		return
	}

	providerData, err := json.Marshal(payOut.Result)
	if err != nil {
		WriteError(w, err, http.StatusInternalServerError)
		return
	}

	tx, err := h.ledger.Open(ctx, &model.Transaction{
		UserID:       u.ID,
		Amount:       in.Amount,
		Kind:         model.KindTopup,
		ExternalRef:  payOut.Result.UUID,
		ProviderData: providerData,
	})
	if err != nil {
		l.Error().Err(err).Send()
		writeDomainError(w, err)
		return
	}

	out := struct {
		PaymentURL    string `json:"payment_url"`
		TransactionID string `json:"transaction_id"`
	}{
		PaymentURL:    payOut.Result.URL,
		TransactionID: tx.ID.String(),
	}

	WriteResponse(w, out, http.StatusCreated)
}

func (h *BalanceHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Balance.History")
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

	WriteResponse(w, mm, http.StatusOK)
}
