package settlement

import (
	"context"
	"encoding/json"
	"fmt"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/logger"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
	"proxymart/pkg/cryptomus"
)

// Service applies gateway-confirmed payment events to pending topups. A
// forged signature never reaches the ledger; a replayed event hits the
// finalize compare-and-swap and settles nothing twice.
type Service struct {
	ledger storage.LedgerRepository
	secret []byte
	logger logger.Logger
}

func (s *Service) LoggerComponent() string {
	return "Settlement.Service"
}

func New(ledger storage.LedgerRepository, secret string, opts ...Option) *Service {
	s := &Service{
		ledger: ledger,
		secret: []byte(secret),
		logger: logger.Global().WithComponent("Settlement.Service"),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// webhookPayload is the slice of the gateway event the settlement path needs.
// The signature is computed over the raw bytes, so parsing happens only
// after verification.
type webhookPayload struct {
	UUID    string `json:"uuid"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Handle verifies and settles one webhook delivery. payload must be the
// exact received body bytes; any re-encoding breaks the signature.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) (*model.Transaction, error) {
	l := s.logger.With().Str("method", "Handle").Logger()
	ctx = l.WithContext(ctx)

	if !cryptomus.VerifyWebhook(payload, signature, s.secret) {
		l.Warn().Msg("Webhook signature mismatch")
		return nil, apperr.ErrInvalidSignature
	}

	p := &webhookPayload{}
	if err := json.Unmarshal(payload, p); err != nil {
		return nil, fmt.Errorf("payload decode: %w", apperr.ErrInvalidInput)
	}
	if p.UUID == "" {
		return nil, apperr.ErrInvalidInput
	}

	tx, err := s.ledger.FindByExternalRef(ctx, p.UUID)
	if err != nil {
		return nil, err
	}

	if tx.Status != model.StatusPending {
		// Redelivery of an already-settled event. Benign.
		l.Info().
			Str("transaction_id", tx.ID.String()).
			Str("status", tx.Status.String()).
			Msg("Duplicate settlement, no-op")
		return tx, nil
	}

	if !cryptomus.IsTerminal(p.Status) {
		// Intermediate status change. The payment may still complete.
		l.Debug().
			Str("transaction_id", tx.ID.String()).
			Str("gateway_status", p.Status).
			Msg("Non-terminal status, waiting")
		return tx, nil
	}

	outcome := model.StatusFailed
	if cryptomus.IsPaid(p.Status) {
		outcome = model.StatusCompleted
	}

	res, err := s.ledger.Finalize(ctx, tx.ID, outcome, nil)
	if err != nil {
		return nil, err
	}

	l.Info().
		Str("transaction_id", res.ID.String()).
		Str("gateway_status", p.Status).
		Str("status", res.Status.String()).
		Msg("Topup settled")

	return res, nil
}
