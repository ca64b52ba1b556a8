package purchase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/logger"
	"proxymart/internal/app/model"
	"proxymart/internal/app/provider"
	"proxymart/internal/app/storage"
)

const (
	defaultCallTimeout = 30 * time.Second
	usageCacheTTL      = time.Minute
)

// Service coordinates a single purchase or extension: catalog lookup,
// provider resolution, balance reservation, the upstream call, and the
// ledger finalize. The reservation made before the provider call is paid
// back in full, exactly once, when that call fails.
type Service struct {
	services storage.ServiceRepository
	cart     storage.CartRepository
	ledger   storage.LedgerRepository
	registry *provider.Registry

	cache       *redis.Client
	callTimeout time.Duration
	logger      logger.Logger
}

func (s *Service) LoggerComponent() string {
	return "Purchase.Service"
}

func New(services storage.ServiceRepository, cart storage.CartRepository, ledger storage.LedgerRepository, registry *provider.Registry, opts ...Option) *Service {
	s := &Service{
		services:    services,
		cart:        cart,
		ledger:      ledger,
		registry:    registry,
		callTimeout: defaultCallTimeout,
		logger:      logger.Global().WithComponent("Purchase.Service"),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

type Option func(*Service)

// WithUsageCache enables short-lived caching of traffic reports.
func WithUsageCache(c *redis.Client) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.callTimeout = d
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// Purchase buys quantity units of the service for the user. The debit is
// reserved atomically with the pending record before the provider call;
// any provider failure finalizes the record failed and returns the funds.
func (s *Service) Purchase(ctx context.Context, userID, serviceID uuid.UUID, quantity int) (*model.Transaction, error) {
	l := s.logger.With().
		Str("method", "Purchase").
		Str("user_id", userID.String()).
		Str("service_id", serviceID.String()).
		Logger()
	ctx = l.WithContext(ctx)

	if quantity < 1 {
		quantity = 1
	}

	svc, err := s.services.Read(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	client, err := s.registry.Resolve(svc.Provider)
	if err != nil {
		return nil, err
	}

	price := svc.Price.Mul(decimal.NewFromInt(int64(quantity)))
	sid := svc.ID

	tx, err := s.ledger.Open(ctx, &model.Transaction{
		UserID: userID,
		Amount: price.Neg(),
		Kind:   model.KindPurchase,
		ServiceDetails: &model.ServiceDetails{
			Provider:  svc.Provider,
			ServiceID: &sid,
		},
	})
	if err != nil {
		return nil, err
	}

	order, err := s.callPurchase(ctx, client, svc)
	if err != nil {
		l.Error().Err(err).Str("transaction_id", tx.ID.String()).Msg("Provider purchase failed, compensating")
		s.compensate(tx.ID)
		return nil, err
	}

	return s.settle(tx.ID, &model.ServiceDetails{
		Provider:  svc.Provider,
		ServiceID: &sid,
		OrderRef:  order.Ref,
		Response:  order.Raw,
	})
}

// Extend prolongs a completed purchase. The upstream order reference is
// recovered from the original record; the extension carries a back-reference
// instead of a new service.
func (s *Service) Extend(ctx context.Context, userID, txID uuid.UUID) (*model.Transaction, error) {
	l := s.logger.With().
		Str("method", "Extend").
		Str("user_id", userID.String()).
		Str("transaction_id", txID.String()).
		Logger()
	ctx = l.WithContext(ctx)

	orig, err := s.ledger.ReadForUser(ctx, txID, userID)
	if err != nil {
		return nil, err
	}
	if orig.Kind != model.KindPurchase || orig.Status != model.StatusCompleted ||
		orig.ServiceDetails == nil || orig.ServiceDetails.OrderRef == "" || orig.ServiceDetails.ServiceID == nil {
		return nil, apperr.ErrNotFound
	}

	svc, err := s.services.Read(ctx, *orig.ServiceDetails.ServiceID)
	if err != nil {
		return nil, err
	}

	client, err := s.registry.Resolve(orig.ServiceDetails.Provider)
	if err != nil {
		return nil, err
	}

	origID := orig.ID

	tx, err := s.ledger.Open(ctx, &model.Transaction{
		UserID: userID,
		Amount: svc.Price.Neg(),
		Kind:   model.KindExtension,
		ServiceDetails: &model.ServiceDetails{
			Provider:   orig.ServiceDetails.Provider,
			OriginalTx: &origID,
			OrderRef:   orig.ServiceDetails.OrderRef,
		},
	})
	if err != nil {
		return nil, err
	}

	order, err := s.callExtend(ctx, client, orig.ServiceDetails.OrderRef)
	if err != nil {
		l.Error().Err(err).Str("transaction_id", tx.ID.String()).Msg("Provider extend failed, compensating")
		s.compensate(tx.ID)
		return nil, err
	}

	orderRef := order.Ref
	if orderRef == "" {
		orderRef = orig.ServiceDetails.OrderRef
	}

	return s.settle(tx.ID, &model.ServiceDetails{
		Provider:   orig.ServiceDetails.Provider,
		OriginalTx: &origID,
		OrderRef:   orderRef,
		Response:   order.Raw,
	})
}

// Usage queries remaining traffic for a completed purchase or extension.
// Reports are cached briefly; a cache outage degrades to a direct call.
func (s *Service) Usage(ctx context.Context, userID, txID uuid.UUID) (*provider.UsageReport, error) {
	l := s.logger.With().
		Str("method", "Usage").
		Str("transaction_id", txID.String()).
		Logger()
	ctx = l.WithContext(ctx)

	tx, err := s.ledger.ReadForUser(ctx, txID, userID)
	if err != nil {
		return nil, err
	}
	if !tx.Kind.IsDebit() || tx.Status != model.StatusCompleted ||
		tx.ServiceDetails == nil || tx.ServiceDetails.OrderRef == "" {
		return nil, apperr.ErrNotFound
	}

	cacheKey := "usage:" + tx.ID.String()
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			report := &provider.UsageReport{}
			if err := json.Unmarshal(cached, report); err == nil {
				l.Debug().Msg("Usage cache hit")
				return report, nil
			}
		} else if err != redis.Nil {
			l.Debug().Err(err).Msg("Usage cache read failed")
		}
	}

	client, err := s.registry.Resolve(tx.ServiceDetails.Provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	report, err := client.Usage(callCtx, tx.ServiceDetails.OrderRef)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if b, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, cacheKey, b, usageCacheTTL).Err(); err != nil {
				l.Debug().Err(err).Msg("Usage cache write failed")
			}
		}
	}

	return report, nil
}

// LineResult is the outcome of one cart line during checkout. Lines fail
// independently: a declined line never rolls back lines already purchased.
type LineResult struct {
	ItemID      uuid.UUID          `json:"item_id"`
	ServiceID   uuid.UUID          `json:"service_id"`
	Quantity    int                `json:"quantity"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Checkout purchases every line of the user's cart sequentially. Each line
// is its own atomic purchase; purchased lines are removed from the cart and
// partial success is a reportable end state.
func (s *Service) Checkout(ctx context.Context, userID uuid.UUID) ([]LineResult, error) {
	l := s.logger.With().
		Str("method", "Checkout").
		Str("user_id", userID.String()).
		Logger()
	ctx = l.WithContext(ctx)

	items, err := s.cart.AllByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.ErrInvalidInput
	}

	results := make([]LineResult, 0, len(items))
	for _, item := range items {
		res := LineResult{
			ItemID:    item.ID,
			ServiceID: item.ServiceID,
			Quantity:  item.Quantity,
		}

		tx, err := s.Purchase(ctx, userID, item.ServiceID, item.Quantity)
		if err != nil {
			l.Debug().Err(err).Str("item_id", item.ID.String()).Msg("Cart line failed")
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		res.Transaction = tx
		if err := s.cart.Remove(ctx, userID, item.ID); err != nil {
			l.Error().Err(err).Str("item_id", item.ID.String()).Msg("Cart line cleanup failed")
		}
		results = append(results, res)
	}

	return results, nil
}

func (s *Service) callPurchase(ctx context.Context, client provider.Client, svc *model.Service) (*provider.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	return client.Purchase(callCtx, svc)
}

func (s *Service) callExtend(ctx context.Context, client provider.Client, orderRef string) (*provider.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	return client.Extend(callCtx, orderRef)
}

// settle finalizes a reservation as completed. The upstream order already
// exists at this point, so it runs on a fresh context: a caller disconnect
// after a successful provider call must not leave the record pending with
// the balance debited.
func (s *Service) settle(txID uuid.UUID, details *model.ServiceDetails) (*model.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.ledger.Finalize(ctx, txID, model.StatusCompleted, details)
}

// compensate finalizes a reservation as failed, crediting the funds back.
// Runs on a fresh context: a caller disconnect must not strand the debit.
func (s *Service) compensate(txID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.ledger.Finalize(ctx, txID, model.StatusFailed, nil); err != nil {
		s.logger.Error().Err(err).Str("transaction_id", txID.String()).Msg("Compensation failed")
	}
}
