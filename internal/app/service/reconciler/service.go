package reconciler

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"

	"proxymart/internal/app/logger"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
	"proxymart/pkg/cryptomus"
)

// Service sweeps topups the webhook never settled: pending records older
// than the gateway payment lifetime are checked against the gateway and
// finalized through the same idempotent ledger path the webhook uses, so a
// late webhook and a sweep can race harmlessly.
type Service struct {
	logger  logger.Logger
	ledger  storage.LedgerRepository
	gateway *cryptomus.Service

	jobs   chan Job
	stopCh chan struct{}

	sweepInterval time.Duration
	pendingAge    time.Duration
}

type Job func() error

func New(ledger storage.LedgerRepository, gateway *cryptomus.Service, pendingAge time.Duration, opts ...Option) (*Service, error) {
	s := &Service{
		logger:        logger.Global().WithComponent("TopupReconciler.Service"),
		ledger:        ledger,
		gateway:       gateway,
		jobs:          make(chan Job),
		stopCh:        make(chan struct{}),
		sweepInterval: time.Minute,
		pendingAge:    pendingAge,
	}

	for _, o := range opts {
		o(s)
	}

	s.Start(runtime.GOMAXPROCS(0))

	return s, nil
}

type Option func(*Service)

func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		s.sweepInterval = d
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func (s *Service) Start(numWorkers int) {
	const retryDelay = time.Second

	for i := 0; i < numWorkers; i++ {
		go func(workerID int, l logger.Logger, jobs chan Job, stop chan struct{}) {
			for {
				select {
				case <-stop:
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					id := uuid.New()
					ll := l.With().Int("worker_id", workerID).Str("job_id", id.String()).Logger()
					ll.Debug().Msg("Running job")
					if err := job(); err != nil {
						ll.Error().Err(err).Msg("Job failed")
						go func() {
							ll.Debug().Msg("Retrying job")
							time.Sleep(retryDelay)
							select {
							case jobs <- job:
							case <-stop:
							}
						}()
						continue
					}
					ll.Debug().Msg("Job done")
				}
			}
		}(i, s.logger, s.jobs, s.stopCh)
	}

	go func(l logger.Logger, sweepInterval time.Duration) {
		t := time.NewTimer(sweepInterval)
		for {
			select {
			case <-s.stopCh:
				t.Stop()
				return
			case <-t.C:
				l.Debug().Msg("Sweeping stale pending topups")
				s.sweep()
				t.Reset(sweepInterval)
			}
		}
	}(s.logger, s.sweepInterval)
}

func (s *Service) Stop() {
	s.logger.Debug().Msg("Service shutdown")
	close(s.stopCh)
}

func (s *Service) Run(job Job) {
	select {
	case s.jobs <- job:
	case <-s.stopCh:
	}
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stale, err := s.ledger.ListStalePending(ctx, model.KindTopup, s.pendingAge)
	if err != nil {
		s.logger.Error().Err(err).Msg("Stale pending lookup failed")
		return
	}

	for _, tx := range stale {
		if tx.ExternalRef == "" {
			continue
		}
		s.Run(s.ReconcileTopup(tx.ID, tx.ExternalRef))
	}
}

// ReconcileTopup queries the gateway for the payment's current status and
// finalizes the record when the gateway reached a terminal state. Still-open
// payments are left pending for the next sweep.
func (s *Service) ReconcileTopup(id uuid.UUID, externalRef string) Job {
	const timeout = 30 * time.Second

	return func() error {
		l := s.logger.With().
			Str("transaction_id", id.String()).
			Str("payment_uuid", externalRef).
			Logger()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctx = l.WithContext(ctx)

		in := &cryptomus.PaymentInfoRequest{UUID: externalRef}
		out := &cryptomus.PaymentInfoResponse{}

		if err := s.gateway.PaymentInfo(ctx, in, out); err != nil {
			l.Error().Err(err).Msg("Payment info fetch failed")
			return err
		}

		if !cryptomus.IsTerminal(out.Result.Status) {
			l.Debug().Str("gateway_status", out.Result.Status).Msg("Payment still open")
			return nil
		}

		outcome := model.StatusFailed
		if cryptomus.IsPaid(out.Result.Status) {
			outcome = model.StatusCompleted
		}

		res, err := s.ledger.Finalize(ctx, id, outcome, nil)
		if err != nil {
			l.Error().Err(err).Msg("Finalize failed")
			return err
		}

		l.Info().
			Str("gateway_status", out.Result.Status).
			Str("status", res.Status.String()).
			Msg("Stale topup reconciled")

		return nil
	}
}
