package app

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"proxymart/internal/app/config"
	"proxymart/internal/app/logger"
	"proxymart/internal/app/model"
	"proxymart/internal/app/provider"
	"proxymart/internal/app/service/purchase"
	"proxymart/internal/app/service/reconciler"
	"proxymart/internal/app/service/settlement"
	"proxymart/internal/app/session"
	"proxymart/internal/app/storage"
	"proxymart/internal/app/storage/postgres"
	"proxymart/pkg/cryptomus"
)

type App struct {
	config config.Config
	logger logger.Logger

	users    storage.UserRepository
	services storage.ServiceRepository
	cart     storage.CartRepository
	ledger   storage.LedgerRepository

	session    session.Manager
	registry   *provider.Registry
	gateway    *cryptomus.Service
	purchases  *purchase.Service
	settlement *settlement.Service
	reconciler *reconciler.Service

	stopCh chan struct{}
}

func New(cfg config.Config, l logger.Logger, e embed.FS) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := applyMigrations(e, db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	users, err := postgres.NewUserRepository(db)
	if err != nil {
		return nil, fmt.Errorf("user repository init: %w", err)
	}

	services, err := postgres.NewServiceRepository(db)
	if err != nil {
		return nil, fmt.Errorf("service repository init: %w", err)
	}

	cart, err := postgres.NewCartRepository(db)
	if err != nil {
		return nil, fmt.Errorf("cart repository init: %w", err)
	}

	ledger, err := postgres.NewLedgerRepository(db)
	if err != nil {
		return nil, fmt.Errorf("ledger repository init: %w", err)
	}

	gateway, err := cryptomus.NewService(
		cfg.Gateway.APIURL,
		cfg.Gateway.MerchantID,
		cfg.Gateway.APIKey,
		cryptomus.WithLogger(l.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("gateway init: %w", err)
	}

	registry := provider.NewRegistry(provider.Credentials{
		model.ProviderSevenProxy:  cfg.Providers.SevenProxyAPIKey,
		model.ProviderProxySeller: cfg.Providers.ProxySellerAPIKey,
		model.ProviderLightning:   cfg.Providers.LightningAPIKey,
		model.ProviderGoProxy:     cfg.Providers.GoProxyAPIKey,
	}, provider.WithLogger(l.Logger))

	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	purchases := purchase.New(services, cart, ledger, registry,
		purchase.WithUsageCache(cache),
		purchase.WithLogger(l),
	)

	settle := settlement.New(ledger, cfg.Gateway.APIKey, settlement.WithLogger(l))

	rec, err := reconciler.New(ledger, gateway, cfg.Gateway.PaymentLifetime, reconciler.WithLogger(l))
	if err != nil {
		return nil, fmt.Errorf("reconciler init: %w", err)
	}

	a := &App{
		config:     cfg,
		logger:     l,
		stopCh:     make(chan struct{}),
		users:      users,
		services:   services,
		cart:       cart,
		ledger:     ledger,
		session:    session.NewMemory(cfg.SecretKey, users),
		registry:   registry,
		gateway:    gateway,
		purchases:  purchases,
		settlement: settle,
		reconciler: rec,
	}

	go func() {
		<-a.stopCh
		a.logger.Info().Msg("Shutting down application")
	}()

	return a, nil
}

func (a *App) Stop() {
	a.reconciler.Stop()
	close(a.stopCh)
}

func (a *App) minTopup() decimal.Decimal {
	v, err := decimal.NewFromString(a.config.Gateway.MinTopup)
	if err != nil {
		return decimal.NewFromInt(5)
	}
	return v
}
