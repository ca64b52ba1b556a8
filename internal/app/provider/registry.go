package provider

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/model"
)

// Credentials maps a provider to its API key. Keys are injected here at
// construction; adapters never read ambient configuration.
type Credentials map[model.ProviderID]string

// Registry resolves a provider identifier to its Client. Built once at
// startup; only providers with configured credentials are registered.
type Registry struct {
	clients map[model.ProviderID]Client
}

type registryConfig struct {
	logger   zerolog.Logger
	baseURLs map[model.ProviderID]string
}

type RegistryOption func(*registryConfig)

func WithLogger(l zerolog.Logger) RegistryOption {
	return func(c *registryConfig) {
		c.logger = l
	}
}

// WithBaseURL overrides one provider's API endpoint. Used by tests.
func WithBaseURL(id model.ProviderID, baseURL string) RegistryOption {
	return func(c *registryConfig) {
		c.baseURLs[id] = baseURL
	}
}

func NewRegistry(creds Credentials, opts ...RegistryOption) *Registry {
	cfg := &registryConfig{
		logger: log.Logger,
		baseURLs: map[model.ProviderID]string{
			model.ProviderSevenProxy:  sevenProxyBaseURL,
			model.ProviderProxySeller: proxySellerBaseURL,
			model.ProviderLightning:   lightningBaseURL,
			model.ProviderGoProxy:     goProxyBaseURL,
		},
	}
	for _, o := range opts {
		o(cfg)
	}

	r := &Registry{
		clients: make(map[model.ProviderID]Client, len(creds)),
	}

	for id, key := range creds {
		if key == "" {
			continue
		}
		switch id {
		case model.ProviderSevenProxy:
			r.clients[id] = newSevenProxyClient(key, cfg.baseURLs[id], cfg.logger)
		case model.ProviderProxySeller:
			r.clients[id] = newProxySellerClient(key, cfg.baseURLs[id], cfg.logger)
		case model.ProviderLightning:
			r.clients[id] = newLightningClient(key, cfg.baseURLs[id], cfg.logger)
		case model.ProviderGoProxy:
			r.clients[id] = newGoProxyClient(key, cfg.baseURLs[id], cfg.logger)
		default:
			cfg.logger.Warn().Str("provider", string(id)).Msg("Unknown provider in credentials, skipping")
		}
	}

	return r
}

// Resolve returns the Client registered for the provider.
func (r *Registry) Resolve(id model.ProviderID) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, apperr.ErrProviderNotSupported
	}

	return c, nil
}

// Register adds or replaces a client. Used by tests.
func (r *Registry) Register(id model.ProviderID, c Client) {
	r.clients[id] = c
}
