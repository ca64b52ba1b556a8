package provider

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"proxymart/internal/app/model"
)

const proxySellerBaseURL = "https://api.proxyseller.com"

// proxySellerClient speaks the ProxySeller v1 API: JSON POST bodies with
// snake_case parameters, orders identified by an "order_id" field.
type proxySellerClient struct {
	apiKey string
	call   *caller
}

var _ Client = (*proxySellerClient)(nil)

func newProxySellerClient(apiKey, baseURL string, l zerolog.Logger) *proxySellerClient {
	return &proxySellerClient{
		apiKey: apiKey,
		call:   newCaller(model.ProviderProxySeller, baseURL, l),
	}
}

func (p *proxySellerClient) Purchase(ctx context.Context, svc *model.Service) (*Order, error) {
	proxyType := svc.ProviderData.Type
	if proxyType == "" {
		proxyType = "http"
	}
	country := svc.ProviderData.Country
	if country == "" {
		country = "US"
	}

	raw, err := p.call.post(ctx, "/v1/order", struct {
		APIKey   string `json:"api_key"`
		Type     string `json:"type"`
		Country  string `json:"country"`
		Quantity int    `json:"quantity"`
	}{
		APIKey:   p.apiKey,
		Type:     proxyType,
		Country:  country,
		Quantity: 1,
	})
	if err != nil {
		return nil, err
	}

	return p.order(raw)
}

func (p *proxySellerClient) Extend(ctx context.Context, orderRef string) (*Order, error) {
	raw, err := p.call.post(ctx, "/v1/order/extend", struct {
		APIKey  string `json:"api_key"`
		OrderID string `json:"order_id"`
	}{
		APIKey:  p.apiKey,
		OrderID: orderRef,
	})
	if err != nil {
		return nil, err
	}

	return p.order(raw)
}

func (p *proxySellerClient) Usage(ctx context.Context, orderRef string) (*UsageReport, error) {
	q := url.Values{}
	q.Set("api_key", p.apiKey)
	q.Set("order_id", orderRef)

	raw, err := p.call.get(ctx, "/v1/order/status", q)
	if err != nil {
		return nil, err
	}

	var v struct {
		Remaining decimal.NullDecimal `json:"traffic"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "proxyseller status decode")
	}

	return &UsageReport{Remaining: v.Remaining, Raw: raw}, nil
}

func (p *proxySellerClient) order(raw json.RawMessage) (*Order, error) {
	var v struct {
		OrderID ref `json:"order_id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "proxyseller order decode")
	}

	return &Order{Ref: string(v.OrderID), Raw: raw}, nil
}
