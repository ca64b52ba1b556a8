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

const lightningBaseURL = "https://api.lightning.com"

// lightningClient speaks the Lightning API: camelCase JSON POST bodies,
// plan-based purchases, orders identified by an "orderId" field.
type lightningClient struct {
	apiKey string
	call   *caller
}

var _ Client = (*lightningClient)(nil)

func newLightningClient(apiKey, baseURL string, l zerolog.Logger) *lightningClient {
	return &lightningClient{
		apiKey: apiKey,
		call:   newCaller(model.ProviderLightning, baseURL, l),
	}
}

func (p *lightningClient) Purchase(ctx context.Context, svc *model.Service) (*Order, error) {
	plan := svc.ProviderData.Plan
	if plan == "" {
		plan = "basic"
	}

	raw, err := p.call.post(ctx, "/order", struct {
		APIKey string `json:"apiKey"`
		Plan   string `json:"plan"`
	}{
		APIKey: p.apiKey,
		Plan:   plan,
	})
	if err != nil {
		return nil, err
	}

	return p.order(raw)
}

func (p *lightningClient) Extend(ctx context.Context, orderRef string) (*Order, error) {
	raw, err := p.call.post(ctx, "/order/extend", struct {
		APIKey  string `json:"apiKey"`
		OrderID string `json:"orderId"`
	}{
		APIKey:  p.apiKey,
		OrderID: orderRef,
	})
	if err != nil {
		return nil, err
	}

	return p.order(raw)
}

func (p *lightningClient) Usage(ctx context.Context, orderRef string) (*UsageReport, error) {
	q := url.Values{}
	q.Set("apiKey", p.apiKey)
	q.Set("orderId", orderRef)

	raw, err := p.call.get(ctx, "/order/traffic", q)
	if err != nil {
		return nil, err
	}

	var v struct {
		Remaining decimal.NullDecimal `json:"traffic"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "lightning traffic decode")
	}

	return &UsageReport{Remaining: v.Remaining, Raw: raw}, nil
}

func (p *lightningClient) order(raw json.RawMessage) (*Order, error) {
	var v struct {
		OrderID ref `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "lightning order decode")
	}

	return &Order{Ref: string(v.OrderID), Raw: raw}, nil
}
