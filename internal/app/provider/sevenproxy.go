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

const sevenProxyBaseURL = "https://api.711.so"

// sevenProxyClient speaks the 711 API: GET endpoints with query parameters,
// orders identified by an "orderId" field.
type sevenProxyClient struct {
	apiKey string
	call   *caller
}

var _ Client = (*sevenProxyClient)(nil)

func newSevenProxyClient(apiKey, baseURL string, l zerolog.Logger) *sevenProxyClient {
	return &sevenProxyClient{
		apiKey: apiKey,
		call:   newCaller(model.ProviderSevenProxy, baseURL, l),
	}
}

func (p *sevenProxyClient) Purchase(ctx context.Context, svc *model.Service) (*Order, error) {
	q := url.Values{}
	q.Set("apiKey", p.apiKey)
	q.Set("country", svc.ProviderData.Country)
	q.Set("package", svc.ProviderData.PackageType)

	raw, err := p.call.get(ctx, "/order/buy", q)
	if err != nil {
		return nil, err
	}

	return p.order(raw)
}

func (p *sevenProxyClient) Extend(ctx context.Context, orderRef string) (*Order, error) {
	q := url.Values{}
	q.Set("apiKey", p.apiKey)
	q.Set("order", orderRef)

	raw, err := p.call.get(ctx, "/order/extend", q)
	if err != nil {
		return nil, err
	}

	return p.order(raw)
}

func (p *sevenProxyClient) Usage(ctx context.Context, orderRef string) (*UsageReport, error) {
	q := url.Values{}
	q.Set("apiKey", p.apiKey)
	q.Set("order", orderRef)

	raw, err := p.call.get(ctx, "/order/traffic", q)
	if err != nil {
		return nil, err
	}

	var v struct {
		Remaining decimal.NullDecimal `json:"trafficRemaining"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "711 traffic decode")
	}

	return &UsageReport{Remaining: v.Remaining, Raw: raw}, nil
}

func (p *sevenProxyClient) order(raw json.RawMessage) (*Order, error) {
	var v struct {
		OrderID ref `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "711 order decode")
	}

	return &Order{Ref: string(v.OrderID), Raw: raw}, nil
}
