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

const goProxyBaseURL = "https://api.goproxy.com"

// goProxyClient speaks the GoProxy API: location-based purchases over GET,
// extensions over POST, orders identified by an "order" field.
type goProxyClient struct {
	apiKey string
	call   *caller
}

var _ Client = (*goProxyClient)(nil)

func newGoProxyClient(apiKey, baseURL string, l zerolog.Logger) *goProxyClient {
	return &goProxyClient{
		apiKey: apiKey,
		call:   newCaller(model.ProviderGoProxy, baseURL, l),
	}
}

func (p *goProxyClient) Purchase(ctx context.Context, svc *model.Service) (*Order, error) {
	location := svc.ProviderData.Location
	if location == "" {
		location = "US"
	}

	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("location", location)

	raw, err := p.call.get(ctx, "/buy", q)
	if err != nil {
		return nil, err
	}

	return p.order(raw)
}

func (p *goProxyClient) Extend(ctx context.Context, orderRef string) (*Order, error) {
	raw, err := p.call.post(ctx, "/extend", struct {
		Key   string `json:"key"`
		Order string `json:"order"`
	}{
		Key:   p.apiKey,
		Order: orderRef,
	})
	if err != nil {
		return nil, err
	}

	return p.order(raw)
}

func (p *goProxyClient) Usage(ctx context.Context, orderRef string) (*UsageReport, error) {
	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("order", orderRef)

	raw, err := p.call.get(ctx, "/traffic", q)
	if err != nil {
		return nil, err
	}

	var v struct {
		Remaining decimal.NullDecimal `json:"traffic"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "goproxy traffic decode")
	}

	return &UsageReport{Remaining: v.Remaining, Raw: raw}, nil
}

func (p *goProxyClient) order(raw json.RawMessage) (*Order, error) {
	var v struct {
		Order ref `json:"order"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "goproxy order decode")
	}

	return &Order{Ref: string(v.Order), Raw: raw}, nil
}
