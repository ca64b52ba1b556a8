package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"proxymart/internal/app/model"
)

const callTimeout = 15 * time.Second

// caller is the shared HTTP plumbing behind every adapter: JSON round trip,
// per-provider circuit breaker, and the failure split between unavailable
// (transport, timeout, open breaker) and rejected (upstream error response).
type caller struct {
	provider model.ProviderID
	baseURL  string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   zerolog.Logger
}

func newCaller(id model.ProviderID, baseURL string, l zerolog.Logger) *caller {
	return &caller{
		provider: id,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: callTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: string(id),
		}),
		logger: l.With().Str("provider", string(id)).Logger(),
	}
}

func (c *caller) get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req = req.WithContext(ctx)
	req.Header.Add("Accept", "application/json")

	return c.do(req)
}

func (c *caller) post(ctx context.Context, endpoint string, body interface{}) (json.RawMessage, error) {
	rawJSON, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "json encode")
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+endpoint, bytes.NewReader(rawJSON))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req = req.WithContext(ctx)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")

	return c.do(req)
}

type callResult struct {
	statusCode int
	body       []byte
}

func (c *caller) do(req *http.Request) (json.RawMessage, error) {
	l := c.logger.With().
		Str("http_method", req.Method).
		Str("url", req.URL.String()).
		Logger()
	l.Debug().Msg("Provider request")

	// Upstream error responses are returned from Execute as values, not
	// errors: only transport faults may trip the breaker.
	v, err := c.breaker.Execute(func() (interface{}, error) {
		res, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := ioutil.ReadAll(res.Body)
		_ = res.Body.Close()
		if err != nil {
			return nil, err
		}
		return callResult{statusCode: res.StatusCode, body: body}, nil
	})
	if err != nil {
		l.Error().Err(err).Msg("Provider call failed")
		return nil, errors.Wrapf(ErrUnavailable, "%s: %v", c.provider, err)
	}

	res := v.(callResult)
	if res.statusCode >= 400 {
		l.Error().
			Int("http_status", res.statusCode).
			Str("http_body", string(res.body)).
			Msg("Provider responded with error")
		return nil, &RejectedError{
			Provider:   c.provider,
			StatusCode: res.statusCode,
			Reason:     rejectionReason(res.body),
		}
	}

	return res.body, nil
}

// rejectionReason pulls a human-readable denial out of an upstream error
// body, falling back to the body itself.
func rejectionReason(body []byte) string {
	var v struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &v); err == nil {
		if v.Message != "" {
			return v.Message
		}
		if v.Error != "" {
			return v.Error
		}
	}

	return strings.TrimSpace(string(body))
}
