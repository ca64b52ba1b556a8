package cryptomus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service is the payment gateway client. Every request body is signed with
// the merchant API key; webhooks coming back are verified with the same key.
type Service struct {
	apiURL     string
	merchantID string
	apiKey     []byte
	httpClient *http.Client
	logger     zerolog.Logger
}

func (s *Service) LoggerComponent() string {
	return "Cryptomus.Service"
}

func NewService(apiURL, merchantID, apiKey string, opts ...ServiceOption) (*Service, error) {
	if merchantID == "" || apiKey == "" {
		return nil, fmt.Errorf("cryptomus: merchant id and api key are required")
	}

	c := &Service{
		apiURL:     apiURL,
		merchantID: merchantID,
		apiKey:     []byte(apiKey),
		httpClient: http.DefaultClient,
		logger:     log.Logger,
	}

	for _, o := range opts {
		o(c)
	}

	c.logger = c.logger.With().Str("component", c.LoggerComponent()).Logger()

	return c, nil
}

type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func WithHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		s.httpClient = c
	}
}

// CreatePayment registers a payment intent and returns the hosted payment
// URL plus the gateway uuid used later for webhook correlation.
func (s *Service) CreatePayment(ctx context.Context, in *CreatePaymentRequest, out *CreatePaymentResponse) error {
	l := s.logger.With().
		Str("method", "CreatePayment").
		Str("order_id", in.OrderID).
		Logger()
	ctx = l.WithContext(ctx)

	in.Merchant = s.merchantID

	if err := s.genericCall(ctx, "/v1/payment", in, out); err != nil {
		return err
	}

	l.Debug().
		Str("payment_uuid", out.Result.UUID).
		Str("payment_status", out.Result.Status).
		Msg("CreatePayment success")

	return nil
}

// PaymentInfo fetches the current gateway-side status of a payment.
func (s *Service) PaymentInfo(ctx context.Context, in *PaymentInfoRequest, out *PaymentInfoResponse) error {
	l := s.logger.With().
		Str("method", "PaymentInfo").
		Str("payment_uuid", in.UUID).
		Logger()
	ctx = l.WithContext(ctx)

	if err := s.genericCall(ctx, "/v1/payment/info", in, out); err != nil {
		return err
	}

	l.Debug().
		Str("payment_status", out.Result.Status).
		Msg("PaymentInfo success")

	return nil
}

type RemoteError struct {
	ResponseBody string
	StatusCode   int
}

func NewRemoteError(responseBody string, statusCode int) *RemoteError {
	return &RemoteError{ResponseBody: responseBody, StatusCode: statusCode}
}

func (e *RemoteError) Error() string {
	return e.ResponseBody
}

func (s *Service) genericCall(ctx context.Context, endpoint string, in interface{}, out interface{}) error {
	l := zerolog.Ctx(ctx).With().Str("endpoint", endpoint).Logger()
	ctx = l.WithContext(ctx)

	res, err := s.request(ctx, endpoint, in)
	if err != nil {
		l.Error().Err(err).
			Msg("Gateway request failed")
		return fmt.Errorf("request: %w", err)
	}

	if res.StatusCode >= 400 {
		resBody := readString(res.Body)
		l.Error().
			Str("http_body", resBody).
			Msg("Gateway responded with error")
		return NewRemoteError(resBody, res.StatusCode)
	}

	if err := readJSON(res.Body, out); err != nil {
		return fmt.Errorf("body read: %w", err)
	}

	return nil
}

func (s *Service) request(ctx context.Context, endpoint string, bodyParams interface{}) (*http.Response, error) {
	fullURL := s.apiURL + endpoint
	l := zerolog.Ctx(ctx).With().
		Str("url", fullURL).
		Logger()
	l.Debug().Msg("HTTP request")

	rawJSON, err := json.Marshal(bodyParams)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, fullURL, bytes.NewReader(rawJSON))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req = req.WithContext(ctx)

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Merchant", s.merchantID)
	req.Header.Add("Sign", Sign(rawJSON, s.apiKey))

	res, err := s.httpClient.Do(req)
	if err != nil {
		l.Error().Err(err).
			Msg("Call failed")
		return nil, fmt.Errorf("do request: %w", err)
	}

	return res, nil
}
