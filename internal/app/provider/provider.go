//go:generate mockgen -source=./provider.go -destination=./mock/provider.go -package=providermock
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"proxymart/internal/app/model"
)

// Client is the uniform capability set every upstream resale API is
// normalized into. Adding a provider means adding one implementation and
// registering it; callers never branch on provider identity.
type Client interface {
	// Purchase issues a new upstream order for the service.
	Purchase(ctx context.Context, svc *model.Service) (*Order, error)
	// Extend prolongs an existing upstream order.
	Extend(ctx context.Context, orderRef string) (*Order, error)
	// Usage reports remaining traffic for an upstream order.
	Usage(ctx context.Context, orderRef string) (*UsageReport, error)
}

// Order is a normalized upstream order. Ref carries the upstream's own
// identifier regardless of which field name it arrived under.
type Order struct {
	Ref string
	Raw json.RawMessage
}

// UsageReport is a normalized traffic/quota answer. Remaining is Null when
// the upstream did not report a number.
type UsageReport struct {
	Remaining decimal.NullDecimal
	Raw       json.RawMessage
}

// ErrUnavailable marks network faults, timeouts and open circuit breakers.
// Retryable by caller policy; the registry never retries internally.
var ErrUnavailable = errors.New("provider unavailable")

// RejectedError is a well-formed upstream denial. Not retryable; the caller
// must not keep the account debited.
type RejectedError struct {
	Provider   model.ProviderID
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider %s rejected request (%d): %s", e.Provider, e.StatusCode, e.Reason)
}

// ref accepts both string and numeric upstream identifiers.
type ref string

func (r *ref) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = ref(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order reference decode: %w", err)
	}
	*r = ref(n.String())

	return nil
}
