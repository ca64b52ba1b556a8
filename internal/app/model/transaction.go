package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UserID    uuid.UUID
	// Amount is signed: positive for topups, negative for purchases and
	// extensions. Never zero. One exception to the sign rule: an admin
	// balance adjustment is written directly as a completed topup of the
	// signed delta, so lowering a balance produces a negative topup.
	// Open never accepts such a record; only the ledger's Adjust writes it.
	Amount decimal.Decimal
	Kind   TransactionKind
	Status TransactionStatus
	// ExternalRef correlates the record with the gateway payment that will
	// settle it. Unique when present.
	ExternalRef    string
	ServiceDetails *ServiceDetails
	// ProviderData keeps the raw gateway payment payload for topups.
	ProviderData json.RawMessage
}

// ServiceDetails describes what a purchase or extension bought upstream.
// OrderRef is the normalized upstream order identifier; adapters fold the
// upstream's own field name (order_id/orderId/order) into it before storage.
type ServiceDetails struct {
	Provider   ProviderID      `json:"provider"`
	ServiceID  *uuid.UUID      `json:"service_id,omitempty"`
	OriginalTx *uuid.UUID      `json:"original_tx,omitempty"`
	OrderRef   string          `json:"order_ref,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
}

type TransactionKind int

const (
	KindTopup TransactionKind = iota + 1
	KindPurchase
	KindExtension
)

func (k TransactionKind) String() string {
	switch k {
	case KindTopup:
		return "topup"
	case KindPurchase:
		return "purchase"
	case KindExtension:
		return "extension"
	}
	return "unknown"
}

// IsDebit reports whether the kind reserves funds at open time.
func (k TransactionKind) IsDebit() bool {
	return k == KindPurchase || k == KindExtension
}

func (k TransactionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

type TransactionStatus int

const (
	StatusPending TransactionStatus = iota + 1
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether no transition leaves the status.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s TransactionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalJSON implements the json.Marshaler interface.
func (t Transaction) MarshalJSON() ([]byte, error) {
	o := struct {
		ID             uuid.UUID         `json:"id"`
		CreatedAt      time.Time         `json:"created_at"`
		Amount         decimal.Decimal   `json:"amount"`
		Kind           TransactionKind   `json:"type"`
		Status         TransactionStatus `json:"status"`
		ExternalRef    string            `json:"external_ref,omitempty"`
		ServiceDetails *ServiceDetails   `json:"service_details,omitempty"`
	}{
		ID:             t.ID,
		CreatedAt:      t.CreatedAt,
		Amount:         t.Amount,
		Kind:           t.Kind,
		Status:         t.Status,
		ExternalRef:    t.ExternalRef,
		ServiceDetails: t.ServiceDetails,
	}

	return json.Marshal(o)
}
