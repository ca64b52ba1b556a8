package model

import (
	"time"

	"github.com/google/uuid"
)

type CartItem struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uuid.UUID `json:"-"`
	ServiceID uuid.UUID `json:"service_id"`
	Quantity  int       `json:"quantity"`
	// Service is populated on reads that join the catalog.
	Service *Service `json:"service,omitempty"`
}
