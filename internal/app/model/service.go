package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is a purchasable offering resold from one provider. Price is
// captured into the Transaction at purchase time and never re-read later.
type Service struct {
	ID           uuid.UUID       `json:"id"`
	Provider     ProviderID      `json:"provider"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	ProviderData ProviderParams  `json:"provider_data"`
}
