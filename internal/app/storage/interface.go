package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"proxymart/internal/app/model"
)

type UserRepository interface {
	// Create a new model.User
	Create(ctx context.Context, m *model.User) (*model.User, error)
	// ReadByNameAndPassword instance of model.User
	ReadByNameAndPassword(ctx context.Context, name string, password string) (*model.User, error)
	// Read instance of model.User
	Read(ctx context.Context, id uuid.UUID) (*model.User, error)
	// All users, admin listing
	All(ctx context.Context) ([]*model.User, error)
}

type ServiceRepository interface {
	// Create a new catalog model.Service
	Create(ctx context.Context, m *model.Service) (*model.Service, error)
	// Read instance of model.Service
	Read(ctx context.Context, id uuid.UUID) (*model.Service, error)
	// All catalog services
	All(ctx context.Context) ([]*model.Service, error)
}

type CartRepository interface {
	// AddItem puts a service into the user's cart; adding the same service
	// again increments its quantity.
	AddItem(ctx context.Context, userID, serviceID uuid.UUID, quantity int) (*model.CartItem, error)
	// AllByUserID returns the user's cart lines with services joined in.
	AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.CartItem, error)
	// Remove one cart line owned by the user.
	Remove(ctx context.Context, userID, itemID uuid.UUID) error
}

// LedgerRepository owns Transaction records and the balance-mutation
// protocol. Balances are never written outside these operations.
type LedgerRepository interface {
	// Open creates a pending record. Purchase and extension kinds reserve
	// funds: the balance is debited in the same database transaction that
	// inserts the record, conditional on sufficient funds.
	Open(ctx context.Context, m *model.Transaction) (*model.Transaction, error)
	// Finalize moves a pending record to completed or failed exactly once.
	// A completed topup credits the balance; a failed purchase/extension
	// credits the reservation back. Finalizing an already-terminal record
	// is a no-op returning the existing state. Non-nil details replace the
	// stored service details on success.
	Finalize(ctx context.Context, id uuid.UUID, outcome model.TransactionStatus, details *model.ServiceDetails) (*model.Transaction, error)
	// Cancel refunds a completed purchase or extension and marks it
	// cancelled. Any other source state fails with ErrInvalidTransition.
	Cancel(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
	// FindByExternalRef matches a gateway correlation key to its record.
	FindByExternalRef(ctx context.Context, ref string) (*model.Transaction, error)
	// Read instance of model.Transaction
	Read(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	// ReadForUser reads a record owned by the user.
	ReadForUser(ctx context.Context, id, userID uuid.UUID) (*model.Transaction, error)
	// AllByUserID returns the user's records, newest first.
	AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error)
	// All records, admin listing
	All(ctx context.Context) ([]*model.Transaction, error)
	// ListStalePending returns pending records of the kind older than age.
	ListStalePending(ctx context.Context, kind model.TransactionKind, age time.Duration) ([]*model.Transaction, error)
	// GetTopupSum for user over completed topups
	GetTopupSum(ctx context.Context, userID uuid.UUID) (*decimal.Decimal, error)
	// GetSpentSum for user over completed purchases and extensions
	GetSpentSum(ctx context.Context, userID uuid.UUID) (*decimal.Decimal, error)
	// Adjust sets the user's balance to target through a completed topup of
	// the difference, keeping the ledger the only balance writer.
	Adjust(ctx context.Context, userID uuid.UUID, target decimal.Decimal) (*model.Transaction, error)
}
