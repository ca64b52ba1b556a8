package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
)

// storage.CartRepository interface implementation
var _ storage.CartRepository = (*CartRepository)(nil)

type CartRepository struct {
	db *sql.DB
}

func (r *CartRepository) LoggerComponent() string {
	return "CartRepository"
}

func NewCartRepository(db *sql.DB) (*CartRepository, error) {
	s := &CartRepository{
		db: db,
	}
	return s, nil
}

// AddItem implementation of interface storage.CartRepository
func (r *CartRepository) AddItem(ctx context.Context, userID, serviceID uuid.UUID, quantity int) (*model.CartItem, error) {
	if quantity < 1 {
		return nil, apperr.ErrInvalidInput
	}

	const SQL = `
		INSERT INTO cart_items (user_id, service_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, service_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, created_at, quantity
`
	m := &model.CartItem{
		UserID:    userID,
		ServiceID: serviceID,
	}

	err := r.db.QueryRowContext(ctx, SQL, userID, serviceID, quantity).Scan(&m.ID, &m.CreatedAt, &m.Quantity)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	return m, nil
}

// AllByUserID implementation of interface storage.CartRepository
func (r *CartRepository) AllByUserID(ctx context.Context, userID uuid.UUID) ([]*model.CartItem, error) {
	const SQL = `
		SELECT c.id, c.created_at, c.service_id, c.quantity,
		       s.id, s.provider, s.name, s.description, s.price, s.provider_data
		FROM cart_items c
		JOIN services s ON s.id = c.service_id
		WHERE c.user_id=$1
		ORDER BY c.created_at
`
	res := make([]*model.CartItem, 0)

	rows, err := r.db.QueryContext(ctx, SQL, userID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &model.CartItem{UserID: userID, Service: &model.Service{}}
		var params []byte
		err := rows.Scan(
			&m.ID, &m.CreatedAt, &m.ServiceID, &m.Quantity,
			&m.Service.ID, &m.Service.Provider, &m.Service.Name, &m.Service.Description, &m.Service.Price, &params,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &m.Service.ProviderData); err != nil {
				return nil, fmt.Errorf("provider data decode: %w", err)
			}
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}

// Remove implementation of interface storage.CartRepository
func (r *CartRepository) Remove(ctx context.Context, userID, itemID uuid.UUID) error {
	const SQL = `DELETE FROM cart_items WHERE id=$1 AND user_id=$2`

	res, err := r.db.ExecContext(ctx, SQL, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}

	return nil
}
