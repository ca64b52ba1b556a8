package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
)

// storage.ServiceRepository interface implementation
var _ storage.ServiceRepository = (*ServiceRepository)(nil)

type ServiceRepository struct {
	db *sql.DB
}

func (r *ServiceRepository) LoggerComponent() string {
	return "ServiceRepository"
}

func NewServiceRepository(db *sql.DB) (*ServiceRepository, error) {
	s := &ServiceRepository{
		db: db,
	}
	return s, nil
}

// Create implementation of interface storage.ServiceRepository
func (r *ServiceRepository) Create(ctx context.Context, m *model.Service) (*model.Service, error) {
	if m.Provider == "" || m.Name == "" || m.Price.Sign() <= 0 {
		return nil, apperr.ErrInvalidInput
	}

	params, err := json.Marshal(m.ProviderData)
	if err != nil {
		return nil, fmt.Errorf("provider data encode: %w", err)
	}

	const SQL = `
		INSERT INTO services (provider, name, description, price, provider_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
`
	err = r.db.QueryRowContext(ctx, SQL, string(m.Provider), m.Name, m.Description, m.Price, params).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	return m, nil
}

// Read implementation of interface storage.ServiceRepository
func (r *ServiceRepository) Read(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	const SQL = `
		SELECT id, provider, name, description, price, provider_data
		FROM services
		WHERE id=$1
`
	m, err := scanService(r.db.QueryRowContext(ctx, SQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}

	return m, nil
}

// All implementation of interface storage.ServiceRepository
func (r *ServiceRepository) All(ctx context.Context) ([]*model.Service, error) {
	const SQL = `
		SELECT id, provider, name, description, price, provider_data
		FROM services
		ORDER BY name
`
	res := make([]*model.Service, 0)

	rows, err := r.db.QueryContext(ctx, SQL)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}

func scanService(row rowScanner) (*model.Service, error) {
	m := &model.Service{}
	var params []byte

	if err := row.Scan(&m.ID, &m.Provider, &m.Name, &m.Description, &m.Price, &params); err != nil {
		return nil, err
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &m.ProviderData); err != nil {
			return nil, fmt.Errorf("provider data decode: %w", err)
		}
	}

	return m, nil
}
