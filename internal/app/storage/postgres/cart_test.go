package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxymart/internal/app/apperr"
)

func newCartMock(t *testing.T) (*CartRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r, err := NewCartRepository(db)
	require.NoError(t, err)

	return r, mock
}

func TestCartAddItemUpserts(t *testing.T) {
	r, mock := newCartMock(t)
	userID, serviceID, itemID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`INSERT INTO cart_items \(user_id, service_id, quantity\)`).
		WithArgs(userID, serviceID, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "quantity"}).
			AddRow(itemID.String(), time.Now(), 5)) // 3 already in the cart

	item, err := r.AddItem(context.Background(), userID, serviceID, 2)
	require.NoError(t, err)
	assert.Equal(t, itemID, item.ID)
	assert.Equal(t, 5, item.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartAddItemRejectsBadQuantity(t *testing.T) {
	r, _ := newCartMock(t)

	_, err := r.AddItem(context.Background(), uuid.New(), uuid.New(), 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCartRemoveMissingItem(t *testing.T) {
	r, mock := newCartMock(t)
	userID, itemID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM cart_items WHERE id=\$1 AND user_id=\$2`).
		WithArgs(itemID, userID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.Remove(context.Background(), userID, itemID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartAllByUserIDJoinsServices(t *testing.T) {
	r, mock := newCartMock(t)
	userID, serviceID, itemID := uuid.New(), uuid.New(), uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "created_at", "service_id", "quantity",
		"s_id", "provider", "name", "description", "price", "provider_data",
	}).AddRow(
		itemID.String(), time.Now(), serviceID.String(), 1,
		serviceID.String(), "711", "Residential US", "", "7.50", []byte(`{"country":"US"}`),
	)

	mock.ExpectQuery(`SELECT c.id, c.created_at, c.service_id, c.quantity`).
		WithArgs(userID).
		WillReturnRows(rows)

	items, err := r.AllByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Service)
	assert.Equal(t, "Residential US", items[0].Service.Name)
	assert.Equal(t, "US", items[0].Service.ProviderData.Country)
	assert.NoError(t, mock.ExpectationsWereMet())
}
