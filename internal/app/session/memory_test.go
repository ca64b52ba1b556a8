package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxymart/internal/app/apperr"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
)

type fakeUsers struct {
	byID map[uuid.UUID]*model.User
}

var _ storage.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, m *model.User) (*model.User, error) {
	m.ID = uuid.New()
	f.byID[m.ID] = m
	return m, nil
}

func (f *fakeUsers) ReadByNameAndPassword(_ context.Context, name, _ string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Name == name {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeUsers) Read(_ context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeUsers) All(_ context.Context) ([]*model.User, error) {
	res := make([]*model.User, 0, len(f.byID))
	for _, u := range f.byID {
		res = append(res, u)
	}
	return res, nil
}

func newTestUser(t *testing.T, users *fakeUsers) *model.User {
	t.Helper()
	u, err := users.Create(context.Background(), &model.User{Name: "alice"})
	require.NoError(t, err)
	return u
}

func TestMemoryCreateReadRoundtrip(t *testing.T) {
	users := &fakeUsers{byID: make(map[uuid.UUID]*model.User)}
	u := newTestUser(t, users)

	m := NewMemory("secret", users)

	token, err := m.Create(context.Background(), u)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := m.Read(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestMemoryRejectsForeignKey(t *testing.T) {
	users := &fakeUsers{byID: make(map[uuid.UUID]*model.User)}
	u := newTestUser(t, users)

	issuer := NewMemory("secret", users)
	verifier := NewMemory("other-secret", users)

	token, err := issuer.Create(context.Background(), u)
	require.NoError(t, err)

	_, err = verifier.Read(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryRejectsGarbage(t *testing.T) {
	users := &fakeUsers{byID: make(map[uuid.UUID]*model.User)}
	m := NewMemory("secret", users)

	_, err := m.Read(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryExpiredSession(t *testing.T) {
	users := &fakeUsers{byID: make(map[uuid.UUID]*model.User)}
	u := newTestUser(t, users)

	m := NewMemory("secret", users, WithTokenLifetime(-time.Minute))

	token, err := m.Create(context.Background(), u)
	require.NoError(t, err)

	_, err = m.Read(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryDestroyRevokes(t *testing.T) {
	users := &fakeUsers{byID: make(map[uuid.UUID]*model.User)}
	u := newTestUser(t, users)

	m := NewMemory("secret", users)

	token, err := m.Create(context.Background(), u)
	require.NoError(t, err)

	m.Destroy(context.Background(), token)

	_, err = m.Read(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Idempotent.
	m.Destroy(context.Background(), token)
}
