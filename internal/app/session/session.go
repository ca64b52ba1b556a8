package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt"

	"proxymart/internal/app/model"
)

var ErrInvalidToken = errors.New("invalid token")

type Creator interface {
	// Create a session for the user, returning a signed token
	Create(ctx context.Context, u *model.User) (string, error)
}

type Reader interface {
	// Read the user behind a token
	Read(ctx context.Context, token string) (*model.User, error)
}

type Destroyer interface {
	// Destroy revokes the session behind a token
	Destroy(ctx context.Context, token string)
}

type Manager interface {
	Creator
	Reader
	Destroyer
}

type Claims struct {
	jwt.StandardClaims
}

type MemoryOption func(*Memory)

// WithIssuer sets the token issuer claim.
func WithIssuer(issuer string) MemoryOption {
	return func(m *Memory) {
		m.issuer = issuer
	}
}

// WithTokenLifetime overrides the default session lifetime.
func WithTokenLifetime(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.tokenLifetime = d
	}
}
