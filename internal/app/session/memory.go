package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"proxymart/internal/app/logger"
	"proxymart/internal/app/model"
	"proxymart/internal/app/storage"
)

// session.Manager interface implementation
var _ Manager = (*Memory)(nil)

type (
	// Memory keeps issued sessions in process memory keyed by token ID,
	// so a token can be revoked before its JWT expiry. The user record is
	// re-read on every request: balance and admin status are always fresh.
	Memory struct {
		mu            sync.RWMutex
		issuer        string
		secretKey     []byte
		tokenLifetime time.Duration
		users         storage.UserRepository
		db            MemoryDB
	}
	MemoryDB map[string]MemorySession
)

func (svc *Memory) LoggerComponent() string {
	return "MemorySession.Memory"
}

func NewMemory(secretKey string, users storage.UserRepository, opts ...MemoryOption) *Memory {
	s := &Memory{
		secretKey:     []byte(secretKey),
		users:         users,
		tokenLifetime: time.Hour,
		db:            make(MemoryDB),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type MemorySession struct {
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
}

// Create method of session.Creator implementation
func (svc *Memory) Create(ctx context.Context, u *model.User) (string, error) {
	l := logger.Get(ctx, svc)
	l.Debug().Str("user_id", u.ID.String()).Msg("Create")

	id := uuid.New().String()

	now := time.Now()
	exp := now.Add(svc.tokenLifetime)

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        id,
			Subject:   u.ID.String(),
			NotBefore: now.Unix(),
			ExpiresAt: exp.Unix(),
			Issuer:    svc.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	strToken, err := token.SignedString(svc.secretKey)
	if err != nil {
		l.Error().Err(err).Send()

		return "", fmt.Errorf("jwt encode: %w", err)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.db[id] = MemorySession{
		UserID:    u.ID,
		StartedAt: now,
		ExpiresAt: exp,
	}

	return strToken, nil
}

// Read method of session.Reader implementation
func (svc *Memory) Read(ctx context.Context, tokenString string) (*model.User, error) {
	l := logger.Get(ctx, svc)

	c := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return svc.secretKey, nil
	})

	if err != nil {
		l.Debug().Err(err).Msg("ParseWithClaims failed")

		return nil, ErrInvalidToken
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	svc.mu.Lock()
	s, ok := svc.db[c.StandardClaims.Id]
	if ok && s.ExpiresAt.Before(time.Now()) {
		delete(svc.db, c.StandardClaims.Id)
		ok = false
	}
	svc.mu.Unlock()

	if !ok {
		l.Debug().Str("session_id", c.StandardClaims.Id).Msg("Session not found or expired")

		return nil, ErrInvalidToken
	}

	if c.StandardClaims.Subject != s.UserID.String() {
		l.Debug().Str("session_id", c.StandardClaims.Id).Msg("Subject mismatch")

		return nil, ErrInvalidToken
	}

	u, err := svc.users.Read(ctx, s.UserID)
	if err != nil {
		l.Debug().Err(err).Send()

		return nil, ErrInvalidToken
	}

	return u, nil
}

// Destroy revokes the session behind a token. An already-revoked or
// malformed token is not an error: logout is idempotent.
func (svc *Memory) Destroy(ctx context.Context, tokenString string) {
	l := logger.Get(ctx, svc)

	c := &Claims{}
	if _, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		return svc.secretKey, nil
	}); err != nil {
		l.Debug().Err(err).Msg("Destroy: token parse failed")
		return
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.db, c.StandardClaims.Id)
}
