// Package token implements the session token lifecycle: issuance, verification
// and revocation of signed bearer credentials.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired indicates the credential is past its expiry.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenMalformed indicates the credential failed signature or shape checks.
	ErrTokenMalformed = errors.New("token: malformed")
)

// Claims is the verified content of an issued token.
type Claims struct {
	Subject   uuid.UUID
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type signedClaims struct {
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 signed tokens. Tokens are immutable once
// issued; invalidation before natural expiry goes through the RevocationStore.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager constructs a Manager with the shared signing secret and token lifetime.
func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue produces a signed token for the given actor with a fresh token ID.
func (m *Manager) Issue(actorID uuid.UUID) (string, *Claims, error) {
	now := m.now()
	claims := signedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}
	return raw, &Claims{
		Subject:   actorID,
		TokenID:   claims.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}, nil
}

// Verify checks signature and expiry and returns the embedded claims. Any
// tampering, missing field or expiry fails closed.
func (m *Manager) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &signedClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := parsed.Claims.(*signedClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrTokenMalformed
	}

	out := &Claims{Subject: subject, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// TTL exposes the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
