package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "token:revoked:"

// RevocationStore records revoked token IDs in Redis for the remaining
// lifetime of each token. Entries self-expire with the token, so the store
// never needs an explicit purge.
type RevocationStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRevocationStore constructs a RevocationStore.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client, now: time.Now}
}

// Revoke marks a token ID as revoked until its natural expiry. Revoking an
// already expired token is a no-op success. A store failure is returned to the
// caller: a logout that could not be recorded must not be reported as done.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revocationKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("token: revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token ID has been revoked. When the store is
// unreachable the error is returned so the caller can fail closed.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("token: revocation lookup: %w", err)
	}
	return n > 0, nil
}
