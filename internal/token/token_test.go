package token

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/bastion-authz/bastion/testing"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	manager := NewManager("test-secret", 30*time.Minute)
	actorID := uuid.New()

	raw, issued, err := manager.Issue(actorID)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.NotEmpty(t, issued.TokenID)

	claims, err := manager.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, actorID, claims.Subject)
	require.Equal(t, issued.TokenID, claims.TokenID)
	require.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestVerifyTamperedToken(t *testing.T) {
	manager := NewManager("test-secret", 30*time.Minute)
	raw, _, err := manager.Issue(uuid.New())
	require.NoError(t, err)

	// Flip a character in the signature segment.
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = manager.Verify(tampered)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyWrongSecret(t *testing.T) {
	manager := NewManager("test-secret", 30*time.Minute)
	raw, _, err := manager.Issue(uuid.New())
	require.NoError(t, err)

	other := NewManager("other-secret", 30*time.Minute)
	_, err = other.Verify(raw)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyExpiredToken(t *testing.T) {
	manager := NewManager("test-secret", 30*time.Minute)
	raw, _, err := manager.Issue(uuid.New())
	require.NoError(t, err)

	// Move the verifier clock past expiry.
	manager.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	_, err = manager.Verify(raw)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyGarbage(t *testing.T) {
	manager := NewManager("test-secret", 30*time.Minute)
	_, err := manager.Verify("not-a-token")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestRevocationLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRevocationStore(client)
	ctx := context.Background()

	manager := NewManager("test-secret", 30*time.Minute)
	raw, issued, err := manager.Issue(uuid.New())
	require.NoError(t, err)

	revoked, err := store.IsRevoked(ctx, issued.TokenID)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, issued.TokenID, issued.ExpiresAt))

	revoked, err = store.IsRevoked(ctx, issued.TokenID)
	require.NoError(t, err)
	require.True(t, revoked)

	// The signature itself still validates; revocation lives outside the token.
	_, err = manager.Verify(raw)
	require.NoError(t, err)

	// The entry disappears once the token would have expired anyway.
	mr.FastForward(31 * time.Minute)
	revoked, err = store.IsRevoked(ctx, issued.TokenID)
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevokeExpiredTokenIsNoOp(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRevocationStore(client)

	require.NoError(t, store.Revoke(context.Background(), "stale-id", time.Now().Add(-time.Minute)))
	require.False(t, mr.Exists(revocationKeyPrefix+"stale-id"))
}

func TestRevocationStoreUnavailableFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRevocationStore(client)
	mr.Close()

	ctx := context.Background()
	_, err := store.IsRevoked(ctx, "any")
	require.Error(t, err)

	err = store.Revoke(ctx, "any", time.Now().Add(time.Hour))
	require.Error(t, err)
}
