package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "authz:mask:"

// CacheEntry is a memoised verdict set for one (actor, resource) pair: one
// bit per action plus the reason tag that produced each bit, so cache hits
// can still be audited truthfully.
type CacheEntry struct {
	Mask    uint8             `json:"mask"`
	Reasons map[Action]Reason `json:"reasons"`
}

// Allowed reports the cached verdict for one action.
func (e CacheEntry) Allowed(action Action) bool {
	return e.Mask&action.Bit() != 0
}

// Cache is a short-TTL Redis memo in front of the engine. It is an
// optimisation, never a source of truth: absence or expiry only changes
// latency. Per-pair entries are deleted directly; resource-wide invalidation
// (owner/public/archived changes) bumps a per-resource version embedded in
// the key, orphaning every entry for that resource at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Lookup returns the cached entry for the pair, or nil on a miss.
func (c *Cache) Lookup(ctx context.Context, actorID, resourceID uuid.UUID) (*CacheEntry, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	key, err := c.key(ctx, actorID, resourceID)
	if err != nil {
		return nil, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authz: cache lookup: %w", err)
	}
	var entry CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		// A corrupt entry is a miss, not a failure.
		return nil, nil
	}
	return &entry, nil
}

// Store writes the entry with the configured TTL.
func (c *Cache) Store(ctx context.Context, actorID, resourceID uuid.UUID, entry CacheEntry) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, actorID, resourceID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("authz: cache store: %w", err)
	}
	return nil
}

// Invalidate removes the entry for one (actor, resource) pair. Called on
// every override grant or revoke.
func (c *Cache) Invalidate(ctx context.Context, actorID, resourceID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, actorID, resourceID)
	if err != nil {
		return err
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("authz: cache invalidate: %w", err)
	}
	return nil
}

// InvalidateResource orphans every cached entry for a resource by bumping its
// version. Called when the resource's owner, public or archived flag changes.
func (c *Cache) InvalidateResource(ctx context.Context, resourceID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Incr(ctx, c.versionKey(resourceID)).Err(); err != nil {
		return fmt.Errorf("authz: cache resource invalidate: %w", err)
	}
	return nil
}

func (c *Cache) key(ctx context.Context, actorID, resourceID uuid.UUID) (string, error) {
	ver, err := c.version(ctx, resourceID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sv%d:%s:%s", cacheKeyPrefix, ver, resourceID, actorID), nil
}

// version returns the resource's current cache generation. An absent key
// reads as 0 so that the first InvalidateResource INCR (0 to 1) actually
// moves the generation and orphans the existing entries.
func (c *Cache) version(ctx context.Context, resourceID uuid.UUID) (int64, error) {
	ver, err := c.client.Get(ctx, c.versionKey(resourceID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("authz: cache version: %w", err)
	}
	return ver, nil
}

func (c *Cache) versionKey(resourceID uuid.UUID) string {
	return "authz:resver:" + resourceID.String()
}
