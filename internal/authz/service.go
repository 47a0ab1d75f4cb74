package authz

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Service is the read-through front of the decision engine. A cache hit
// answers from the memoised bitmask; a miss computes the full mask once
// (concurrent misses for the same pair are collapsed via singleflight) and
// stores it. Cache trouble degrades to a direct engine call, never to a
// different decision.
type Service struct {
	engine *Engine
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs a Service. cache may be nil to run the engine bare.
func NewService(engine *Engine, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, cache: cache, logger: logger}
}

// Engine exposes the underlying engine for callers that need it directly.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Decide returns the verdict for (actor, resource, action) and audits it.
func (s *Service) Decide(ctx context.Context, actor Actor, resource Resource, action Action) (Decision, error) {
	return s.decide(ctx, actor, resource, action, true)
}

// Probe returns the verdict without auditing, for exploratory checks.
func (s *Service) Probe(ctx context.Context, actor Actor, resource Resource, action Action) (Decision, error) {
	return s.decide(ctx, actor, resource, action, false)
}

func (s *Service) decide(ctx context.Context, actor Actor, resource Resource, action Action, audited bool) (Decision, error) {
	if s.cache == nil {
		if audited {
			return s.engine.Decide(ctx, actor, resource, action)
		}
		return s.engine.Probe(ctx, actor, resource, action)
	}

	entry, err := s.cache.Lookup(ctx, actor.ID, resource.ID)
	if err != nil {
		s.logger.Warn("permission cache lookup failed", slog.Any("error", err))
		entry = nil
	}
	if entry != nil {
		if reason, ok := entry.Reasons[action]; ok {
			decision := Decision{Allowed: entry.Allowed(action), Reason: reason}
			if s.engine.onDecision != nil {
				s.engine.onDecision(decision.Reason, decision.Allowed)
			}
			if audited {
				s.engine.record(ctx, actor.ID, resource, action, decision)
			}
			return decision, nil
		}
	}

	key := fmt.Sprintf("%s:%s", resource.ID, actor.ID)
	filled, err, _ := s.group.Do(key, func() (any, error) {
		return s.fill(ctx, actor, resource)
	})
	if err != nil {
		return Decision{}, err
	}

	fresh := filled.(CacheEntry)
	decision := Decision{Allowed: fresh.Allowed(action), Reason: fresh.Reasons[action]}
	if s.engine.onDecision != nil {
		s.engine.onDecision(decision.Reason, decision.Allowed)
	}
	if audited {
		s.engine.record(ctx, actor.ID, resource, action, decision)
	}
	return decision, nil
}

// fill evaluates every action for the pair and stores the resulting mask.
// The per-action evaluations are exploratory and not audited; the caller
// audits the action it actually asked about.
func (s *Service) fill(ctx context.Context, actor Actor, resource Resource) (CacheEntry, error) {
	entry := CacheEntry{Reasons: make(map[Action]Reason, len(Actions))}
	for _, action := range Actions {
		decision, err := s.engine.evaluate(ctx, actor, resource, action)
		if err != nil {
			return CacheEntry{}, err
		}
		if decision.Allowed {
			entry.Mask |= action.Bit()
		}
		entry.Reasons[action] = decision.Reason
	}
	if err := s.cache.Store(ctx, actor.ID, resource.ID, entry); err != nil {
		s.logger.Warn("permission cache store failed", slog.Any("error", err))
	}
	return entry, nil
}
