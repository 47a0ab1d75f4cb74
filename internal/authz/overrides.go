package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bastion-authz/bastion/internal/shared"
)

// OverrideService manages personal overrides: the per-actor, per-resource
// exceptions sitting above role grants in the precedence chain. Writes are
// last-writer-wins; the most recently granted non-expired row is the one the
// engine sees.
type OverrideService struct {
	repo    OverrideRepository
	decider *Service
	cache   *Cache
	logger  *slog.Logger
}

// NewOverrideService constructs an OverrideService.
func NewOverrideService(repo OverrideRepository, decider *Service, cache *Cache, logger *slog.Logger) *OverrideService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideService{repo: repo, decider: decider, cache: cache, logger: logger}
}

// Grant records an override for the target actor on the resource. The granter
// must own the resource or hold SHARE on it; the check is exploratory and not
// audited. The cached verdicts for the target pair are dropped immediately.
func (s *OverrideService) Grant(ctx context.Context, granter Actor, targetID uuid.UUID, resource Resource, action Action, allowed bool, expiresAt *time.Time) error {
	if resource.OwnerID != granter.ID {
		decision, err := s.decider.Probe(ctx, granter, resource, ActionShare)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return shared.ErrForbidden
		}
	}

	granterID := granter.ID
	override := Override{
		UserID:     targetID,
		ResourceID: resource.ID,
		Action:     action,
		Allowed:    allowed,
		GrantedBy:  &granterID,
		GrantedAt:  time.Now(),
		ExpiresAt:  expiresAt,
	}
	if err := s.repo.InsertOverride(ctx, override); err != nil {
		return err
	}

	if err := s.cache.Invalidate(ctx, targetID, resource.ID); err != nil {
		s.logger.Warn("override cache invalidate failed", slog.Any("error", err))
	}
	s.logger.Info("override granted",
		slog.String("granter", granter.ID.String()),
		slog.String("target", targetID.String()),
		slog.String("resource", resource.ID.String()),
		slog.String("action", string(action)),
		slog.Bool("allowed", allowed))
	return nil
}

// Revoke removes the override rows for (target, resource, action). Only the
// resource owner or the actor who granted the override may revoke it.
func (s *OverrideService) Revoke(ctx context.Context, granter Actor, targetID uuid.UUID, resource Resource, action Action) error {
	allowed := resource.OwnerID == granter.ID
	if !allowed {
		wasGranter, err := s.repo.WasGrantedBy(ctx, granter.ID, targetID, resource.ID, action)
		if err != nil {
			return err
		}
		allowed = wasGranter
	}
	if !allowed {
		return shared.ErrForbidden
	}

	deleted, err := s.repo.DeleteOverride(ctx, targetID, resource.ID, action)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return shared.ErrNotFound
	}

	if err := s.cache.Invalidate(ctx, targetID, resource.ID); err != nil {
		s.logger.Warn("override cache invalidate failed", slog.Any("error", err))
	}
	return nil
}
