package resources

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bastion-authz/bastion/internal/authz"
	"github.com/bastion-authz/bastion/internal/shared"
)

// CreateInput carries the fields for a new resource.
type CreateInput struct {
	CategoryCode string
	Kind         string
	Name         string
	Description  string
	IsPublic     bool
}

// UpdateInput carries the mutable fields of a resource. Nil pointers leave the
// current value untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	OwnerID     *uuid.UUID
	IsPublic    *bool
	IsArchived  *bool
}

// Service enforces the decision engine around resource CRUD. Every read and
// write goes through a verdict; archived resources are invisible except to the
// listing's include_archived switch.
type Service struct {
	repo    Repository
	decider *authz.Service
	cache   *authz.Cache
	logger  *slog.Logger
}

// NewService constructs a Service. cache may be nil.
func NewService(repo Repository, decider *authz.Service, cache *authz.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, decider: decider, cache: cache, logger: logger}
}

// Categories lists the resource categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// List returns the resources the actor may read. Each candidate is checked
// with a silent probe so browsing does not flood the audit log.
func (s *Service) List(ctx context.Context, actor authz.Actor, includeArchived bool) ([]Resource, error) {
	all, err := s.repo.ListResources(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	visible := make([]Resource, 0, len(all))
	for _, res := range all {
		decision, err := s.decider.Probe(ctx, actor, authzView(res), authz.ActionRead)
		if err != nil {
			return nil, err
		}
		if decision.Allowed {
			visible = append(visible, res)
		}
	}
	return visible, nil
}

// Get returns one resource after an audited read check.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (Resource, error) {
	res, err := s.loadLive(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if err := s.require(ctx, actor, res, authz.ActionRead); err != nil {
		return Resource{}, err
	}
	return res, nil
}

// Create inserts a resource owned by the actor. The create check runs against
// a prospective view of the resource, since no row exists yet.
func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (Resource, error) {
	category, err := s.repo.CategoryByCode(ctx, strings.TrimSpace(in.CategoryCode))
	if err != nil {
		return Resource{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Resource{}, errors.New("resources: name required")
	}

	prospective := Resource{
		CategoryID:   category.ID,
		CategoryCode: category.Code,
		Kind:         in.Kind,
		OwnerID:      actor.ID,
	}
	decision, err := s.decider.Decide(ctx, actor, authzView(prospective), authz.ActionCreate)
	if err != nil {
		return Resource{}, err
	}
	if !decision.Allowed {
		return Resource{}, shared.ErrForbidden
	}

	return s.repo.InsertResource(ctx, Resource{
		CategoryID:  category.ID,
		Kind:        in.Kind,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		OwnerID:     actor.ID,
		IsPublic:    in.IsPublic,
	})
}

// Update applies the changes after an audited update check. Changes that alter
// who can see the resource orphan every cached verdict for it.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, in UpdateInput) (Resource, error) {
	res, err := s.loadLive(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if err := s.require(ctx, actor, res, authz.ActionUpdate); err != nil {
		return Resource{}, err
	}

	visibilityChanged := false
	if in.Name != nil {
		res.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		res.Description = strings.TrimSpace(*in.Description)
	}
	if in.OwnerID != nil && *in.OwnerID != res.OwnerID {
		res.OwnerID = *in.OwnerID
		visibilityChanged = true
	}
	if in.IsPublic != nil && *in.IsPublic != res.IsPublic {
		res.IsPublic = *in.IsPublic
		visibilityChanged = true
	}
	if in.IsArchived != nil && *in.IsArchived != res.IsArchived {
		res.IsArchived = *in.IsArchived
		visibilityChanged = true
	}

	if err := s.repo.UpdateResource(ctx, res); err != nil {
		return Resource{}, err
	}
	if visibilityChanged {
		s.invalidate(ctx, res.ID)
	}
	return res, nil
}

// Delete archives the resource after an audited delete check.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	res, err := s.loadLive(ctx, id)
	if err != nil {
		return err
	}
	if err := s.require(ctx, actor, res, authz.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.ArchiveResource(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// AuthzResource resolves a resource ID for the permission endpoints. Archived
// resources report not found.
func (s *Service) AuthzResource(ctx context.Context, id uuid.UUID) (authz.Resource, error) {
	res, err := s.loadLive(ctx, id)
	if err != nil {
		return authz.Resource{}, err
	}
	return authzView(res), nil
}

// loadLive fetches the resource and hides archived ones before any verdict
// runs, so their existence does not leak through error shapes.
func (s *Service) loadLive(ctx context.Context, id uuid.UUID) (Resource, error) {
	res, err := s.repo.GetResource(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if res.IsArchived {
		return Resource{}, shared.ErrNotFound
	}
	return res, nil
}

func (s *Service) require(ctx context.Context, actor authz.Actor, res Resource, action authz.Action) error {
	decision, err := s.decider.Decide(ctx, actor, authzView(res), action)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return shared.ErrForbidden
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.InvalidateResource(ctx, id); err != nil {
		s.logger.Warn("resource cache invalidation failed", slog.Any("error", err))
	}
}

func authzView(res Resource) authz.Resource {
	return authz.Resource{
		ID:                res.ID,
		CategoryID:        res.CategoryID,
		OwnerID:           res.OwnerID,
		OwnerDepartmentID: res.OwnerDepartmentID,
		IsPublic:          res.IsPublic,
		IsArchived:        res.IsArchived,
		Kind:              res.Kind,
	}
}
