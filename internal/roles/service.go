package roles

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service wraps role administration rules.
type Service struct {
	repo *Repository
}

// NewService constructs a Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// Create validates and inserts a role.
func (s *Service) Create(ctx context.Context, role Role) (Role, error) {
	if err := normalize(&role); err != nil {
		return Role{}, err
	}
	return s.repo.CreateRole(ctx, role)
}

// Update validates and updates a role.
func (s *Service) Update(ctx context.Context, role Role) (Role, error) {
	if err := normalize(&role); err != nil {
		return Role{}, err
	}
	if role.ParentRoleID != nil && *role.ParentRoleID == role.ID {
		return Role{}, errors.New("roles: role cannot be its own parent")
	}
	return s.repo.UpdateRole(ctx, role)
}

// Delete removes a role.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// Assign binds a role to a user with an optional expiry.
func (s *Service) Assign(ctx context.Context, userID uuid.UUID, roleID int64, assignedBy *uuid.UUID, expiresAt *time.Time) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	return s.repo.Assign(ctx, Assignment{
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: assignedBy,
		ExpiresAt:  expiresAt,
	})
}

// Remove unbinds a role from a user.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID, roleID int64) error {
	return s.repo.Remove(ctx, userID, roleID)
}

func normalize(role *Role) error {
	role.Name = strings.TrimSpace(role.Name)
	role.Code = strings.TrimSpace(strings.ToLower(role.Code))
	role.Description = strings.TrimSpace(role.Description)
	if role.Name == "" {
		return errors.New("roles: role name required")
	}
	if role.Code == "" {
		return errors.New("roles: role code required")
	}
	return nil
}
