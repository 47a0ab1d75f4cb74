package authz

import (
	"context"

	"github.com/google/uuid"
)

// Repository provides the read access the engine needs. Implementations must
// treat dangling references (grant pointing at a deleted category, role that
// no longer exists) as empty results, never as errors, so one corrupt row
// cannot block an otherwise valid decision path.
type Repository interface {
	// DirectRoles returns the actor's direct role memberships whose
	// assignment has not expired.
	DirectRoles(ctx context.Context, userID uuid.UUID) ([]Role, error)
	// RoleByID fetches a role node; found=false when it does not exist.
	RoleByID(ctx context.Context, id int64) (Role, bool, error)
	// GrantsFor returns grants for (role, category, action) in stored order.
	GrantsFor(ctx context.Context, roleID, categoryID int64, action Action) ([]Grant, error)
	// EffectiveOverride returns the most recently granted non-expired
	// override for (user, resource, action), or nil when none applies.
	EffectiveOverride(ctx context.Context, userID, resourceID uuid.UUID, action Action) (*Override, error)
}

// OverrideRepository mutates personal override rows.
type OverrideRepository interface {
	InsertOverride(ctx context.Context, o Override) error
	DeleteOverride(ctx context.Context, userID, resourceID uuid.UUID, action Action) (int64, error)
	WasGrantedBy(ctx context.Context, granterID, userID, resourceID uuid.UUID, action Action) (bool, error)
}
