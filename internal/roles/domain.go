package roles

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named permission bundle in the role hierarchy. Parent links form
// a forest; the schema does not guarantee acyclicity, the authz resolver
// guards traversal.
type Role struct {
	ID           int64
	Name         string
	Code         string
	Description  string
	ParentRoleID *int64
	Priority     int
	IsActive     bool
	CreatedAt    time.Time
}

// Assignment binds a role to a user, optionally until an expiry.
type Assignment struct {
	UserID     uuid.UUID
	RoleID     int64
	AssignedAt time.Time
	AssignedBy *uuid.UUID
	ExpiresAt  *time.Time
}
