// Package authz implements the permission decision engine: role hierarchy
// expansion, scope and condition matching, personal overrides and the
// precedence chain that combines them into a single allow/deny verdict.
package authz

import (
	"time"

	"github.com/google/uuid"
)

// Action is one of the fixed verbs an actor can request on a resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionExecute Action = "execute"
	ActionShare   Action = "share"
)

// Actions lists every action in bitmask order.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExecute, ActionShare}

// Valid reports whether the action belongs to the closed vocabulary.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExecute, ActionShare:
		return true
	}
	return false
}

// Bit returns the action's position in the permission bitmask:
// create=1, read=2, update=4, delete=8, execute=16, share=32.
func (a Action) Bit() uint8 {
	for i, action := range Actions {
		if action == a {
			return 1 << i
		}
	}
	return 0
}

// Scope is the breadth of resources a role grant covers.
type Scope string

const (
	ScopeOwn        Scope = "own"
	ScopeDepartment Scope = "department"
	ScopeAll        Scope = "all"
)

// Reason tags which precedence rule settled a decision.
type Reason string

const (
	ReasonSuperuser Reason = "superuser"
	ReasonPersonal  Reason = "personal"
	ReasonOwner     Reason = "owner"
	ReasonPublic    Reason = "public"
	ReasonRole      Reason = "role"
	ReasonDenied    Reason = "denied"
)

// Decision is the outcome of evaluating the precedence chain.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Actor is the engine's view of an authenticated user.
type Actor struct {
	ID             uuid.UUID
	IsSuperuser    bool
	DepartmentID   *int64
	DepartmentCode string
}

// Resource is the engine's view of a protected resource instance.
type Resource struct {
	ID                uuid.UUID
	CategoryID        int64
	OwnerID           uuid.UUID
	OwnerDepartmentID *int64
	IsPublic          bool
	IsArchived        bool
	Kind              string
}

// Role is a node in the role hierarchy.
type Role struct {
	ID       int64
	Code     string
	Priority int
	IsActive bool
	ParentID *int64
}

// Grant is a role-scoped rule for one (category, action) pair.
type Grant struct {
	ID         int64
	RoleID     int64
	CategoryID int64
	Action     Action
	Scope      Scope
	Allowed    bool
	Condition  Condition
}

// Override is a per-actor, per-resource exception that outranks role grants.
type Override struct {
	ID         int64
	UserID     uuid.UUID
	ResourceID uuid.UUID
	Action     Action
	Allowed    bool
	GrantedBy  *uuid.UUID
	GrantedAt  time.Time
	ExpiresAt  *time.Time
}
