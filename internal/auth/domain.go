package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/bastion-authz/bastion/internal/authz"
)

// Account represents an authenticated user account.
type Account struct {
	ID             uuid.UUID
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	DepartmentID   *int64
	DepartmentCode string
	IsActive       bool
	IsSuperuser    bool
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuthzActor maps the account to the decision engine's actor view.
func (a *Account) AuthzActor() authz.Actor {
	return authz.Actor{
		ID:             a.ID,
		IsSuperuser:    a.IsSuperuser,
		DepartmentID:   a.DepartmentID,
		DepartmentCode: a.DepartmentCode,
	}
}
