package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user account for administration.
type User struct {
	ID             uuid.UUID
	Email          string
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
