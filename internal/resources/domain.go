package resources

import (
	"time"

	"github.com/google/uuid"
)

// Category groups resources that share role grant rules.
type Category struct {
	ID          int64
	Code        string
	Name        string
	Description string
}

// Resource is a protected object owned by a user.
type Resource struct {
	ID                uuid.UUID
	CategoryID        int64
	CategoryCode      string
	Kind              string
	Name              string
	Description       string
	OwnerID           uuid.UUID
	OwnerDepartmentID *int64
	IsPublic          bool
	IsArchived        bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
