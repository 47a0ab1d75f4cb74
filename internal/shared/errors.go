package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates the actor is not allowed to perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate indicates a uniqueness conflict such as an email already in use.
	ErrDuplicate = errors.New("duplicate entry")
)
