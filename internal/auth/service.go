package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bastion-authz/bastion/internal/shared"
)

// DefaultRoleCode is attached to freshly registered accounts.
const DefaultRoleCode = "user"

// Registration carries the fields needed to create an account.
type Registration struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	DepartmentID *int64
}

// Service implements credential checks and account registration.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate verifies the email/password pair and returns the account.
// Unknown accounts, wrong passwords, and deactivated accounts all collapse
// into ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLastLogin(ctx, account.ID); err != nil {
		return nil, err
	}
	return account, nil
}

// Register creates a new account with the default role attached.
func (s *Service) Register(ctx context.Context, reg Registration) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, err
	}
	return s.repo.CreateAccount(ctx, Account{
		Email:        strings.ToLower(strings.TrimSpace(reg.Email)),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		DepartmentID: reg.DepartmentID,
	}, DefaultRoleCode)
}

// AccountByID loads an account by its ID.
func (s *Service) AccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.FindByID(ctx, id)
}
