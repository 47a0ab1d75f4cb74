package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bastion-authz/bastion/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `u.id, u.email, u.first_name, u.last_name, u.department_id, COALESCE(d.code, ''),
	u.is_active, u.is_superuser, u.last_login, u.created_at, u.updated_at`

// ListUsers returns all users with their department code.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN departments d ON d.id = u.department_id
		ORDER BY u.email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetUser fetches one user by ID.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN departments d ON d.id = u.department_id
		WHERE u.id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return user, err
}

// SetActive toggles the active flag on a user account.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user         User
		departmentID pgtype.Int8
		lastLogin    pgtype.Timestamptz
	)
	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &departmentID, &user.DepartmentCode,
		&user.IsActive, &user.IsSuperuser, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	if departmentID.Valid {
		id := departmentID.Int64
		user.DepartmentID = &id
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}
