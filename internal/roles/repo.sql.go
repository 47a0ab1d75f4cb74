package roles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

// ListRoles returns all roles ordered by priority descending.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, code, COALESCE(description, ''), parent_role_id, priority, is_active, created_at
		FROM roles ORDER BY priority DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, code, COALESCE(description, ''), parent_role_id, priority, is_active, created_at
		FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	return role, err
}

// CreateRole inserts a new role and returns it.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, code, description, parent_role_id, priority, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`,
		role.Name, role.Code, role.Description, role.ParentRoleID, role.Priority, role.IsActive)
	if err := row.Scan(&role.ID, &role.CreatedAt); err != nil {
		return Role{}, mapConstraint(err)
	}
	return role, nil
}

// UpdateRole updates an existing role.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles
		SET name = $2, code = $3, description = $4, parent_role_id = $5, priority = $6, is_active = $7
		WHERE id = $1`,
		role.ID, role.Name, role.Code, role.Description, role.ParentRoleID, role.Priority, role.IsActive)
	if err != nil {
		return Role{}, mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

// DeleteRole removes a role by ID.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Assign binds a role to a user. Re-assigning refreshes the expiry and the
// assigning actor.
func (r *Repository) Assign(ctx context.Context, a Assignment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_at, assigned_by, expires_at)
		VALUES ($1, $2, NOW(), $3, $4)
		ON CONFLICT (user_id, role_id)
		DO UPDATE SET assigned_at = NOW(), assigned_by = EXCLUDED.assigned_by, expires_at = EXCLUDED.expires_at`,
		a.UserID, a.RoleID, a.AssignedBy, a.ExpiresAt)
	return err
}

// Remove unbinds a role from a user.
func (r *Repository) Remove(ctx context.Context, userID uuid.UUID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role     Role
		parentID pgtype.Int8
	)
	err := row.Scan(&role.ID, &role.Name, &role.Code, &role.Description, &parentID, &role.Priority, &role.IsActive, &role.CreatedAt)
	if err != nil {
		return Role{}, err
	}
	if parentID.Valid {
		id := parentID.Int64
		role.ParentRoleID = &id
	}
	return role, nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
