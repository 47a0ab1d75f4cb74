package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository provides pgx backed persistence for the engine and the
// override service.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// DirectRoles returns the actor's non-expired direct role memberships.
func (r *PostgresRepository) DirectRoles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.code, r.priority, r.is_active, r.parent_role_id
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
		ORDER BY r.id`, userID)
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

// RoleByID fetches one role node.
func (r *PostgresRepository) RoleByID(ctx context.Context, id int64) (Role, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, priority, is_active, parent_role_id
		FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, false, nil
	}
	if err != nil {
		return Role{}, false, err
	}
	return role, true, nil
}

// GrantsFor returns grants for (role, category, action) in stored order. The
// join on resource_categories drops grants pointing at a deleted category, so
// a dangling grant is a non-match rather than an error.
func (r *PostgresRepository) GrantsFor(ctx context.Context, roleID, categoryID int64, action Action) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.id, rp.role_id, rp.category_id, rp.action, rp.scope, rp.conditions, rp.is_allowed
		FROM role_permissions rp
		JOIN resource_categories c ON c.id = rp.category_id
		WHERE rp.role_id = $1 AND rp.category_id = $2 AND rp.action = $3
		ORDER BY rp.id`, roleID, categoryID, string(action))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var (
			grant      Grant
			verb       string
			scope      string
			conditions pgtype.Text
		)
		if err := rows.Scan(&grant.ID, &grant.RoleID, &grant.CategoryID, &verb, &scope, &conditions, &grant.Allowed); err != nil {
			return nil, err
		}
		grant.Action = Action(verb)
		grant.Scope = Scope(scope)
		if conditions.Valid {
			grant.Condition = ParseCondition([]byte(conditions.String))
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// EffectiveOverride returns the most recently granted non-expired override
// for (user, resource, action), or nil when none applies.
func (r *PostgresRepository) EffectiveOverride(ctx context.Context, userID, resourceID uuid.UUID, action Action) (*Override, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, resource_id, action, is_allowed, granted_by, granted_at, expires_at
		FROM user_permissions
		WHERE user_id = $1 AND resource_id = $2 AND action = $3
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY granted_at DESC
		LIMIT 1`, userID, resourceID, string(action))

	var (
		override  Override
		verb      string
		grantedBy pgtype.UUID
		expiresAt pgtype.Timestamptz
	)
	err := row.Scan(&override.ID, &override.UserID, &override.ResourceID, &verb, &override.Allowed, &grantedBy, &override.GrantedAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	override.Action = Action(verb)
	if grantedBy.Valid {
		id := uuid.UUID(grantedBy.Bytes)
		override.GrantedBy = &id
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		override.ExpiresAt = &t
	}
	return &override, nil
}

// InsertOverride appends an override row. Rows are never updated in place;
// the engine reads the most recent non-expired row, so insert order is the
// last-writer-wins mechanism.
func (r *PostgresRepository) InsertOverride(ctx context.Context, o Override) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_permissions (user_id, resource_id, action, is_allowed, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6)`,
		o.UserID, o.ResourceID, string(o.Action), o.Allowed, o.GrantedBy, o.ExpiresAt)
	return err
}

// DeleteOverride removes all override rows for (user, resource, action).
func (r *PostgresRepository) DeleteOverride(ctx context.Context, userID, resourceID uuid.UUID, action Action) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_permissions
		WHERE user_id = $1 AND resource_id = $2 AND action = $3`,
		userID, resourceID, string(action))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// WasGrantedBy reports whether the granter created any of the override rows.
func (r *PostgresRepository) WasGrantedBy(ctx context.Context, granterID, userID, resourceID uuid.UUID, action Action) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_permissions
			WHERE user_id = $1 AND resource_id = $2 AND action = $3 AND granted_by = $4
		)`, userID, resourceID, string(action), granterID).Scan(&exists)
	return exists, err
}

// PurgeExpiredOverrides deletes override rows whose expiry has passed.
func (r *PostgresRepository) PurgeExpiredOverrides(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_permissions WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role     Role
		parentID pgtype.Int8
	)
	if err := row.Scan(&role.ID, &role.Code, &role.Priority, &role.IsActive, &parentID); err != nil {
		return Role{}, err
	}
	if parentID.Valid {
		id := parentID.Int64
		role.ParentID = &id
	}
	return role, nil
}
