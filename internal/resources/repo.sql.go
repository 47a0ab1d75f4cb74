package resources

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bastion-authz/bastion/internal/shared"
)

// Repository defines the persistence the resource service needs.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CategoryByCode(ctx context.Context, code string) (Category, error)
	ListResources(ctx context.Context, includeArchived bool) ([]Resource, error)
	GetResource(ctx context.Context, id uuid.UUID) (Resource, error)
	InsertResource(ctx context.Context, res Resource) (Resource, error)
	UpdateResource(ctx context.Context, res Resource) error
	ArchiveResource(ctx context.Context, id uuid.UUID) error
}

// PostgresRepository implements Repository on pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgresRepository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListCategories returns all resource categories.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, COALESCE(description, '')
		FROM resource_categories ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CategoryByCode fetches one category by its code.
func (r *PostgresRepository) CategoryByCode(ctx context.Context, code string) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, COALESCE(description, '')
		FROM resource_categories WHERE code = $1`, code).
		Scan(&c.ID, &c.Code, &c.Name, &c.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, shared.ErrNotFound
	}
	return c, err
}

const resourceColumns = `r.id, r.category_id, c.code, r.kind, r.name, COALESCE(r.description, ''),
	r.owner_id, u.department_id, r.is_public, r.is_archived, r.created_at, r.updated_at`

const resourceJoins = `
	FROM resources r
	JOIN resource_categories c ON c.id = r.category_id
	LEFT JOIN users u ON u.id = r.owner_id`

// ListResources returns resources, newest first.
func (r *PostgresRepository) ListResources(ctx context.Context, includeArchived bool) ([]Resource, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+resourceColumns+resourceJoins+`
		WHERE ($1 OR NOT r.is_archived)
		ORDER BY r.created_at DESC`, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// GetResource fetches one resource by ID, archived included.
func (r *PostgresRepository) GetResource(ctx context.Context, id uuid.UUID) (Resource, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+resourceColumns+resourceJoins+`
		WHERE r.id = $1`, id)
	res, err := scanResource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Resource{}, shared.ErrNotFound
	}
	return res, err
}

// InsertResource creates the resource and returns it with server-set fields.
func (r *PostgresRepository) InsertResource(ctx context.Context, res Resource) (Resource, error) {
	res.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO resources (id, category_id, kind, name, description, owner_id, is_public, is_archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW(), NOW())
		RETURNING created_at, updated_at`,
		res.ID, res.CategoryID, res.Kind, res.Name, res.Description, res.OwnerID, res.IsPublic).
		Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return Resource{}, err
	}
	return res, nil
}

// UpdateResource persists mutable fields of the resource.
func (r *PostgresRepository) UpdateResource(ctx context.Context, res Resource) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE resources
		SET name = $2, description = $3, owner_id = $4, is_public = $5, is_archived = $6, updated_at = NOW()
		WHERE id = $1`,
		res.ID, res.Name, res.Description, res.OwnerID, res.IsPublic, res.IsArchived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ArchiveResource soft-deletes the resource.
func (r *PostgresRepository) ArchiveResource(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE resources SET is_archived = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_archived`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanResource(row pgx.Row) (Resource, error) {
	var (
		res    Resource
		deptID pgtype.Int8
	)
	err := row.Scan(&res.ID, &res.CategoryID, &res.CategoryCode, &res.Kind, &res.Name, &res.Description,
		&res.OwnerID, &deptID, &res.IsPublic, &res.IsArchived, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return Resource{}, err
	}
	if deptID.Valid {
		id := deptID.Int64
		res.OwnerDepartmentID = &id
	}
	return res, nil
}
