package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bastion-authz/bastion/internal/platform/db"
	"github.com/bastion-authz/bastion/internal/shared"
)

// Repository provides the account persistence the auth service needs.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	CreateAccount(ctx context.Context, account Account, defaultRoleCode string) (uuid.UUID, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

// PostgresRepository implements Repository on pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgresRepository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const accountColumns = `u.id, u.email, u.password_hash, u.first_name, u.last_name, u.department_id,
	COALESCE(d.code, ''), u.is_active, u.is_superuser, u.last_login, u.created_at, u.updated_at`

// FindByEmail fetches an account by email address.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM users u
		LEFT JOIN departments d ON d.id = u.department_id
		WHERE u.email = $1`, email)
	return scanAccount(row)
}

// FindByID fetches an account by ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM users u
		LEFT JOIN departments d ON d.id = u.department_id
		WHERE u.id = $1`, id)
	return scanAccount(row)
}

// CreateAccount inserts the account and attaches the default role when one
// with the given code exists.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account Account, defaultRoleCode string) (uuid.UUID, error) {
	id := uuid.New()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, first_name, last_name, department_id, is_active, is_superuser, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, NOW(), NOW())`,
			id, account.Email, account.PasswordHash, account.FirstName, account.LastName, account.DepartmentID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return shared.ErrDuplicate
			}
			return err
		}
		if defaultRoleCode == "" {
			return nil
		}
		// Missing default role is tolerated; the account simply starts
		// without memberships.
		_, err = tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id, assigned_at)
			SELECT $1, id, NOW() FROM roles WHERE code = $2`, id, defaultRoleCode)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// TouchLastLogin stamps the account's last successful login.
func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		account      Account
		departmentID pgtype.Int8
		lastLogin    pgtype.Timestamptz
	)
	err := row.Scan(&account.ID, &account.Email, &account.PasswordHash, &account.FirstName, &account.LastName,
		&departmentID, &account.DepartmentCode, &account.IsActive, &account.IsSuperuser, &lastLogin,
		&account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if departmentID.Valid {
		deptID := departmentID.Int64
		account.DepartmentID = &deptID
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		account.LastLogin = &t
	}
	return &account, nil
}
