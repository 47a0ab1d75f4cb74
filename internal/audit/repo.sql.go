package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository reads the audit_logs table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// TimelineWindow fetches a filtered window of audit rows, newest first.
func (r *PostgresRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, resource_id, action, resource_kind, success, reason, created_at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		  AND ($3::uuid IS NULL OR actor_id = $3)
		  AND ($4::text IS NULL OR action = $4)
		  AND ($5::text IS NULL OR reason = $5)
		ORDER BY created_at DESC, id DESC
		OFFSET $6 LIMIT $7`,
		optionalTime(filters.From), optionalTime(filters.To),
		optionalText(filters.ActorID), optionalText(filters.Action), optionalText(filters.Reason),
		offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			resourceID pgtype.UUID
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &resourceID, &entry.Action, &entry.Kind, &entry.Success, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if resourceID.Valid {
			id := uuid.UUID(resourceID.Bytes)
			entry.ResourceID = &id
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PurgeOlderThan deletes audit rows older than the retention window.
func (r *PostgresRepository) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM audit_logs WHERE created_at < NOW() - make_interval(days => $1)`, days)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func optionalTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func optionalText(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
