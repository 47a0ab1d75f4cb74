package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bastion-authz/bastion/internal/authz"
)

// Recorder appends decision records into audit_logs. It satisfies
// authz.AuditSink; the engine treats failures as best-effort and keeps the
// decision standing.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// RecordDecision persists one audit entry.
func (r *Recorder) RecordDecision(ctx context.Context, actorID uuid.UUID, resourceID *uuid.UUID, action authz.Action, kind string, allowed bool, reason authz.Reason) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("audit: recorder not configured")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, resource_id, action, resource_kind, success, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		actorID, resourceID, string(action), kind, allowed, string(reason))
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}
