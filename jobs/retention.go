package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bastion-authz/bastion/internal/jobs"
)

// AuditPurger removes audit entries older than the retention window.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// OverridePurger removes personal overrides whose expiry has passed.
type OverridePurger interface {
	PurgeExpiredOverrides(ctx context.Context) (int64, error)
}

// RetentionSweeper runs the periodic cleanup of aged audit entries and
// expired overrides.
type RetentionSweeper struct {
	audit     AuditPurger
	overrides OverridePurger
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewRetentionSweeper constructs a RetentionSweeper. metrics may be nil.
func NewRetentionSweeper(audit AuditPurger, overrides OverridePurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *RetentionSweeper {
	return &RetentionSweeper{audit: audit, overrides: overrides, logger: logger, metrics: metrics}
}

// Handle processes one TaskRetentionSweep task.
func (s *RetentionSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := s.metrics.Track(TaskRetentionSweep)
	var payload RetentionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	if payload.AuditRetentionDays <= 0 {
		return tracker.End(asynq.SkipRetry)
	}

	purged, err := s.audit.PurgeOlderThan(ctx, payload.AuditRetentionDays)
	if err != nil {
		return tracker.End(err)
	}
	expired, err := s.overrides.PurgeExpiredOverrides(ctx)
	if err != nil {
		return tracker.End(err)
	}
	s.logger.Info("retention sweep finished",
		slog.Int("retention_days", payload.AuditRetentionDays),
		slog.Int64("audit_purged", purged),
		slog.Int64("overrides_purged", expired))
	return tracker.End(nil)
}
