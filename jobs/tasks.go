// Package jobs contains the background task definitions and the Asynq worker
// that runs them.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRetentionSweep prunes aged audit entries and expired overrides.
	TaskRetentionSweep = "retention:sweep"
)

// RetentionSweepPayload carries the retention window for one sweep.
type RetentionSweepPayload struct {
	AuditRetentionDays int       `json:"audit_retention_days"`
	ScheduledFor       time.Time `json:"scheduled_for"`
}

// NewRetentionSweepTask constructs an Asynq task for the retention sweep.
func NewRetentionSweepTask(retentionDays int, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(RetentionSweepPayload{
		AuditRetentionDays: retentionDays,
		ScheduledFor:       at,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionSweep, body, asynq.Queue(QueueDefault)), nil
}
