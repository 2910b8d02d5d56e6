package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention prunes activity-log entries past the retention
	// horizon.
	TaskAuditRetention = "audit:retention"
)

// AuditRetentionPayload configures one retention run.
type AuditRetentionPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditRetentionTask constructs an Asynq task.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// AuditPruner removes activity-log entries older than the cutoff.
type AuditPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRetentionJob enforces the activity-log retention policy. The audit
// contract itself is append-only; retention is a host concern and lives here.
type AuditRetentionJob struct {
	Pruner AuditPruner
	Logger *slog.Logger
	clock  func() time.Time
}

// NewAuditRetentionJob initialises the retention handler.
func NewAuditRetentionJob(pruner AuditPruner, logger *slog.Logger) *AuditRetentionJob {
	return &AuditRetentionJob{
		Pruner: pruner,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes one retention sweep.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pruner == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 90 * 24
	}
	cutoff := j.now().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	pruned, err := j.Pruner.PruneOlderThan(ctx, cutoff)
	if err != nil {
		j.logger().Error("retention sweep failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("retention sweep completed",
		slog.Time("cutoff", cutoff),
		slog.Int64("pruned", pruned))
	return nil
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRetention))
	}
	return slog.Default().With(slog.String("job", TaskAuditRetention))
}

func (j *AuditRetentionJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
