package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultRetentionDays = 90

// AuditPurgeJob hard-deletes audit records older than the retention
// window. Audit rows are append-only in normal operation, so this is the
// only deletion path.
type AuditPurgeJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditPurgeJob constructs an AuditPurgeJob.
func NewAuditPurgeJob(pool *pgxpool.Pool, logger *slog.Logger) *AuditPurgeJob {
	return &AuditPurgeJob{pool: pool, logger: logger}
}

// Handle processes TaskAuditPurge tasks.
func (j *AuditPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AuditPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	days := payload.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	tag, err := j.pool.Exec(ctx,
		`DELETE FROM auth_audit_log WHERE created_at < now() - make_interval(days => $1)`,
		days,
	)
	if err != nil {
		return fmt.Errorf("jobs: purge audit logs: %w", err)
	}
	j.logger.Info("audit logs purged",
		slog.Int("retentionDays", days),
		slog.Int64("deleted", tag.RowsAffected()))
	return nil
}
