package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/praxis-lms/praxis/internal/rbac"
)

// RBACSyncJob pushes the permission registry into the catalog so new
// permissions become grantable right after a deploy.
type RBACSyncJob struct {
	service *rbac.Service
	logger  *slog.Logger
}

// NewRBACSyncJob constructs an RBACSyncJob.
func NewRBACSyncJob(service *rbac.Service, logger *slog.Logger) *RBACSyncJob {
	return &RBACSyncJob{service: service, logger: logger}
}

// Handle processes TaskRBACSync tasks.
func (j *RBACSyncJob) Handle(ctx context.Context, _ *asynq.Task) error {
	inserted, err := j.service.SyncCatalog(ctx)
	if err != nil {
		return err
	}
	j.logger.Info("permission catalog sync finished", slog.Int("inserted", inserted))
	return nil
}
