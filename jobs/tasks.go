// Package jobs runs the background maintenance tasks: audit log retention
// and permission catalog synchronisation.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditPurge deletes audit records past the retention window.
	TaskAuditPurge = "audit:purge"
	// TaskRBACSync upserts the permission registry into the catalog.
	TaskRBACSync = "rbac:sync"
)

// AuditPurgePayload parameterises a retention run.
type AuditPurgePayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewAuditPurgeTask constructs an audit retention task.
func NewAuditPurgeTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPurgePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPurge, data), nil
}

// NewRBACSyncTask constructs a catalog sync task.
func NewRBACSyncTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskRBACSync, nil), nil
}
