// Package courses is the course catalog: the first business module riding
// on the scoped record store, so every read is tenant-filtered and every
// write lands in the caller's tenant.
package courses

import (
	"time"

	"github.com/praxis-lms/praxis/internal/store"
)

// Course is a tenant-owned catalog entry.
type Course struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	OwnerID     string     `json:"ownerId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Published   bool       `json:"published"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"-"`
}

func fromRecord(rec store.Record) Course {
	c := Course{
		ID:          asString(rec["id"]),
		TenantID:    asString(rec["tenant_id"]),
		OwnerID:     asString(rec["owner_id"]),
		Title:       asString(rec["title"]),
		Description: asString(rec["description"]),
	}
	if v, ok := rec["published"].(bool); ok {
		c.Published = v
	}
	if v, ok := rec["created_at"].(time.Time); ok {
		c.CreatedAt = v
	}
	if v, ok := rec["updated_at"].(time.Time); ok {
		c.UpdatedAt = v
	}
	return c
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
