// Package store exposes the generic record store and the tenant-scoping
// decorator wrapped around it. Business code only ever sees the Store
// interface; the scoped implementation guarantees that every operation on a
// tenant-owned model is filtered, injected or rewritten so one tenant's
// records can never reach another.
package store

import (
	"context"
	"errors"
)

// Filter constrains an operation. Keys are column names; a nil value
// matches SQL NULL.
type Filter map[string]any

// Record is a row keyed by column name.
type Record map[string]any

var (
	// ErrNotFound indicates the record does not exist — including records
	// that exist but belong to another tenant.
	ErrNotFound = errors.New("store: record not found")
	// ErrUnknownModel indicates a model missing from the policy registry.
	ErrUnknownModel = errors.New("store: unknown model")
	// ErrTenantRequired indicates a scoped operation ran without a
	// resolvable tenant in strict mode. A programming defect, not a user
	// error.
	ErrTenantRequired = errors.New("store: tenant context required")
	// ErrTenantImmutable indicates an update tried to move a record to a
	// different tenant.
	ErrTenantImmutable = errors.New("store: cannot change tenant of existing record")
)

// Store is the generic transactional record store. Operations address
// records by model name; the policy registry maps models to tables.
type Store interface {
	// FindByID looks up a single record by primary key.
	FindByID(ctx context.Context, model, id string) (Record, error)
	FindFirst(ctx context.Context, model string, filter Filter) (Record, error)
	List(ctx context.Context, model string, filter Filter) ([]Record, error)
	Count(ctx context.Context, model string, filter Filter) (int64, error)
	Create(ctx context.Context, model string, data Record) (Record, error)
	CreateMany(ctx context.Context, model string, rows []Record) (int64, error)
	Update(ctx context.Context, model string, filter Filter, data Record) (int64, error)
	Delete(ctx context.Context, model string, filter Filter) (int64, error)
	Upsert(ctx context.Context, model string, filter Filter, create, update Record) (Record, error)

	// Exec runs a raw statement, used for the row-level-security marker.
	Exec(ctx context.Context, sql string, args ...any) error
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Clone returns a shallow copy so decorators never mutate caller maps.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f)+2)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}
