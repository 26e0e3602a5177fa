// Package storetest provides an in-memory Store for tests.
package storetest

import (
	"context"
	"sync"

	"github.com/praxis-lms/praxis/internal/store"
)

// MemStore is a naive in-memory record store. Filters match by equality;
// a nil filter value matches records where the column is nil or absent.
type MemStore struct {
	mu      sync.Mutex
	records map[string][]store.Record

	// FailCreates makes every Create fail with the given error.
	FailCreates error
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string][]store.Record)}
}

var _ store.Store = (*MemStore)(nil)

// Seed inserts records without scoping or bookkeeping.
func (m *MemStore) Seed(model string, rows ...store.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.records[model] = append(m.records[model], row.Clone())
	}
}

// All returns a copy of every record stored for the model.
func (m *MemStore) All(model string) []store.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Record, 0, len(m.records[model]))
	for _, rec := range m.records[model] {
		out = append(out, rec.Clone())
	}
	return out
}

func matches(rec store.Record, filter store.Filter) bool {
	for k, want := range filter {
		got, ok := rec[k]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (m *MemStore) FindByID(_ context.Context, model, id string) (store.Record, error) {
	return m.FindFirst(context.Background(), model, store.Filter{"id": id})
}

func (m *MemStore) FindFirst(_ context.Context, model string, filter store.Filter) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records[model] {
		if matches(rec, filter) {
			return rec.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemStore) List(_ context.Context, model string, filter store.Filter) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Record
	for _, rec := range m.records[model] {
		if matches(rec, filter) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (m *MemStore) Count(ctx context.Context, model string, filter store.Filter) (int64, error) {
	rows, err := m.List(ctx, model, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (m *MemStore) Create(_ context.Context, model string, data store.Record) (store.Record, error) {
	if m.FailCreates != nil {
		return nil, m.FailCreates
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[model] = append(m.records[model], data.Clone())
	return data.Clone(), nil
}

func (m *MemStore) CreateMany(ctx context.Context, model string, rows []store.Record) (int64, error) {
	for _, row := range rows {
		if _, err := m.Create(ctx, model, row); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

func (m *MemStore) Update(_ context.Context, model string, filter store.Filter, data store.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	for i, rec := range m.records[model] {
		if !matches(rec, filter) {
			continue
		}
		updated := rec.Clone()
		for k, v := range data {
			updated[k] = v
		}
		m.records[model][i] = updated
		affected++
	}
	return affected, nil
}

func (m *MemStore) Delete(_ context.Context, model string, filter store.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []store.Record
	var affected int64
	for _, rec := range m.records[model] {
		if matches(rec, filter) {
			affected++
			continue
		}
		kept = append(kept, rec)
	}
	m.records[model] = kept
	return affected, nil
}

func (m *MemStore) Upsert(ctx context.Context, model string, filter store.Filter, create, update store.Record) (store.Record, error) {
	affected, err := m.Update(ctx, model, filter, update)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		return m.FindFirst(ctx, model, filter)
	}
	return m.Create(ctx, model, create)
}

func (m *MemStore) Exec(context.Context, string, ...any) error { return nil }

func (m *MemStore) WithTx(ctx context.Context, fn func(context.Context, store.Store) error) error {
	return fn(ctx, m)
}
