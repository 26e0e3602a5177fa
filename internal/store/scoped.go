package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/praxis-lms/praxis/internal/session"
	"github.com/praxis-lms/praxis/internal/tenant"
)

// ScopedStore decorates a Store so every operation against a tenant-owned
// model is tenant-safe without business code passing a tenant id. It is
// constructed once at process start and injected everywhere a store handle
// is needed.
type ScopedStore struct {
	inner  Store
	logger *slog.Logger
	// strict aborts scoped operations that cannot resolve a tenant.
	// Disabled only for bootstrap/seed runs and local development.
	strict bool
	// rlsMarker additionally publishes the tenant to the database session
	// for row-level-security policies enforced by the store itself.
	rlsMarker bool
	now       func() time.Time
}

// NewScopedStore wraps inner with tenant scoping. strict should come from
// Config.StrictTenancy.
func NewScopedStore(inner Store, logger *slog.Logger, strict, rlsMarker bool) *ScopedStore {
	return &ScopedStore{inner: inner, logger: logger, strict: strict, rlsMarker: rlsMarker, now: time.Now}
}

var _ Store = (*ScopedStore)(nil)

// Unscoped returns the raw store for system-level operations that must
// bypass tenant scoping. Callers own the responsibility the decorator
// normally carries.
func (s *ScopedStore) Unscoped() Store {
	return s.inner
}

// resolveTenant recovers the active tenant: ambient context first, then the
// claims the session middleware parsed from the cookie. An empty result on
// a scoped model is fatal in strict mode.
func (s *ScopedStore) resolveTenant(ctx context.Context) string {
	if tc, ok := tenant.FromContext(ctx); ok {
		return tc.TenantID
	}
	if claims := session.ClaimsFromContext(ctx); claims != nil {
		return claims.TenantID
	}
	return ""
}

// enter resolves the policy and tenant for one operation. The returned
// tenant is empty when the operation must pass through unchanged.
func (s *ScopedStore) enter(ctx context.Context, model, op string) (ModelPolicy, string, error) {
	pol, err := Policy(model)
	if err != nil {
		return ModelPolicy{}, "", err
	}
	if pol.IsGlobal {
		return pol, "", nil
	}
	tenantID := s.resolveTenant(ctx)
	if tenantID == "" {
		if s.strict {
			s.logger.Error("tenant context missing for scoped operation",
				slog.String("model", model), slog.String("op", op))
			return ModelPolicy{}, "", fmt.Errorf("%w: %s.%s", ErrTenantRequired, model, op)
		}
		return pol, "", nil
	}
	return pol, tenantID, nil
}

// runScoped executes fn against the store, publishing the tenant to the
// database session first when the row-level-security marker is enabled.
// The marker is a connection-local setting, so marker and statements must
// share one connection: a transaction pins one, and the transaction-local
// set_config scope reverts automatically so pooled connections never carry
// a stale tenant. Marker failures never abort the operation; the
// application-level filters still apply.
func (s *ScopedStore) runScoped(ctx context.Context, tenantID string, fn func(ctx context.Context, st Store) error) error {
	if !s.rlsMarker {
		return fn(ctx, s.inner)
	}
	return s.inner.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.Exec(ctx, "SELECT set_config('app.current_tenant', $1, true)", tenantID); err != nil {
			s.logger.Warn("set rls tenant marker", slog.Any("error", err))
		}
		return fn(ctx, tx)
	})
}

func scopeFilter(pol ModelPolicy, tenantID string, filter Filter) Filter {
	scoped := filter.Clone()
	scoped[TenantColumn] = tenantID
	if pol.SoftDelete {
		if _, constrained := filter[DeletedAtColumn]; !constrained {
			scoped[DeletedAtColumn] = nil
		}
	}
	return scoped
}

// FindByID never trusts the unique key alone: it re-executes as a filtered
// search so a record owned by another tenant reads as "not found", never as
// a permission error.
func (s *ScopedStore) FindByID(ctx context.Context, model, id string) (Record, error) {
	pol, tenantID, err := s.enter(ctx, model, "findByID")
	if err != nil {
		return nil, err
	}
	if tenantID == "" {
		return s.inner.FindByID(ctx, model, id)
	}
	var rec Record
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		rec, err = st.FindFirst(ctx, model, scopeFilter(pol, tenantID, Filter{IDColumn: id}))
		return err
	})
	return rec, err
}

func (s *ScopedStore) FindFirst(ctx context.Context, model string, filter Filter) (Record, error) {
	pol, tenantID, err := s.enter(ctx, model, "findFirst")
	if err != nil {
		return nil, err
	}
	if tenantID == "" {
		return s.inner.FindFirst(ctx, model, filter)
	}
	var rec Record
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		rec, err = st.FindFirst(ctx, model, scopeFilter(pol, tenantID, filter))
		return err
	})
	return rec, err
}

func (s *ScopedStore) List(ctx context.Context, model string, filter Filter) ([]Record, error) {
	pol, tenantID, err := s.enter(ctx, model, "list")
	if err != nil {
		return nil, err
	}
	if tenantID == "" {
		return s.inner.List(ctx, model, filter)
	}
	var recs []Record
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		recs, err = st.List(ctx, model, scopeFilter(pol, tenantID, filter))
		return err
	})
	return recs, err
}

func (s *ScopedStore) Count(ctx context.Context, model string, filter Filter) (int64, error) {
	pol, tenantID, err := s.enter(ctx, model, "count")
	if err != nil {
		return 0, err
	}
	if tenantID == "" {
		return s.inner.Count(ctx, model, filter)
	}
	var count int64
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		count, err = st.Count(ctx, model, scopeFilter(pol, tenantID, filter))
		return err
	})
	return count, err
}

// Create injects the current tenant into the payload, overwriting any
// client-supplied value, so a caller can never create a record for another
// tenant.
func (s *ScopedStore) Create(ctx context.Context, model string, data Record) (Record, error) {
	_, tenantID, err := s.enter(ctx, model, "create")
	if err != nil {
		return nil, err
	}
	if tenantID == "" {
		return s.inner.Create(ctx, model, data)
	}
	scoped := data.Clone()
	scoped[TenantColumn] = tenantID
	var rec Record
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		rec, err = st.Create(ctx, model, scoped)
		return err
	})
	return rec, err
}

func (s *ScopedStore) CreateMany(ctx context.Context, model string, rows []Record) (int64, error) {
	_, tenantID, err := s.enter(ctx, model, "createMany")
	if err != nil {
		return 0, err
	}
	if tenantID == "" {
		return s.inner.CreateMany(ctx, model, rows)
	}
	scoped := make([]Record, len(rows))
	for i, row := range rows {
		clone := row.Clone()
		clone[TenantColumn] = tenantID
		scoped[i] = clone
	}
	var created int64
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		created, err = st.CreateMany(ctx, model, scoped)
		return err
	})
	return created, err
}

func (s *ScopedStore) Update(ctx context.Context, model string, filter Filter, data Record) (int64, error) {
	pol, tenantID, err := s.enter(ctx, model, "update")
	if err != nil {
		return 0, err
	}
	if tenantID == "" {
		return s.inner.Update(ctx, model, filter, data)
	}
	if supplied, ok := data[TenantColumn]; ok {
		if supplied != tenantID {
			return 0, ErrTenantImmutable
		}
		data = data.Clone()
		delete(data, TenantColumn)
	}
	var affected int64
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		affected, err = st.Update(ctx, model, scopeFilter(pol, tenantID, filter), data)
		return err
	})
	return affected, err
}

// Delete rewrites deletes on soft-delete models into an update that stamps
// deleted_at instead of removing the row.
func (s *ScopedStore) Delete(ctx context.Context, model string, filter Filter) (int64, error) {
	pol, tenantID, err := s.enter(ctx, model, "delete")
	if err != nil {
		return 0, err
	}
	if tenantID == "" {
		return s.inner.Delete(ctx, model, filter)
	}
	scoped := scopeFilter(pol, tenantID, filter)
	var affected int64
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		if pol.SoftDelete {
			affected, err = st.Update(ctx, model, scoped, Record{DeletedAtColumn: s.now().UTC()})
		} else {
			affected, err = st.Delete(ctx, model, scoped)
		}
		return err
	})
	return affected, err
}

func (s *ScopedStore) Upsert(ctx context.Context, model string, filter Filter, create, update Record) (Record, error) {
	pol, tenantID, err := s.enter(ctx, model, "upsert")
	if err != nil {
		return nil, err
	}
	if tenantID == "" {
		return s.inner.Upsert(ctx, model, filter, create, update)
	}
	if supplied, ok := update[TenantColumn]; ok {
		if supplied != tenantID {
			return nil, ErrTenantImmutable
		}
		update = update.Clone()
		delete(update, TenantColumn)
	}
	scopedCreate := create.Clone()
	scopedCreate[TenantColumn] = tenantID
	var rec Record
	err = s.runScoped(ctx, tenantID, func(ctx context.Context, st Store) error {
		var err error
		rec, err = st.Upsert(ctx, model, scopeFilter(pol, tenantID, filter), scopedCreate, update)
		return err
	})
	return rec, err
}

func (s *ScopedStore) Exec(ctx context.Context, sql string, args ...any) error {
	return s.inner.Exec(ctx, sql, args...)
}

func (s *ScopedStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.inner.WithTx(ctx, func(ctx context.Context, tx Store) error {
		scoped := &ScopedStore{inner: tx, logger: s.logger, strict: s.strict, rlsMarker: s.rlsMarker, now: s.now}
		return fn(ctx, scoped)
	})
}
