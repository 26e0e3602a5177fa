// Package tenant provides the request-scoped ambient tenant context. Values
// travel on context.Context so they can never leak between concurrent
// requests; there is deliberately no package-level state here.
package tenant

import "context"

// Context identifies the tenant and user a request acts for. It lives for
// one request and is never persisted.
type Context struct {
	TenantID string
	UserID   string
}

type contextKey struct{}

// WithContext returns a context carrying the tenant context.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext extracts the tenant context. The zero value means no tenant
// has been bound.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(Context)
	return tc, ok && tc.TenantID != ""
}

// Run executes fn with the tenant context bound, so any code called
// transitively can resolve it without threading it through signatures.
func Run(ctx context.Context, tc Context, fn func(ctx context.Context) error) error {
	return fn(WithContext(ctx, tc))
}
