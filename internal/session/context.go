package session

import "context"

type claimsContextKey struct{}

// ContextWithClaims stores lightly verified claims in the context. The
// session middleware sets this for every request carrying a valid cookie,
// including routes that bypass the request guard, so the data layer can
// still recover a tenant id.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts claims stored by the session middleware.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}
