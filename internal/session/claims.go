// Package session signs and verifies the compact session tokens carried by
// the session cookie. Tokens are stateless; revocation works through the
// per-user token version checked on the full verification path.
package session

import (
	"github.com/golang-jwt/jwt/v5"
)

// Role keys understood by the platform. The permission catalog gives them
// meaning; ADMIN is the only role the guard treats specially.
const (
	RoleAdmin           = "ADMIN"
	RoleSuperInstructor = "SUPER_INSTRUCTOR"
	RoleInstructor      = "INSTRUCTOR"
	RoleLearner         = "LEARNER"
)

// Claims carries everything the platform needs to authorize a request
// without a database lookup. Immutable once signed; issuing a new token is
// the only way to change a field.
type Claims struct {
	jwt.RegisteredClaims

	UserID       string `json:"userId"`
	Email        string `json:"email"`
	ActiveRole   string `json:"activeRole"`
	TenantID     string `json:"tenantId,omitempty"`
	NodeID       string `json:"nodeId,omitempty"`
	TokenVersion int    `json:"tokenVersion"`
	Impersonated bool   `json:"isImpersonated,omitempty"`
	AdminID      string `json:"adminId,omitempty"`
}

// IsAdmin reports whether the session's active role is the top
// administrative role.
func (c *Claims) IsAdmin() bool {
	return c.ActiveRole == RoleAdmin
}
