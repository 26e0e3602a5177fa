// Package auth implements credential verification, session issuance and
// revocation for the platform.
package auth

import "time"

// User is the authentication view of a platform account. TokenVersion is
// the revocation counter compared against session tokens.
type User struct {
	ID           string
	TenantID     string
	Email        string
	Name         string
	PasswordHash string
	ActiveRole   string
	TokenVersion int
	DeletedAt    *time.Time
}
