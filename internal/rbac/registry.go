// Package rbac resolves a user's effective permission set from role
// assignments, the role→permission catalog and per-user overrides, with a
// short-TTL process-wide cache in front.
package rbac

import "github.com/praxis-lms/praxis/internal/session"

// AllPermissions is the registry of valid permission strings. It is the
// source of truth for catalog seeding; the kernel itself treats the
// strings as opaque resource:action pairs.
var AllPermissions = []string{
	"course:read", "course:create", "course:update", "course:update_any", "course:publish", "course:delete", "course:delete_any",
	"unit:read", "unit:create", "unit:update", "unit:publish", "unit:delete",
	"learning_path:read", "learning_path:create", "learning_path:update", "learning_path:delete",
	"user:read", "user:create", "user:update", "user:delete", "user:assign_role", "user:assign_permission", "user:impersonate",
	"group:read", "group:create", "group:update", "group:delete",
	"branches:read", "branches:create", "branches:update", "branches:delete",
	"dashboard:read",
	"assignment:read", "assignment:create", "assignment:update", "assignment:delete", "assignment:assign",
	"submission:read", "submission:grade", "submission:create",
	"reports:read", "reports:export",
	"security:sessions:read", "security:sessions:revoke", "security:audit:read",
	"certificate:issue:read", "certificate:issue:create", "certificate:view_own",
	"roles:read", "permissions:read", "organization:read",
}

// DefaultRolePermissions is the hardcoded fallback table, used only when
// the catalog is unreachable or unseeded in non-production operation.
// Production always resolves from the catalog and fails closed.
var DefaultRolePermissions = map[string][]string{
	session.RoleAdmin: AllPermissions,
	session.RoleSuperInstructor: {
		"dashboard:read",
		"course:read", "course:create", "course:update", "course:update_any", "course:publish", "course:delete",
		"unit:read", "unit:create", "unit:update", "unit:publish", "unit:delete",
		"learning_path:read", "learning_path:create", "learning_path:update", "learning_path:delete",
		"group:read", "group:create", "group:update", "group:delete",
		"user:read", "user:create", "user:update", "user:delete",
		"assignment:read", "assignment:create", "assignment:update", "assignment:delete", "assignment:assign",
		"submission:read", "submission:grade",
		"reports:read", "reports:export",
		"certificate:issue:read",
	},
	session.RoleInstructor: {
		"dashboard:read",
		"course:read", "course:create", "course:update", "course:publish",
		"unit:read", "unit:create", "unit:update", "unit:publish", "unit:delete",
		"learning_path:read", "learning_path:create", "learning_path:update",
		"group:read", "group:create", "group:update", "group:delete",
		"user:read",
		"assignment:read", "assignment:create", "assignment:update", "assignment:delete", "assignment:assign",
		"submission:read", "submission:grade",
		"reports:read",
	},
	session.RoleLearner: {
		"course:read",
		"unit:read",
		"learning_path:read",
		"assignment:read",
		"submission:read", "submission:create",
		"certificate:view_own",
	},
}
