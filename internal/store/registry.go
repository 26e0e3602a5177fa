package store

import "fmt"

// Column names every tenant-owned table must carry.
const (
	TenantColumn    = "tenant_id"
	DeletedAtColumn = "deleted_at"
	IDColumn        = "id"
)

// ModelPolicy declares how the interceptor treats a model. The registry is
// a compile-time literal so scoping decisions are statically reviewable
// instead of inferred from runtime introspection.
type ModelPolicy struct {
	Table      string
	IsGlobal   bool
	SoftDelete bool
}

// Model names used across the platform.
const (
	ModelTenant             = "tenant"
	ModelUser               = "user"
	ModelUserRole           = "userRole"
	ModelAuthRole           = "authRole"
	ModelAuthPermission     = "authPermission"
	ModelAuthRolePermission = "authRolePermission"
	ModelCourse             = "course"
	ModelEnrollment         = "enrollment"
	ModelLearningPath       = "learningPath"
	ModelGroup              = "group"
	ModelBranch             = "branch"
	ModelAuditLog           = "auditLog"
	ModelPasswordResetToken = "passwordResetToken"
)

// models is the full scoping policy table. Every model not marked global
// carries a tenant_id column and is scoped on every operation.
var models = map[string]ModelPolicy{
	ModelTenant:             {Table: "tenants", IsGlobal: true, SoftDelete: true},
	ModelUser:               {Table: "users", SoftDelete: true},
	ModelUserRole:           {Table: "user_roles"},
	ModelAuthRole:           {Table: "auth_roles", IsGlobal: true},
	ModelAuthPermission:     {Table: "auth_permissions", IsGlobal: true},
	ModelAuthRolePermission: {Table: "auth_role_permissions", IsGlobal: true},
	ModelCourse:             {Table: "courses", SoftDelete: true},
	ModelEnrollment:         {Table: "enrollments", SoftDelete: true},
	ModelLearningPath:       {Table: "learning_paths", SoftDelete: true},
	ModelGroup:              {Table: "groups", SoftDelete: true},
	ModelBranch:             {Table: "branches", SoftDelete: true},
	ModelAuditLog:           {Table: "auth_audit_log", IsGlobal: true},
	ModelPasswordResetToken: {Table: "password_reset_tokens", IsGlobal: true},
}

// Policy returns the scoping policy for a model.
func Policy(model string) (ModelPolicy, error) {
	pol, ok := models[model]
	if !ok {
		return ModelPolicy{}, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	return pol, nil
}

// Models lists all registered model names, mainly for registry tests and
// the catalog sync job.
func Models() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	return names
}
