// Package audit persists security-relevant events. The sink is fail-open:
// an audit failure must never cause an authentication or business
// operation to fail.
package audit

// EventType identifies a security-relevant event.
type EventType string

// Event types recorded by the kernel and its collaborators.
const (
	EventLoginSuccess EventType = "LOGIN_SUCCESS"
	EventLoginFail    EventType = "LOGIN_FAIL"
	EventLogout       EventType = "LOGOUT"
	EventLogoutAll    EventType = "LOGOUT_ALL"
	EventTokenRefresh EventType = "TOKEN_REFRESH"

	EventUserCreate EventType = "USER_CREATE"
	EventUserUpdate EventType = "USER_UPDATE"
	EventUserDelete EventType = "USER_DELETE"

	EventRoleAssign       EventType = "ROLE_ASSIGN"
	EventRoleRemove       EventType = "ROLE_REMOVE"
	EventPermissionGrant  EventType = "PERMISSION_GRANT"
	EventPermissionRevoke EventType = "PERMISSION_REVOKE"

	EventCourseCreate EventType = "COURSE_CREATE"
	EventCourseUpdate EventType = "COURSE_UPDATE"
	EventCourseDelete EventType = "COURSE_DELETE"

	EventRateLimitExceeded  EventType = "RATE_LIMIT_EXCEEDED"
	EventCSRFViolation      EventType = "CSRF_VIOLATION"
	EventUnauthorizedAccess EventType = "UNAUTHORIZED_ACCESS"
)

// Severity classifies an event for downstream alerting.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// defaultSeverity maps event types to severity when the caller does not
// supply one. Unknown types default to LOW.
var defaultSeverity = map[EventType]Severity{
	EventLoginFail:          SeverityCritical,
	EventRoleAssign:         SeverityCritical,
	EventRoleRemove:         SeverityCritical,
	EventPermissionGrant:    SeverityCritical,
	EventPermissionRevoke:   SeverityCritical,
	EventRateLimitExceeded:  SeverityCritical,
	EventCSRFViolation:      SeverityCritical,
	EventUnauthorizedAccess: SeverityCritical,
	EventUserDelete:         SeverityCritical,

	EventLogoutAll:  SeverityHigh,
	EventUserCreate: SeverityHigh,

	EventLoginSuccess: SeverityMedium,
	EventUserUpdate:   SeverityMedium,
	EventCourseCreate: SeverityMedium,
	EventCourseDelete: SeverityMedium,
}

// DefaultSeverity returns the static severity for an event type.
func DefaultSeverity(eventType EventType) Severity {
	if sev, ok := defaultSeverity[eventType]; ok {
		return sev
	}
	return SeverityLow
}

// Event is a write-once audit record. The kernel never reads events back.
type Event struct {
	Type      EventType
	TenantID  string
	UserID    string
	IP        string
	UserAgent string
	Metadata  map[string]any
	Severity  Severity
}
