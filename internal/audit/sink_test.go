package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praxis-lms/praxis/internal/audit"
	"github.com/praxis-lms/praxis/internal/store"
	"github.com/praxis-lms/praxis/internal/store/storetest"
)

func newSink(st store.Store) *audit.Sink {
	return audit.NewSink(st, slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func TestRecordPersistsEvent(t *testing.T) {
	mem := storetest.NewMemStore()
	sink := newSink(mem)

	sink.Record(context.Background(), audit.Event{
		Type:      audit.EventLoginSuccess,
		TenantID:  "t1",
		UserID:    "u1",
		IP:        "10.0.0.1",
		UserAgent: "test-agent",
		Metadata:  map[string]any{"path": "/api/auth/login"},
	})

	rows := mem.All(store.ModelAuditLog)
	require.Len(t, rows, 1)
	rec := rows[0]
	require.Equal(t, "LOGIN_SUCCESS", rec["event_type"])
	require.Equal(t, "t1", rec["tenant_id"])
	require.Equal(t, "u1", rec["user_id"])
	require.Equal(t, "10.0.0.1", rec["ip_address"])
	require.Equal(t, string(audit.SeverityMedium), rec["severity"])
	require.NotEmpty(t, rec["id"])
	require.NotNil(t, rec["created_at"])
}

func TestRecordDefaultsSeverityPerEventType(t *testing.T) {
	mem := storetest.NewMemStore()
	sink := newSink(mem)

	sink.Record(context.Background(), audit.Event{Type: audit.EventLoginFail})
	sink.Record(context.Background(), audit.Event{Type: audit.EventTokenRefresh})
	sink.Record(context.Background(), audit.Event{Type: audit.EventLoginFail, Severity: audit.SeverityLow})

	rows := mem.All(store.ModelAuditLog)
	require.Len(t, rows, 3)
	require.Equal(t, string(audit.SeverityCritical), rows[0]["severity"])
	require.Equal(t, string(audit.SeverityLow), rows[1]["severity"], "unknown types default to LOW")
	require.Equal(t, string(audit.SeverityLow), rows[2]["severity"], "explicit severity wins")
}

func TestRecordNullsEmptyActorFields(t *testing.T) {
	mem := storetest.NewMemStore()
	sink := newSink(mem)

	sink.Record(context.Background(), audit.Event{Type: audit.EventLoginFail})

	rec := mem.All(store.ModelAuditLog)[0]
	require.Nil(t, rec["tenant_id"])
	require.Nil(t, rec["user_id"])
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	mem := storetest.NewMemStore()
	mem.FailCreates = errors.New("database gone")
	sink := newSink(mem)

	// Must not panic or propagate; the caller never learns about it.
	sink.Record(context.Background(), audit.Event{Type: audit.EventLoginSuccess})
	require.Empty(t, mem.All(store.ModelAuditLog))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	require.Equal(t, "192.0.2.1:1234", audit.ClientIP(req))

	req.Header.Set("X-Real-Ip", "203.0.113.9")
	require.Equal(t, "203.0.113.9", audit.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 203.0.113.9")
	require.Equal(t, "198.51.100.7", audit.ClientIP(req))
}

func TestClientUserAgent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, "unknown", audit.ClientUserAgent(req))
	req.Header.Set("User-Agent", "curl/8")
	require.Equal(t, "curl/8", audit.ClientUserAgent(req))
}
