package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/praxis-lms/praxis/internal/store"
)

const recordTimeout = 5 * time.Second

// Sink writes audit events to the record store, best effort. Events carry
// their tenant explicitly, so the sink uses an unscoped store handle.
type Sink struct {
	store      store.Store
	logger     *slog.Logger
	production bool
}

// NewSink constructs a Sink. Pass the unscoped store.
func NewSink(st store.Store, logger *slog.Logger, production bool) *Sink {
	return &Sink{store: st, logger: logger, production: production}
}

// Record persists the event and returns normally on any failure.
func (s *Sink) Record(ctx context.Context, event Event) {
	if event.Severity == "" {
		event.Severity = DefaultSeverity(event.Type)
	}
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		s.logFailure(event, err)
		return
	}
	_, err = s.store.Create(ctx, store.ModelAuditLog, store.Record{
		"id":         uuid.NewString(),
		"tenant_id":  nullable(event.TenantID),
		"event_type": string(event.Type),
		"user_id":    nullable(event.UserID),
		"ip_address": nullable(event.IP),
		"user_agent": nullable(event.UserAgent),
		"severity":   string(event.Severity),
		"metadata":   metaJSON,
		"created_at": time.Now().UTC(),
	})
	if err != nil {
		s.logFailure(event, err)
	}
}

// Emit records the event in the background so the response path never
// waits on audit I/O. The write gets a detached context with its own
// timeout; request cancellation must not lose the event.
func (s *Sink) Emit(event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		s.Record(ctx, event)
	}()
}

func (s *Sink) logFailure(event Event, err error) {
	// Verbose only outside production; the failure itself stays local.
	if s.production {
		return
	}
	s.logger.Error("audit write failed",
		slog.String("event", string(event.Type)),
		slog.String("user", event.UserID),
		slog.Any("error", err))
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// ClientIP extracts the originating address from forwarding headers.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	return r.RemoteAddr
}

// ClientUserAgent extracts the user agent, "unknown" when absent.
func ClientUserAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return "unknown"
}
