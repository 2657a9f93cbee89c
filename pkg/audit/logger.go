package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/wondrousdigital/gateway/pkg/observability"
)

// Logger records audit events
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the sink
	Close() error
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                      { return nil }

// NewEvent builds an event stamped with the current time and the request
// ID carried in ctx.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Status:    status,
		RequestID: observability.GetRequestID(ctx),
		UserID:    observability.GetUserID(ctx),
	}
}

// NewRequestEvent builds an event describing r. clientIP is passed in
// because proxy trust is decided by the caller.
func NewRequestEvent(r *http.Request, clientIP string, eventType EventType, status EventStatus) *Event {
	event := NewEvent(r.Context(), eventType, status)
	event.IPAddress = clientIP
	event.UserAgent = r.UserAgent()
	event.Method = r.Method
	event.Host = r.Host
	event.Path = r.URL.Path
	return event
}

// LogLogger writes audit events through the structured application logger
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates a logger-backed audit sink
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger.WithField("component", "audit")}
}

// Log writes the event at warn level
func (l *LogLogger) Log(ctx context.Context, event *Event) error {
	fields := map[string]interface{}{
		"event_type": string(event.Type),
		"status":     string(event.Status),
	}
	addField(fields, "user_id", event.UserID)
	addField(fields, "account_id", event.AccountID)
	addField(fields, "permission", event.Permission)
	addField(fields, "request_id", event.RequestID)
	addField(fields, "ip_address", event.IPAddress)
	addField(fields, "host", event.Host)
	addField(fields, "path", event.Path)
	addField(fields, "reason", event.Reason)
	for k, v := range event.Metadata {
		addField(fields, k, v)
	}

	l.logger.WithFields(fields).Warn("audit event")
	return nil
}

func (l *LogLogger) Close() error { return nil }

func addField(fields map[string]interface{}, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
