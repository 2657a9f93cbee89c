package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization events
	EventTypePermissionDenied EventType = "authz.permission_denied"
	EventTypePermissionError  EventType = "authz.permission_error"

	// Request gate events
	EventTypeRateLimited      EventType = "gateway.rate_limited"
	EventTypeCSRFRejected     EventType = "gateway.csrf_rejected"
	EventTypeSiteLookupFailed EventType = "gateway.site_lookup_failed"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusDenied  EventStatus = "denied"
	EventStatusFailure EventStatus = "failure"
)

// Event is a single audit log entry. Empty fields are omitted.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor and scope
	UserID     string `json:"user_id,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
	Permission string `json:"permission,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Method    string `json:"method,omitempty"`
	Host      string `json:"host,omitempty"`
	Path      string `json:"path,omitempty"`

	Reason   string            `json:"reason,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}
