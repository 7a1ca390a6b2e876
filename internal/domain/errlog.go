package domain

import "time"

// Error event levels accepted by the log ingest endpoint.
const (
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
)

// ErrorEvent is one client-side error reported by a console frontend.
// Events are persisted and broadcast live to the admin dashboard feed.
type ErrorEvent struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id,omitempty"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	Stack      string    `json:"stack,omitempty"`
	URL        string    `json:"url,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// ErrorEventQuery filters the admin log listing.
type ErrorEventQuery struct {
	TenantID string
	Level    string
	Page     int
	PageSize int
}
