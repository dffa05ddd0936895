package entities

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionErrored   SessionStatus = "errored"
)

// Session is the execution state of one flow for one contact. At most one
// session exists per (contact, flow) pair; the unique key in the store is
// the only concurrency safeguard for near-simultaneous deliveries.
//
// Context is an opaque blob mutated by the flow engine. Besides engine
// state it accumulates an append-only event log under "_meta.history" that
// the conversation timeline is rebuilt from.
type Session struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	ContactID string          `json:"contact_id"`
	FlowID    string          `json:"flow_id"`
	Status    SessionStatus   `json:"status"`
	Context   json.RawMessage `json:"context"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SessionView is a session joined with the contact and flow it belongs to,
// the shape the conversation reads work from.
type SessionView struct {
	Session
	ContactWaID string `json:"contact_wa_id"`
	ContactName string `json:"contact_name"`
	FlowName    string `json:"flow_name"`
}
