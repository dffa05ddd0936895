package entities

import "time"

// TimelineMessage is one reconstructed event in a conversation timeline.
type TimelineMessage struct {
	Direction MessageDirection `json:"direction"`
	Type      string           `json:"type"`
	Preview   string           `json:"preview"`
	Timestamp time.Time        `json:"timestamp"`
	FlowName  string           `json:"flow_name,omitempty"`
}

// ConversationSummary merges every session of one contact into a single
// dashboard-facing conversation.
type ConversationSummary struct {
	ContactID    string            `json:"contact_id"`
	WaID         string            `json:"wa_id"`
	Name         string            `json:"name"`
	Flows        []string          `json:"flows"` // names of flows with sessions for this contact
	Messages     []TimelineMessage `json:"messages"`
	UnreadCount  int               `json:"unread_count"`
	LastMessage  string            `json:"last_message"`
	LastActivity time.Time         `json:"last_activity"`
}
