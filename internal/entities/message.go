package entities

import "time"

type MessageDirection string

const (
	DirectionIn     MessageDirection = "in"
	DirectionOut    MessageDirection = "out"
	DirectionSystem MessageDirection = "system"
)

// Message is one recorded inbound or outbound message. SessionID is empty
// when no flow claimed the message (persisted unattributed).
type Message struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"`
	ContactID   string           `json:"contact_id"`
	SessionID   string           `json:"session_id,omitempty"`
	WaMessageID string           `json:"wa_message_id,omitempty"` // provider message id, used for dedupe and receipts
	Direction   MessageDirection `json:"direction"`
	Type        string           `json:"type"` // text, interactive, manual, ...
	Body        string           `json:"body"`
	Status      string           `json:"status,omitempty"` // delivery status from provider receipts
	CreatedAt   time.Time        `json:"created_at"`
}
