package entities

import "time"

type FlowStatus string

const (
	FlowActive   FlowStatus = "active"
	FlowDraft    FlowStatus = "draft"
	FlowInactive FlowStatus = "inactive"
)

// TriggerDefault is the sentinel keyword that matches any message.
// Flows carrying it are evaluated after all specific triggers.
const TriggerDefault = "default"

// Flow is a configured conversational automation owned by one tenant.
// Only Active flows participate in trigger matching.
type Flow struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	Name           string     `json:"name"`
	TriggerKeyword string     `json:"trigger_keyword"`
	Status         FlowStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsDefault reports whether this flow uses the catch-all trigger.
func (f *Flow) IsDefault() bool {
	return f.TriggerKeyword == TriggerDefault
}
