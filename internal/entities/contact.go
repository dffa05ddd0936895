package entities

import "time"

// Contact is one end user (phone number) scoped to a single tenant.
// Created lazily on the first inbound message from an unseen address.
type Contact struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	WaID      string    `json:"wa_id"` // phone number in wa_id form, e.g. "5491122334455"
	Name      string    `json:"name"`  // profile name from the provider, may be empty
	CreatedAt time.Time `json:"created_at"`
}
