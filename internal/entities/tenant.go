package entities

import "time"

// Tenant is an independent customer account. It owns exactly one WhatsApp
// Cloud API channel identity (phone_number_id) plus the credentials needed
// to authenticate inbound webhooks and call the Graph API.
type Tenant struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	PhoneNumberID string    `json:"phone_number_id"` // Cloud API channel identifier, unique across tenants
	AppSecret     string    `json:"-"`               // HMAC secret for webhook signatures
	VerifyToken   string    `json:"-"`               // handshake / manual-trigger token
	AccessToken   string    `json:"-"`               // Graph API bearer token
	CreatedAt     time.Time `json:"created_at"`
}
