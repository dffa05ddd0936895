package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// WhatsApp Cloud API webhook payload shapes. Only the fields the router
// needs are modeled; everything else in the provider payload is ignored.

type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

type WebhookMessage struct {
	From        string `json:"from"`
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"` // unix seconds as string
	Type        string `json:"type"`
	Text        *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button,omitempty"`
}

type WebhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"` // sent, delivered, read, failed
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// InboundKind tags the normalized event union.
type InboundKind string

const (
	InboundText        InboundKind = "text"
	InboundInteractive InboundKind = "interactive"
	InboundStatus      InboundKind = "status"
)

// InteractiveReply describes a button or list selection.
type InteractiveReply struct {
	Type  string `json:"type"` // button_reply | list_reply
	ID    string `json:"id"`
	Title string `json:"title"`
}

// IncomingMeta is the normalized descriptor handed to the flow engine
// alongside the raw message text.
type IncomingMeta struct {
	Type  string            `json:"type"`
	Text  string            `json:"text"`
	Reply *InteractiveReply `json:"reply,omitempty"`
}

// InboundEvent is one normalized event extracted from a webhook delivery:
// either an inbound message (text / interactive) or a delivery receipt.
type InboundEvent struct {
	Kind        InboundKind
	From        string // wa_id of the sender (messages only)
	ProfileName string
	WaMessageID string
	Type        string // provider message type
	Text        string
	Reply       *InteractiveReply
	Timestamp   time.Time

	// Receipt fields (Kind == InboundStatus).
	Status      string
	RecipientID string
}

// Meta builds the engine-facing descriptor for a message event.
func (e *InboundEvent) Meta() IncomingMeta {
	return IncomingMeta{Type: e.Type, Text: e.Text, Reply: e.Reply}
}

// ParseWebhookPayload decodes a raw delivery body. It does not validate the
// channel identifier; callers reject payloads where PhoneNumberID is empty.
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty webhook body")
	}
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	return &p, nil
}

// PhoneNumberID returns the channel identifier of the first change block,
// or "" when the payload carries none.
func (p *WebhookPayload) PhoneNumberID() string {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if id := change.Value.Metadata.PhoneNumberID; id != "" {
				return id
			}
		}
	}
	return ""
}

// Events flattens all change blocks into normalized inbound events.
// Unrecognized message types still produce an event (Kind text with empty
// body) so they are persisted and visible; they simply won't match triggers.
func (p *WebhookPayload) Events() []InboundEvent {
	var events []InboundEvent
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				events = append(events, normalizeMessage(m, names[m.From]))
			}
			for _, s := range change.Value.Statuses {
				events = append(events, InboundEvent{
					Kind:        InboundStatus,
					WaMessageID: s.ID,
					Status:      s.Status,
					RecipientID: s.RecipientID,
					Timestamp:   parseUnixTimestamp(s.Timestamp),
				})
			}
		}
	}
	return events
}

func normalizeMessage(m WebhookMessage, profileName string) InboundEvent {
	ev := InboundEvent{
		Kind:        InboundText,
		From:        m.From,
		ProfileName: profileName,
		WaMessageID: m.ID,
		Type:        m.Type,
		Timestamp:   parseUnixTimestamp(m.Timestamp),
	}
	switch {
	case m.Text != nil:
		ev.Text = m.Text.Body
	case m.Interactive != nil:
		ev.Kind = InboundInteractive
		reply := &InteractiveReply{Type: m.Interactive.Type}
		if m.Interactive.ButtonReply != nil {
			reply.Type = "button_reply"
			reply.ID = m.Interactive.ButtonReply.ID
			reply.Title = m.Interactive.ButtonReply.Title
		} else if m.Interactive.ListReply != nil {
			reply.Type = "list_reply"
			reply.ID = m.Interactive.ListReply.ID
			reply.Title = m.Interactive.ListReply.Title
		}
		ev.Reply = reply
		ev.Text = reply.Title
	case m.Button != nil:
		ev.Kind = InboundInteractive
		ev.Reply = &InteractiveReply{Type: "button", ID: m.Button.Payload, Title: m.Button.Text}
		ev.Text = m.Button.Text
	}
	return ev
}

func parseUnixTimestamp(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
