package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookPayload_Events(t *testing.T) {
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "0", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550001111", "phone_number_id": "105733331234"},
			"contacts": [{"profile": {"name": "Ana"}, "wa_id": "5491122334455"}],
			"messages": [
				{"from": "5491122334455", "id": "wamid.1", "timestamp": "1714560000", "type": "text",
				 "text": {"body": "Hola"}},
				{"from": "5491122334455", "id": "wamid.2", "timestamp": "1714560060", "type": "interactive",
				 "interactive": {"type": "button_reply", "button_reply": {"id": "opt-1", "title": "Ver menú"}}}
			],
			"statuses": [
				{"id": "wamid.out.7", "status": "read", "timestamp": "1714560120", "recipient_id": "5491122334455"}
			]
		}}]}]
	}`)

	p, err := ParseWebhookPayload(body)
	require.NoError(t, err)
	assert.Equal(t, "105733331234", p.PhoneNumberID())

	events := p.Events()
	require.Len(t, events, 3)

	text := events[0]
	assert.Equal(t, InboundText, text.Kind)
	assert.Equal(t, "5491122334455", text.From)
	assert.Equal(t, "Ana", text.ProfileName)
	assert.Equal(t, "Hola", text.Text)
	assert.Equal(t, time.Unix(1714560000, 0).UTC(), text.Timestamp)

	interactive := events[1]
	assert.Equal(t, InboundInteractive, interactive.Kind)
	require.NotNil(t, interactive.Reply)
	assert.Equal(t, "button_reply", interactive.Reply.Type)
	assert.Equal(t, "opt-1", interactive.Reply.ID)
	assert.Equal(t, "Ver menú", interactive.Text, "reply title doubles as the trigger text")

	receipt := events[2]
	assert.Equal(t, InboundStatus, receipt.Kind)
	assert.Equal(t, "wamid.out.7", receipt.WaMessageID)
	assert.Equal(t, "read", receipt.Status)
}

func TestParseWebhookPayload_Defensive(t *testing.T) {
	_, err := ParseWebhookPayload(nil)
	assert.Error(t, err)

	_, err = ParseWebhookPayload([]byte(`{broken`))
	assert.Error(t, err)

	p, err := ParseWebhookPayload([]byte(`{"object":"whatsapp_business_account","entry":[]}`))
	require.NoError(t, err)
	assert.Empty(t, p.PhoneNumberID())
	assert.Empty(t, p.Events())
}

func TestNormalizeMessage_UnknownTypeStillRecorded(t *testing.T) {
	p, err := ParseWebhookPayload([]byte(`{
		"entry": [{"changes": [{"value": {
			"metadata": {"phone_number_id": "105"},
			"messages": [{"from": "549", "id": "wamid.9", "timestamp": "1714560000", "type": "audio"}]
		}}]}]
	}`))
	require.NoError(t, err)

	events := p.Events()
	require.Len(t, events, 1)
	assert.Equal(t, InboundText, events[0].Kind)
	assert.Equal(t, "audio", events[0].Type)
	assert.Empty(t, events[0].Text)
}
