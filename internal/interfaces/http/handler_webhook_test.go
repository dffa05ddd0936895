package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waflow/internal/entities"
	"waflow/internal/repository"
	"waflow/internal/usecases"
)

type recordingExecutor struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingExecutor) Execute(_ context.Context, _ *entities.Tenant, _ *entities.Contact, _ *entities.Session, _ string, _ entities.IncomingMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func (r *recordingExecutor) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type webhookFixture struct {
	engine *gin.Engine
	store  *repository.MemoryStore
	exec   *recordingExecutor
	tenant entities.Tenant
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	tenant := store.AddTenant(entities.Tenant{
		Name:          "Acme",
		PhoneNumberID: "105733331234",
		AppSecret:     "app-secret",
		VerifyToken:   "tenant-token",
	})
	store.AddFlow(entities.Flow{
		TenantID:       tenant.ID,
		Name:           "Welcome",
		TriggerKeyword: "hola",
		Status:         entities.FlowActive,
	})

	exec := &recordingExecutor{}
	log := zerolog.Nop()
	resolver := usecases.NewTenantResolver(store, "global-token", log)
	router := usecases.NewSessionRouter(store, store.FlowStore(), store, store, exec, time.Second, log)

	handler := NewWebhookHandler(resolver, router, store, log)
	engine := gin.New()
	engine.GET("/webhook", handler.HandleVerification)
	engine.POST("/webhook", handler.HandleEvent)

	return &webhookFixture{engine: engine, store: store, exec: exec, tenant: tenant}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func eventBody(phoneNumberID, from, text string) []byte {
	return []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "0", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "15550001111", "phone_number_id": %q},
			"contacts": [{"profile": {"name": "Ana"}, "wa_id": %q}],
			"messages": [{"from": %q, "id": "wamid.test.1", "timestamp": "1714560000", "type": "text", "text": {"body": %q}}]
		}}]}]
	}`, phoneNumberID, from, from, text))
}

func TestHandleVerification(t *testing.T) {
	f := newWebhookFixture(t)

	do := func(mode, token, challenge string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			fmt.Sprintf("/webhook?hub.mode=%s&hub.verify_token=%s&hub.challenge=%s", mode, token, challenge), nil)
		f.engine.ServeHTTP(w, req)
		return w
	}

	w := do("subscribe", "global-token", "12345")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())

	w = do("subscribe", "tenant-token", "67890")
	assert.Equal(t, http.StatusOK, w.Code, "per-tenant tokens are accepted")
	assert.Equal(t, "67890", w.Body.String())

	w = do("subscribe", "wrong", "12345")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do("unsubscribe", "global-token", "12345")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do("subscribe", "global-token", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvent_SignedMessageCreatesSessionAndExecutes(t *testing.T) {
	f := newWebhookFixture(t)
	body := eventBody(f.tenant.PhoneNumberID, "5491122334455", "Hola")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true}`, w.Body.String())

	contacts := f.store.Contacts()
	require.Len(t, contacts, 1)
	assert.Equal(t, "5491122334455", contacts[0].WaID)
	assert.Equal(t, "Ana", contacts[0].Name)

	sessions := f.store.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, entities.SessionActive, sessions[0].Status)
	assert.Equal(t, 1, f.exec.callCount())
}

func TestHandleEvent_InvalidSignatureRejected(t *testing.T) {
	f := newWebhookFixture(t)
	body := eventBody(f.tenant.PhoneNumberID, "5491122334455", "Hola")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("some-other-secret", body))
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.store.Contacts())
	assert.Empty(t, f.store.Sessions())
	assert.Equal(t, 0, f.exec.callCount())
}

func TestHandleEvent_UnknownChannelIdentifier(t *testing.T) {
	f := newWebhookFixture(t)
	body := eventBody("999999999999", "5491122334455", "Hola")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleEvent_MalformedPayloads(t *testing.T) {
	f := newWebhookFixture(t)

	post := func(body []byte) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))
		f.engine.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, post([]byte(``)).Code, "empty body")
	assert.Equal(t, http.StatusBadRequest, post([]byte(`{not json`)).Code, "invalid JSON")
	assert.Equal(t, http.StatusBadRequest, post([]byte(`{"entry":[]}`)).Code, "missing channel identifier")
}

func TestHandleEvent_StatusUpdateAppliesReceipt(t *testing.T) {
	f := newWebhookFixture(t)

	// Seed an outbound message awaiting its receipt.
	contact, err := f.store.GetOrCreate(context.Background(), f.tenant.ID, "5491122334455", "")
	require.NoError(t, err)
	_, err = f.store.Record(context.Background(), &entities.Message{
		TenantID:    f.tenant.ID,
		ContactID:   contact.ID,
		WaMessageID: "wamid.out.9",
		Direction:   entities.DirectionOut,
		Type:        "text",
		Body:        "hello",
	})
	require.NoError(t, err)

	body := []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "0", "changes": [{"field": "messages", "value": {
			"metadata": {"phone_number_id": %q},
			"statuses": [{"id": "wamid.out.9", "status": "delivered", "timestamp": "1714560000", "recipient_id": "5491122334455"}]
		}}]}]
	}`, f.tenant.PhoneNumberID))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	msgs := f.store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "delivered", msgs[0].Status)
	assert.Equal(t, 0, f.exec.callCount(), "receipts never trigger flows")
}
