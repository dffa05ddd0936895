package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"waflow/internal/entities"
	"waflow/internal/repository"
	"waflow/internal/usecases"
)

type triggerFixture struct {
	engine *gin.Engine
	store  *repository.MemoryStore
	exec   *recordingExecutor
	tenant entities.Tenant
	flow   entities.Flow
}

func newTriggerFixture(t *testing.T) *triggerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	tenant := store.AddTenant(entities.Tenant{
		Name:          "Acme",
		PhoneNumberID: "105733331234",
		AppSecret:     "app-secret",
		VerifyToken:   "tenant-token",
	})
	flow := store.AddFlow(entities.Flow{
		TenantID:       tenant.ID,
		Name:           "Campaign",
		TriggerKeyword: "nevermatches",
		Status:         entities.FlowActive,
	})

	exec := &recordingExecutor{}
	log := zerolog.Nop()
	resolver := usecases.NewTenantResolver(store, "global-token", log)
	router := usecases.NewSessionRouter(store, store.FlowStore(), store, store, exec, time.Second, log)
	mw := NewMiddleware("jwt-secret", rate.Limit(100), 100)

	handler := NewManualTriggerHandler(resolver, router, store.FlowStore(), store, mw, log)
	engine := gin.New()
	engine.OPTIONS("/webhook/trigger", handler.HandlePreflight)
	engine.POST("/webhook/trigger", handler.HandleTrigger)

	return &triggerFixture{engine: engine, store: store, exec: exec, tenant: tenant, flow: flow}
}

func (f *triggerFixture) post(t *testing.T, url, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	f.engine.ServeHTTP(w, req)
	return w
}

func TestHandlePreflight(t *testing.T) {
	f := newTriggerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/webhook/trigger?flowId="+f.flow.ID, nil)
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Webhook-Token")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/webhook/trigger", nil)
	f.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "pre-flight without a flow target")
}

func TestHandleTrigger_TokenInHeader(t *testing.T) {
	f := newTriggerFixture(t)

	w := f.post(t, "/webhook/trigger?flowId="+f.flow.ID,
		`{"from":"5491122334455","message":"alta"}`,
		map[string]string{"X-Webhook-Token": "tenant-token"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), f.flow.ID)
	assert.Equal(t, 1, f.exec.callCount())
	require.Len(t, f.store.Sessions(), 1)
}

func TestHandleTrigger_TokenInQueryAndBody(t *testing.T) {
	f := newTriggerFixture(t)

	w := f.post(t, "/webhook/trigger?flowId="+f.flow.ID+"&token=tenant-token",
		`{"phone":"5491122334455","text":"alta"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code, "query token")

	w = f.post(t, "/webhook/trigger?flowId="+f.flow.ID,
		`{"wa_id":"5491122334455","keyword":"alta","token":"tenant-token"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code, "body token")

	assert.Equal(t, 2, f.exec.callCount())
}

func TestHandleTrigger_HeaderTokenOutranksBody(t *testing.T) {
	f := newTriggerFixture(t)

	// A valid body token cannot rescue a wrong header token.
	w := f.post(t, "/webhook/trigger?flowId="+f.flow.ID,
		`{"from":"5491122334455","message":"alta","token":"tenant-token"}`,
		map[string]string{"X-Webhook-Token": "wrong"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, f.exec.callCount())
}

func TestHandleTrigger_RejectsGlobalToken(t *testing.T) {
	f := newTriggerFixture(t)

	w := f.post(t, "/webhook/trigger?flowId="+f.flow.ID,
		`{"from":"5491122334455","message":"alta"}`,
		map[string]string{"X-Webhook-Token": "global-token"})

	assert.Equal(t, http.StatusForbidden, w.Code, "only the owning tenant's token is accepted")
}

func TestHandleTrigger_FlowNotFound(t *testing.T) {
	f := newTriggerFixture(t)

	w := f.post(t, "/webhook/trigger", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "missing flowId")

	w = f.post(t, "/webhook/trigger?flowId=not-a-uuid", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "malformed flowId")

	w = f.post(t, "/webhook/trigger?flowId="+uuid.NewString(),
		`{"from":"5491122334455","message":"alta"}`,
		map[string]string{"X-Webhook-Token": "tenant-token"})
	assert.Equal(t, http.StatusNotFound, w.Code, "unknown flowId")
}

func TestHandleTrigger_BadRequests(t *testing.T) {
	f := newTriggerFixture(t)
	auth := map[string]string{"X-Webhook-Token": "tenant-token"}

	w := f.post(t, "/webhook/trigger?flowId="+f.flow.ID, `{not json`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code, "invalid JSON")

	w = f.post(t, "/webhook/trigger?flowId="+f.flow.ID, `{"message":"alta"}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing contact")

	w = f.post(t, "/webhook/trigger?flowId="+f.flow.ID, `{"from":"5491122334455"}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing message")

	assert.Equal(t, 0, f.exec.callCount())
}

func TestHandleTrigger_RateLimited(t *testing.T) {
	f := newTriggerFixture(t)

	// One token in the bucket: the second call inside the window must bounce.
	handler := NewManualTriggerHandler(
		usecases.NewTenantResolver(f.store, "global-token", zerolog.Nop()),
		usecases.NewSessionRouter(f.store, f.store.FlowStore(), f.store, f.store, f.exec, time.Second, zerolog.Nop()),
		f.store.FlowStore(), f.store,
		NewMiddleware("jwt-secret", rate.Limit(0.001), 1),
		zerolog.Nop(),
	)
	engine := gin.New()
	engine.POST("/webhook/trigger", handler.HandleTrigger)
	f.engine = engine

	auth := map[string]string{"X-Webhook-Token": "tenant-token"}
	body := `{"from":"5491122334455","message":"alta"}`

	w := f.post(t, "/webhook/trigger?flowId="+f.flow.ID, body, auth)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.post(t, "/webhook/trigger?flowId="+f.flow.ID, body, auth)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
