package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"waflow/internal/entities"
	"waflow/internal/usecases"
)

// ManualTriggerHandler lets external systems inject a synthetic inbound
// message into one named flow. Callers are arbitrary third parties, so the
// endpoint answers pre-flight CORS itself with a fixed permissive policy,
// and authenticates with the owning tenant's token — never the global one,
// so a leaked per-tenant trigger URL stays scoped to that tenant.
type ManualTriggerHandler struct {
	resolver *usecases.TenantResolver
	router   *usecases.SessionRouter
	flows    flowLookup
	tenants  tenantLookup
	mw       *Middleware
	log      zerolog.Logger
}

type flowLookup interface {
	GetByID(ctx context.Context, id string) (*entities.Flow, error)
}

type tenantLookup interface {
	GetByID(ctx context.Context, id string) (*entities.Tenant, error)
}

func NewManualTriggerHandler(resolver *usecases.TenantResolver, router *usecases.SessionRouter, flows flowLookup, tenants tenantLookup, mw *Middleware, log zerolog.Logger) *ManualTriggerHandler {
	return &ManualTriggerHandler{
		resolver: resolver,
		router:   router,
		flows:    flows,
		tenants:  tenants,
		mw:       mw,
		log:      log,
	}
}

func setTriggerCORS(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Webhook-Token")
	c.Writer.Header().Set("Access-Control-Max-Age", "86400")
}

// HandlePreflight answers OPTIONS. A pre-flight without a target flow is
// meaningless, so it 404s like the POST would.
func (h *ManualTriggerHandler) HandlePreflight(c *gin.Context) {
	setTriggerCORS(c)
	if c.Query("flowId") == "" {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// triggerRequest accepts the loose field names third-party callers use.
type triggerRequest struct {
	From  string `json:"from"`
	Phone string `json:"phone"`
	WaID  string `json:"wa_id"`

	Message string `json:"message"`
	Text    string `json:"text"`
	Keyword string `json:"keyword"`
	Body    string `json:"body"`

	Token string `json:"token"`
}

func (r *triggerRequest) contact() string {
	for _, v := range []string{r.From, r.Phone, r.WaID} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r *triggerRequest) message() string {
	for _, v := range []string{r.Message, r.Text, r.Keyword, r.Body} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (h *ManualTriggerHandler) HandleTrigger(c *gin.Context) {
	setTriggerCORS(c)

	flowID := c.Query("flowId")
	if !ValidFlowID(flowID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flow not found"})
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	ctx := c.Request.Context()
	flow, err := h.flows.GetByID(ctx, flowID)
	if err != nil {
		h.log.Error().Err(err).Str("flow_id", flowID).Msg("flow lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if flow == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flow not found"})
		return
	}

	// Token priority: custom header, query parameter, body field.
	token := c.GetHeader("X-Webhook-Token")
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		token = req.Token
	}
	if !h.resolver.CheckTenantToken(ctx, flow.TenantID, token) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid token"})
		return
	}

	from := NormalizePhone(req.contact())
	text := SanitizeString(TruncateString(req.message(), MaxMessageLength))
	if from == "" || text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing contact or message field"})
		return
	}

	if !h.mw.AllowTenant(flow.TenantID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	tenant, err := h.tenants.GetByID(ctx, flow.TenantID)
	if err != nil || tenant == nil {
		h.log.Error().Err(err).Str("tenant_id", flow.TenantID).Msg("tenant lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	result, err := h.router.TriggerFlow(ctx, tenant, flow, from, text)
	if err != nil {
		h.log.Error().Err(err).
			Str("tenant_id", tenant.ID).
			Str("flow_id", flow.ID).
			Msg("manual trigger failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Downstream failure"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"flowId":    flow.ID,
		"sessionId": result.SessionID,
		"contactId": result.ContactID,
	})
}
