package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/usecases"
)

// WebhookHandler is the provider-facing ingress: the GET verification
// handshake and POST event deliveries.
type WebhookHandler struct {
	resolver *usecases.TenantResolver
	router   *usecases.SessionRouter
	messages interfaces.MessageStore
	log      zerolog.Logger
}

func NewWebhookHandler(resolver *usecases.TenantResolver, router *usecases.SessionRouter, messages interfaces.MessageStore, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		resolver: resolver,
		router:   router,
		messages: messages,
		log:      log,
	}
}

// HandleVerification answers the provider's subscription handshake: echo
// hub.challenge when the verify token belongs to us or any tenant.
func (h *WebhookHandler) HandleVerification(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || challenge == "" {
		c.String(http.StatusBadRequest, "Invalid verification request")
		return
	}
	if !h.resolver.CheckVerifyToken(c.Request.Context(), token) {
		c.String(http.StatusForbidden, "Verification token mismatch")
		return
	}
	c.String(http.StatusOK, challenge)
}

// HandleEvent ingests one webhook delivery. A structurally valid,
// authenticated event is always acknowledged with 200 — flow execution
// failures are recorded on the session, never surfaced to the provider,
// so its retry machinery is not tripped by one broken flow.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	// Signature verification runs over the exact raw bytes; re-serialized
	// JSON is not guaranteed to reproduce them.
	rawBody, err := c.GetRawData()
	if err != nil || len(rawBody) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty request body"})
		return
	}

	payload, err := entities.ParseWebhookPayload(rawBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	phoneNumberID := payload.PhoneNumberID()
	if phoneNumberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing channel identifier"})
		return
	}

	ctx := c.Request.Context()
	tenant, err := h.resolver.ResolveByPhoneNumberID(ctx, phoneNumberID)
	if err != nil {
		h.log.Error().Err(err).Str("phone_number_id", phoneNumberID).Msg("tenant resolution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if tenant == nil {
		// No tenant, no secret to check a signature against.
		c.JSON(http.StatusNotFound, gin.H{"error": "No tenant configured for channel"})
		return
	}

	signature := c.GetHeader("X-Hub-Signature-256")
	if signature == "" {
		signature = c.GetHeader("X-Hub-Signature")
	}
	if !usecases.VerifySignature(rawBody, signature, tenant.AppSecret) {
		h.log.Warn().
			Str("tenant_id", tenant.ID).
			Str("phone_number_id", phoneNumberID).
			Msg("webhook signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	for _, ev := range payload.Events() {
		switch ev.Kind {
		case entities.InboundStatus:
			if err := h.messages.UpdateStatusByWaID(ctx, tenant.ID, ev.WaMessageID, ev.Status); err != nil {
				h.log.Error().Err(err).
					Str("tenant_id", tenant.ID).
					Str("wa_message_id", ev.WaMessageID).
					Msg("apply delivery receipt failed")
			}
		default:
			result, err := h.router.Route(ctx, tenant, ev)
			if err != nil {
				h.log.Error().Err(err).
					Str("tenant_id", tenant.ID).
					Str("contact", ev.From).
					Msg("routing inbound message failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
				return
			}
			h.log.Info().
				Str("tenant_id", tenant.ID).
				Str("contact_id", result.ContactID).
				Str("session_id", result.SessionID).
				Bool("executed", result.Executed).
				Bool("duplicate", result.Duplicate).
				Msg("inbound message routed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
