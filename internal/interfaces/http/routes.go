package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires every ingress onto the engine.
func SetupRoutes(r *gin.Engine, webhook *WebhookHandler, trigger *ManualTriggerHandler, conversations *ConversationHandler, mw *Middleware, healthcheck func() error) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(10 << 20)) // 10MB max request size

	// Provider webhook ingress (signature-authenticated)
	r.GET("/webhook", webhook.HandleVerification)
	r.POST("/webhook", webhook.HandleEvent)

	// Manual trigger ingress (token-authenticated, CORS-open)
	r.OPTIONS("/webhook/trigger", trigger.HandlePreflight)
	r.POST("/webhook/trigger", trigger.HandleTrigger)

	// Dashboard reads (JWT-authenticated)
	api := r.Group("/api")
	api.Use(mw.AuthRequired())
	{
		api.GET("/conversations", conversations.ListConversations)
		api.GET("/conversations/:contactId", conversations.GetConversation)
	}

	r.GET("/healthz", func(c *gin.Context) {
		if healthcheck != nil {
			if err := healthcheck(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
