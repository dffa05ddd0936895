package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/usecases"
)

// ConversationHandler serves the dashboard's conversation reads: session
// logs folded into per-contact timelines. Tenant identity comes from the
// bearer token, never from the request, so cross-tenant reads are
// impossible by construction.
type ConversationHandler struct {
	sessions interfaces.SessionStore
	log      zerolog.Logger
}

func NewConversationHandler(sessions interfaces.SessionStore, log zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{sessions: sessions, log: log}
}

// ListConversations returns one summary per contact, most recent activity
// first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	views, err := h.sessions.ListViewsByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error().Err(err).Str("tenant_id", tenantID).Msg("list sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": usecases.BuildConversations(views)})
}

// GetConversation returns a single contact's merged timeline.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	contactID := c.Param("contactId")

	views, err := h.sessions.ListViewsByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.log.Error().Err(err).Str("tenant_id", tenantID).Msg("list sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	scoped := []entities.SessionView{}
	for _, v := range views {
		if v.ContactID == contactID {
			scoped = append(scoped, v)
		}
	}
	summaries := usecases.BuildConversations(scoped)
	if len(summaries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, summaries[0])
}
