package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
)

// EchoFlowExecutor is the built-in flow-execution adapter. The real engine
// runs as a separate service behind the FlowExecutor port; this adapter
// keeps the contract honest end to end: it appends the inbound event to
// the session's "_meta.history" log, sends a plain acknowledgment over the
// Graph API, records the outbound message, and persists the mutated
// context blob.
type EchoFlowExecutor struct {
	graph    *GraphClient
	sessions interfaces.SessionStore
	messages interfaces.MessageStore
	log      zerolog.Logger

	// ReplyBody is the acknowledgment text; empty disables the outbound send.
	ReplyBody string
}

func NewEchoFlowExecutor(graph *GraphClient, sessions interfaces.SessionStore, messages interfaces.MessageStore, log zerolog.Logger) *EchoFlowExecutor {
	return &EchoFlowExecutor{
		graph:     graph,
		sessions:  sessions,
		messages:  messages,
		log:       log,
		ReplyBody: "👋 We received your message and will get back to you shortly.",
	}
}

func (e *EchoFlowExecutor) Execute(ctx context.Context, tenant *entities.Tenant, contact *entities.Contact, session *entities.Session, text string, meta entities.IncomingMeta) error {
	blob, err := appendHistory(session.Context, historyRecord{
		Direction: "in",
		Type:      meta.Type,
		Payload:   inboundPayload(text, meta),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("append inbound history: %w", err)
	}

	if e.ReplyBody != "" && tenant.AccessToken != "" {
		waID, err := e.graph.SendText(ctx, tenant.PhoneNumberID, tenant.AccessToken, contact.WaID, e.ReplyBody)
		if err != nil {
			// Persist what we have before surfacing the failure.
			if uerr := e.sessions.UpdateContext(ctx, session.ID, blob); uerr != nil {
				e.log.Error().Err(uerr).Str("session_id", session.ID).Msg("persist context failed")
			}
			return fmt.Errorf("send acknowledgment: %w", err)
		}

		if _, err := e.messages.Record(ctx, &entities.Message{
			TenantID:    tenant.ID,
			ContactID:   contact.ID,
			SessionID:   session.ID,
			WaMessageID: waID,
			Direction:   entities.DirectionOut,
			Type:        "text",
			Body:        e.ReplyBody,
		}); err != nil {
			e.log.Error().Err(err).Str("session_id", session.ID).Msg("record outbound message failed")
		}

		blob, err = appendHistory(blob, historyRecord{
			Direction: "out",
			Type:      "text",
			Payload:   map[string]any{"text": map[string]any{"body": e.ReplyBody}},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("append outbound history: %w", err)
		}
	}

	if err := e.sessions.UpdateContext(ctx, session.ID, blob); err != nil {
		return fmt.Errorf("persist session context: %w", err)
	}
	session.Context = blob
	return nil
}

type historyRecord struct {
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

func inboundPayload(text string, meta entities.IncomingMeta) map[string]any {
	payload := map[string]any{"text": map[string]any{"body": text}}
	if meta.Reply != nil {
		payload["reply"] = map[string]any{
			"type":  meta.Reply.Type,
			"id":    meta.Reply.ID,
			"title": meta.Reply.Title,
		}
	}
	return payload
}

// appendHistory rewrites the context blob with one more "_meta.history"
// entry, preserving every other key the engine stored.
func appendHistory(blob json.RawMessage, rec historyRecord) (json.RawMessage, error) {
	root := map[string]json.RawMessage{}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &root); err != nil {
			return nil, fmt.Errorf("decode context: %w", err)
		}
	}

	meta := map[string]json.RawMessage{}
	if raw, ok := root["_meta"]; ok {
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("decode context meta: %w", err)
		}
	}

	var history []json.RawMessage
	if raw, ok := meta["history"]; ok {
		if err := json.Unmarshal(raw, &history); err != nil {
			return nil, fmt.Errorf("decode history log: %w", err)
		}
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	history = append(history, encoded)

	if meta["history"], err = json.Marshal(history); err != nil {
		return nil, err
	}
	if root["_meta"], err = json.Marshal(meta); err != nil {
		return nil, err
	}
	return json.Marshal(root)
}
