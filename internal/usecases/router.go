package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
)

// SessionRouter decides, for each inbound message, whether a flow should
// run and against which session. Per message at most one flow executes:
// flows are visited in (created_at, id) order with catch-all "default"
// flows moved to the back, and the first flow whose session is live or
// whose trigger matches wins.
type SessionRouter struct {
	contacts interfaces.ContactStore
	flows    interfaces.FlowStore
	sessions interfaces.SessionStore
	messages interfaces.MessageStore
	executor interfaces.FlowExecutor

	execTimeout time.Duration
	log         zerolog.Logger
}

func NewSessionRouter(
	contacts interfaces.ContactStore,
	flows interfaces.FlowStore,
	sessions interfaces.SessionStore,
	messages interfaces.MessageStore,
	executor interfaces.FlowExecutor,
	execTimeout time.Duration,
	log zerolog.Logger,
) *SessionRouter {
	if execTimeout <= 0 {
		execTimeout = 25 * time.Second
	}
	return &SessionRouter{
		contacts:    contacts,
		flows:       flows,
		sessions:    sessions,
		messages:    messages,
		executor:    executor,
		execTimeout: execTimeout,
		log:         log,
	}
}

// RouteResult reports what one inbound message produced.
type RouteResult struct {
	ContactID string `json:"contact_id"`
	SessionID string `json:"session_id,omitempty"`
	FlowID    string `json:"flow_id,omitempty"`
	Executed  bool   `json:"executed"`
	Duplicate bool   `json:"duplicate"`
}

// Route runs the state machine for one inbound message event. Flow
// execution errors are absorbed here: the session is marked errored and
// the result still reports success, so the webhook ack is never blocked by
// a broken flow. Only store failures surface as errors.
func (r *SessionRouter) Route(ctx context.Context, tenant *entities.Tenant, ev entities.InboundEvent) (*RouteResult, error) {
	contact, err := r.contacts.GetOrCreate(ctx, tenant.ID, ev.From, ev.ProfileName)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}

	msg := &entities.Message{
		TenantID:    tenant.ID,
		ContactID:   contact.ID,
		WaMessageID: ev.WaMessageID,
		Direction:   entities.DirectionIn,
		Type:        ev.Type,
		Body:        ev.Text,
		CreatedAt:   ev.Timestamp,
	}
	inserted, err := r.messages.Record(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("record inbound message: %w", err)
	}
	if !inserted {
		// Provider redelivery of an already-processed message id.
		r.log.Debug().
			Str("tenant_id", tenant.ID).
			Str("wa_message_id", ev.WaMessageID).
			Msg("duplicate delivery ignored")
		return &RouteResult{ContactID: contact.ID, Duplicate: true}, nil
	}

	flows, err := r.flows.ListActiveByTenant(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("list active flows: %w", err)
	}

	for _, flow := range orderFlows(flows) {
		session, err := r.sessions.Get(ctx, contact.ID, flow.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup session: %w", err)
		}

		live := session != nil &&
			(session.Status == entities.SessionActive || session.Status == entities.SessionPaused)
		if !live && !MatchesTrigger(ev.Text, flow.TriggerKeyword) {
			continue
		}

		if session == nil {
			session, _, err = r.sessions.FindOrCreate(ctx, tenant.ID, contact.ID, flow.ID)
			if err != nil {
				return nil, fmt.Errorf("create session: %w", err)
			}
		}
		if err := r.messages.AttachSession(ctx, msg.ID, session.ID); err != nil {
			return nil, fmt.Errorf("attach message to session: %w", err)
		}

		r.execute(ctx, tenant, contact, session, ev.Text, ev.Meta())
		return &RouteResult{
			ContactID: contact.ID,
			SessionID: session.ID,
			FlowID:    flow.ID,
			Executed:  true,
		}, nil
	}

	// Nothing matched; the message stays persisted unattributed.
	return &RouteResult{ContactID: contact.ID}, nil
}

// TriggerFlow is the manual-trigger path: one named flow, no trigger
// matching — calling the endpoint is itself the trigger.
func (r *SessionRouter) TriggerFlow(ctx context.Context, tenant *entities.Tenant, flow *entities.Flow, from, text string) (*RouteResult, error) {
	contact, err := r.contacts.GetOrCreate(ctx, tenant.ID, from, "")
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}

	session, _, err := r.sessions.FindOrCreate(ctx, tenant.ID, contact.ID, flow.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	msg := &entities.Message{
		TenantID:  tenant.ID,
		ContactID: contact.ID,
		SessionID: session.ID,
		Direction: entities.DirectionIn,
		Type:      "manual",
		Body:      text,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.messages.Record(ctx, msg); err != nil {
		return nil, fmt.Errorf("record manual message: %w", err)
	}

	r.execute(ctx, tenant, contact, session, text, entities.IncomingMeta{Type: "manual", Text: text})
	return &RouteResult{
		ContactID: contact.ID,
		SessionID: session.ID,
		FlowID:    flow.ID,
		Executed:  true,
	}, nil
}

// execute invokes the flow engine under a bounded timeout and records a
// failure on the session instead of propagating it.
func (r *SessionRouter) execute(ctx context.Context, tenant *entities.Tenant, contact *entities.Contact, session *entities.Session, text string, meta entities.IncomingMeta) {
	execCtx, cancel := context.WithTimeout(ctx, r.execTimeout)
	defer cancel()

	if err := r.executor.Execute(execCtx, tenant, contact, session, text, meta); err != nil {
		r.log.Error().Err(err).
			Str("tenant_id", tenant.ID).
			Str("contact_id", session.ContactID).
			Str("flow_id", session.FlowID).
			Str("session_id", session.ID).
			Msg("flow execution failed")
		if uerr := r.sessions.UpdateStatus(ctx, session.ID, entities.SessionErrored); uerr != nil {
			r.log.Error().Err(uerr).Str("session_id", session.ID).Msg("mark session errored failed")
		}
	}
}

// orderFlows keeps the store's (created_at, id) ordering but moves
// catch-all flows behind every specific trigger.
func orderFlows(flows []entities.Flow) []entities.Flow {
	ordered := make([]entities.Flow, 0, len(flows))
	var defaults []entities.Flow
	for _, f := range flows {
		if f.IsDefault() {
			defaults = append(defaults, f)
			continue
		}
		ordered = append(ordered, f)
	}
	return append(ordered, defaults...)
}
