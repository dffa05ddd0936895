package interfaces

import (
	"context"
	"encoding/json"

	"waflow/internal/entities"
)

// Store ports. Implementations return (nil, nil) for lookups that find
// nothing; errors are reserved for transport/query failures. All reads and
// writes are tenant-scoped by the caller-supplied ids.

type TenantStore interface {
	GetByID(ctx context.Context, id string) (*entities.Tenant, error)
	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*entities.Tenant, error)
	List(ctx context.Context) ([]entities.Tenant, error)
}

type ContactStore interface {
	// GetOrCreate resolves the contact for (tenant, waID), creating it on
	// first sight. A non-empty name updates a previously empty one.
	GetOrCreate(ctx context.Context, tenantID, waID, name string) (*entities.Contact, error)
}

type FlowStore interface {
	GetByID(ctx context.Context, id string) (*entities.Flow, error)
	// ListActiveByTenant returns active flows ordered by (created_at, id)
	// ascending. The ordering is load-bearing: the router executes the
	// first flow whose condition holds.
	ListActiveByTenant(ctx context.Context, tenantID string) ([]entities.Flow, error)
}

type SessionStore interface {
	Get(ctx context.Context, contactID, flowID string) (*entities.Session, error)
	// FindOrCreate atomically creates the session for (contact, flow) or
	// returns the existing one when a concurrent delivery won the insert.
	// The second result reports whether this call created it.
	FindOrCreate(ctx context.Context, tenantID, contactID, flowID string) (*entities.Session, bool, error)
	UpdateStatus(ctx context.Context, sessionID string, status entities.SessionStatus) error
	UpdateContext(ctx context.Context, sessionID string, blob json.RawMessage) error
	ListViewsByTenant(ctx context.Context, tenantID string) ([]entities.SessionView, error)
}

type MessageStore interface {
	// Record persists an inbound message. Returns false without error when
	// the provider message id was already recorded for this tenant
	// (duplicate webhook delivery).
	Record(ctx context.Context, msg *entities.Message) (bool, error)
	AttachSession(ctx context.Context, messageID, sessionID string) error
	// UpdateStatusByWaID applies a delivery receipt to a recorded message.
	UpdateStatusByWaID(ctx context.Context, tenantID, waMessageID, status string) error
}

// FlowExecutor runs one step of a flow against a session. The engine itself
// lives outside this service; implementations adapt it. Execute must honor
// ctx cancellation since it may call the provider's API.
type FlowExecutor interface {
	Execute(ctx context.Context, tenant *entities.Tenant, contact *entities.Contact, session *entities.Session, text string, meta entities.IncomingMeta) error
}
