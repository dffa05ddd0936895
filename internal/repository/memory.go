package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"waflow/internal/entities"
)

// In-memory store implementations. They mirror the Postgres repositories'
// semantics (unique keys, insert-or-fail find-or-create, tenant scoping)
// behind a mutex and back the test suites; nothing here touches a network.

type MemoryStore struct {
	mu       sync.Mutex
	tenants  []entities.Tenant
	contacts []entities.Contact
	flows    []entities.Flow
	sessions []entities.Session
	messages []entities.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) AddTenant(t entities.Tenant) entities.Tenant {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.tenants = append(m.tenants, t)
	return t
}

func (m *MemoryStore) AddFlow(f entities.Flow) entities.Flow {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	m.flows = append(m.flows, f)
	return f
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*entities.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tenants {
		if m.tenants[i].ID == id {
			t := m.tenants[i]
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) GetByPhoneNumberID(_ context.Context, phoneNumberID string) (*entities.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tenants {
		if m.tenants[i].PhoneNumberID == phoneNumberID {
			t := m.tenants[i]
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) List(_ context.Context) ([]entities.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Tenant(nil), m.tenants...), nil
}

func (m *MemoryStore) GetOrCreate(_ context.Context, tenantID, waID, name string) (*entities.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.contacts {
		if m.contacts[i].TenantID == tenantID && m.contacts[i].WaID == waID {
			if m.contacts[i].Name == "" && name != "" {
				m.contacts[i].Name = name
			}
			c := m.contacts[i]
			return &c, nil
		}
	}
	c := entities.Contact{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		WaID:      waID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	m.contacts = append(m.contacts, c)
	return &c, nil
}

func (m *MemoryStore) GetFlowByID(_ context.Context, id string) (*entities.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.flows {
		if m.flows[i].ID == id {
			f := m.flows[i]
			return &f, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListActiveByTenant(_ context.Context, tenantID string) ([]entities.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	flows := []entities.Flow{}
	for _, f := range m.flows {
		if f.TenantID == tenantID && f.Status == entities.FlowActive {
			flows = append(flows, f)
		}
	}
	// Insertion order stands in for (created_at, id).
	return flows, nil
}

func (m *MemoryStore) Get(_ context.Context, contactID, flowID string) (*entities.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findSessionLocked(contactID, flowID), nil
}

func (m *MemoryStore) findSessionLocked(contactID, flowID string) *entities.Session {
	for i := range m.sessions {
		if m.sessions[i].ContactID == contactID && m.sessions[i].FlowID == flowID {
			s := m.sessions[i]
			return &s
		}
	}
	return nil
}

func (m *MemoryStore) FindOrCreate(_ context.Context, tenantID, contactID, flowID string) (*entities.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing := m.findSessionLocked(contactID, flowID); existing != nil {
		return existing, false, nil
	}
	now := time.Now().UTC()
	s := entities.Session{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		ContactID: contactID,
		FlowID:    flowID,
		Status:    entities.SessionActive,
		Context:   json.RawMessage(`{}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions = append(m.sessions, s)
	return &s, true, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, sessionID string, status entities.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == sessionID {
			m.sessions[i].Status = status
			m.sessions[i].UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (m *MemoryStore) UpdateContext(_ context.Context, sessionID string, blob json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == sessionID {
			m.sessions[i].Context = append(json.RawMessage(nil), blob...)
			m.sessions[i].UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (m *MemoryStore) ListViewsByTenant(_ context.Context, tenantID string) ([]entities.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := []entities.SessionView{}
	for _, s := range m.sessions {
		if s.TenantID != tenantID {
			continue
		}
		v := entities.SessionView{Session: s}
		for _, c := range m.contacts {
			if c.ID == s.ContactID {
				v.ContactWaID = c.WaID
				v.ContactName = c.Name
			}
		}
		for _, f := range m.flows {
			if f.ID == s.FlowID {
				v.FlowName = f.Name
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func (m *MemoryStore) Record(_ context.Context, msg *entities.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.WaMessageID != "" {
		for _, existing := range m.messages {
			if existing.TenantID == msg.TenantID && existing.WaMessageID == msg.WaMessageID {
				return false, nil
			}
		}
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages = append(m.messages, *msg)
	return true, nil
}

func (m *MemoryStore) AttachSession(_ context.Context, messageID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == messageID {
			m.messages[i].SessionID = sessionID
		}
	}
	return nil
}

func (m *MemoryStore) UpdateStatusByWaID(_ context.Context, tenantID, waMessageID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].TenantID == tenantID && m.messages[i].WaMessageID == waMessageID {
			m.messages[i].Status = status
		}
	}
	return nil
}

// FlowStore adapts the store to the flow port; the tenant lookup already
// occupies GetByID on the struct itself.
func (m *MemoryStore) FlowStore() *MemoryFlowStore {
	return &MemoryFlowStore{m}
}

type MemoryFlowStore struct {
	m *MemoryStore
}

func (f *MemoryFlowStore) GetByID(ctx context.Context, id string) (*entities.Flow, error) {
	return f.m.GetFlowByID(ctx, id)
}

func (f *MemoryFlowStore) ListActiveByTenant(ctx context.Context, tenantID string) ([]entities.Flow, error) {
	return f.m.ListActiveByTenant(ctx, tenantID)
}

// Snapshot helpers for assertions.

func (m *MemoryStore) Sessions() []entities.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Session(nil), m.sessions...)
}

func (m *MemoryStore) Messages() []entities.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Message(nil), m.messages...)
}

func (m *MemoryStore) Contacts() []entities.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Contact(nil), m.contacts...)
}
