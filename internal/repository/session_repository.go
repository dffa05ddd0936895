package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, tenant_id, contact_id, flow_id, status, context, created_at, updated_at"

func (r *SessionRepository) Get(ctx context.Context, contactID, flowID string) (*entities.Session, error) {
	var s entities.Session
	err := r.db.QueryRow(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE contact_id = $1 AND flow_id = $2",
		contactID, flowID).
		Scan(&s.ID, &s.TenantID, &s.ContactID, &s.FlowID, &s.Status, &s.Context, &s.CreatedAt, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindOrCreate is the conditional upsert behind session uniqueness: the
// insert defers to the unique key on (contact_id, flow_id), and the loser
// of a concurrent race falls through to reading the winner's row.
func (r *SessionRepository) FindOrCreate(ctx context.Context, tenantID, contactID, flowID string) (*entities.Session, bool, error) {
	var s entities.Session
	err := r.db.QueryRow(ctx, `
		INSERT INTO sessions (id, tenant_id, contact_id, flow_id, status, context)
		VALUES ($1, $2, $3, $4, $5, '{}')
		ON CONFLICT (contact_id, flow_id) DO NOTHING
		RETURNING `+sessionColumns+`
	`, uuid.NewString(), tenantID, contactID, flowID, entities.SessionActive).
		Scan(&s.ID, &s.TenantID, &s.ContactID, &s.FlowID, &s.Status, &s.Context, &s.CreatedAt, &s.UpdatedAt)
	if err == nil {
		return &s, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	existing, err := r.Get(ctx, contactID, flowID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, sessionID string, status entities.SessionStatus) error {
	_, err := r.db.Exec(ctx,
		"UPDATE sessions SET status = $1, updated_at = NOW() WHERE id = $2",
		status, sessionID)
	return err
}

func (r *SessionRepository) UpdateContext(ctx context.Context, sessionID string, blob json.RawMessage) error {
	_, err := r.db.Exec(ctx,
		"UPDATE sessions SET context = $1, updated_at = NOW() WHERE id = $2",
		blob, sessionID)
	return err
}

// ListViewsByTenant joins sessions with their contact and flow, the input
// shape for conversation reconstruction.
func (r *SessionRepository) ListViewsByTenant(ctx context.Context, tenantID string) ([]entities.SessionView, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.tenant_id, s.contact_id, s.flow_id, s.status, s.context, s.created_at, s.updated_at,
		       c.wa_id, c.name, f.name
		FROM sessions s
		JOIN contacts c ON c.id = s.contact_id
		JOIN flows f ON f.id = s.flow_id
		WHERE s.tenant_id = $1
		ORDER BY s.updated_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []entities.SessionView{}
	for rows.Next() {
		var v entities.SessionView
		if err := rows.Scan(&v.ID, &v.TenantID, &v.ContactID, &v.FlowID, &v.Status, &v.Context,
			&v.CreatedAt, &v.UpdatedAt, &v.ContactWaID, &v.ContactName, &v.FlowName); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
