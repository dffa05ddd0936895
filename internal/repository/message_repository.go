package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Record persists an inbound or outbound message. Messages carrying a
// provider id insert against the per-tenant unique index on
// wa_message_id, so a redelivered webhook reports inserted=false instead
// of routing twice.
func (r *MessageRepository) Record(ctx context.Context, msg *entities.Message) (bool, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, tenant_id, contact_id, session_id, wa_message_id, direction, msg_type, body, status, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, wa_message_id) WHERE wa_message_id <> '' DO NOTHING
	`, msg.ID, msg.TenantID, msg.ContactID, msg.SessionID, msg.WaMessageID,
		msg.Direction, msg.Type, msg.Body, msg.Status, msg.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MessageRepository) AttachSession(ctx context.Context, messageID, sessionID string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE messages SET session_id = $1 WHERE id = $2", sessionID, messageID)
	return err
}

// UpdateStatusByWaID applies a delivery receipt to the outbound message it
// refers to. Receipts for unknown ids are a no-op.
func (r *MessageRepository) UpdateStatusByWaID(ctx context.Context, tenantID, waMessageID, status string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE messages SET status = $1 WHERE tenant_id = $2 AND wa_message_id = $3",
		status, tenantID, waMessageID)
	return err
}
