package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

// GetOrCreate inserts the contact on first sight; the unique key on
// (tenant_id, wa_id) makes concurrent first messages converge on one row.
// A non-empty profile name fills in a previously empty one.
func (r *ContactRepository) GetOrCreate(ctx context.Context, tenantID, waID, name string) (*entities.Contact, error) {
	var c entities.Contact
	err := r.db.QueryRow(ctx, `
		INSERT INTO contacts (id, tenant_id, wa_id, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, wa_id) DO UPDATE
			SET name = CASE WHEN contacts.name = '' AND EXCLUDED.name <> '' THEN EXCLUDED.name ELSE contacts.name END
		RETURNING id, tenant_id, wa_id, name, created_at
	`, uuid.NewString(), tenantID, waID, name).Scan(&c.ID, &c.TenantID, &c.WaID, &c.Name, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
