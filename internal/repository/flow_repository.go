package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

type FlowRepository struct {
	db *pgxpool.Pool
}

func NewFlowRepository(db *pgxpool.Pool) *FlowRepository {
	return &FlowRepository{db: db}
}

const flowColumns = "id, tenant_id, name, trigger_keyword, status, created_at"

func (r *FlowRepository) Create(ctx context.Context, f *entities.Flow) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = entities.FlowDraft
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO flows (id, tenant_id, name, trigger_keyword, status)
		VALUES ($1, $2, $3, $4, $5)
	`, f.ID, f.TenantID, f.Name, f.TriggerKeyword, f.Status)
	return err
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*entities.Flow, error) {
	var f entities.Flow
	err := r.db.QueryRow(ctx,
		"SELECT "+flowColumns+" FROM flows WHERE id = $1", id).
		Scan(&f.ID, &f.TenantID, &f.Name, &f.TriggerKeyword, &f.Status, &f.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListActiveByTenant returns active flows in (created_at, id) order. The
// router's first-match-wins contract leans on this ordering, so it is
// fixed here instead of relying on whatever the store happens to return.
func (r *FlowRepository) ListActiveByTenant(ctx context.Context, tenantID string) ([]entities.Flow, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+flowColumns+" FROM flows WHERE tenant_id = $1 AND status = $2 ORDER BY created_at, id",
		tenantID, entities.FlowActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flows := []entities.Flow{}
	for rows.Next() {
		var f entities.Flow
		if err := rows.Scan(&f.ID, &f.TenantID, &f.Name, &f.TriggerKeyword, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}
