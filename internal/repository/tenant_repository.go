package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = "id, name, phone_number_id, app_secret, verify_token, access_token, created_at"

func scanTenant(row pgx.Row) (*entities.Tenant, error) {
	var t entities.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.PhoneNumberID, &t.AppSecret, &t.VerifyToken, &t.AccessToken, &t.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepository) Create(ctx context.Context, t *entities.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO tenants (id, name, phone_number_id, app_secret, verify_token, access_token)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.Name, t.PhoneNumberID, t.AppSecret, t.VerifyToken, t.AccessToken)
	return err
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*entities.Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id))
}

// GetByPhoneNumberID resolves the tenant owning a channel identifier.
// phone_number_id carries a unique index, so the lookup is unambiguous.
func (r *TenantRepository) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*entities.Tenant, error) {
	return scanTenant(r.db.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE phone_number_id = $1", phoneNumberID))
}

func (r *TenantRepository) List(ctx context.Context) ([]entities.Tenant, error) {
	rows, err := r.db.Query(ctx, "SELECT "+tenantColumns+" FROM tenants ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := []entities.Tenant{}
	for rows.Next() {
		var t entities.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.PhoneNumberID, &t.AppSecret, &t.VerifyToken, &t.AccessToken, &t.CreatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
