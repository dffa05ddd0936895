package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	// Auto-migrate schema
	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	// Tenants Table — phone_number_id is the channel identifier and must
	// resolve to at most one tenant.
	_, err := p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			phone_number_id VARCHAR(64) UNIQUE NOT NULL,
			app_secret VARCHAR(255) NOT NULL DEFAULT '',
			verify_token VARCHAR(255) NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create tenants table: %w", err)
	}

	// Contacts Table
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS contacts (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			wa_id VARCHAR(32) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (tenant_id, wa_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("create contacts table: %w", err)
	}

	// Flows Table
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS flows (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			name VARCHAR(255) NOT NULL,
			trigger_keyword VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL DEFAULT 'draft',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create flows table: %w", err)
	}

	// Sessions Table — the unique key on (contact_id, flow_id) is the
	// concurrency safeguard for racing webhook deliveries.
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			contact_id UUID NOT NULL REFERENCES contacts(id),
			flow_id UUID NOT NULL REFERENCES flows(id),
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			context JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (contact_id, flow_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	// Messages Table
	_, err = p.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			contact_id UUID NOT NULL REFERENCES contacts(id),
			session_id UUID REFERENCES sessions(id),
			wa_message_id VARCHAR(128) NOT NULL DEFAULT '',
			direction VARCHAR(8) NOT NULL,
			msg_type VARCHAR(32) NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	// Provider message ids dedupe redeliveries per tenant. Partial index:
	// manual messages carry no provider id.
	_, err = p.Pool.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS messages_tenant_wa_id_idx
		ON messages (tenant_id, wa_message_id)
		WHERE wa_message_id <> '';
	`)
	if err != nil {
		return fmt.Errorf("create messages dedupe index: %w", err)
	}

	_, err = p.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS flows_tenant_order_idx ON flows (tenant_id, created_at, id);
	`)
	if err != nil {
		return fmt.Errorf("create flows ordering index: %w", err)
	}

	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
