package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the idempotent DDL for all tables owned by the notifier. The
// external registrations table is created by the intake application and is
// deliberately absent here.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS registration_sync (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		registration_id BIGINT NOT NULL UNIQUE,
		registration_no TEXT NOT NULL,
		name TEXT NOT NULL,
		mobile TEXT NOT NULL,
		village TEXT NOT NULL,
		state TEXT NOT NULL,
		position TEXT NOT NULL,
		age INT NOT NULL,
		gender TEXT NOT NULL,
		male_members INT NOT NULL DEFAULT 0,
		female_members INT NOT NULL DEFAULT 0,
		child_members INT NOT NULL DEFAULT 0,
		total_members INT NOT NULL,
		connected TEXT NOT NULL,
		message TEXT,
		user_message_sent BOOLEAN NOT NULL DEFAULT FALSE,
		admin_notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
		barcode_sent BOOLEAN NOT NULL DEFAULT FALSE,
		change_request_sent BOOLEAN NOT NULL DEFAULT FALSE,
		user_sent_at TIMESTAMPTZ,
		admin_sent_at TIMESTAMPTZ,
		barcode_sent_at TIMESTAMPTZ,
		change_request_sent_at TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0,
		admin_retry_count INT NOT NULL DEFAULT 0,
		barcode_retry_count INT NOT NULL DEFAULT 0,
		change_request_retry_count INT NOT NULL DEFAULT 0,
		last_attempt TIMESTAMPTZ,
		admin_last_attempt TIMESTAMPTZ,
		barcode_last_attempt TIMESTAMPTZ,
		change_request_last_attempt TIMESTAMPTZ,
		is_processing BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS registration_sync_mobile_idx ON registration_sync (mobile)`,
	`CREATE INDEX IF NOT EXISTS registration_sync_created_at_idx ON registration_sync (created_at)`,
	`CREATE TABLE IF NOT EXISTS message_templates (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		name TEXT NOT NULL,
		template_type TEXT NOT NULL UNIQUE,
		message_text TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS notifier_settings (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		selected_groups JSONB NOT NULL DEFAULT '[]',
		admin_numbers JSONB NOT NULL DEFAULT '[]',
		registration_message TEXT NOT NULL DEFAULT '',
		pass_template_path TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sent_messages (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		message_text TEXT,
		media_name TEXT,
		recipient_type TEXT NOT NULL,
		recipients JSONB NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS message_receipts (
		provider_message_id TEXT PRIMARY KEY,
		recipient TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'admin',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates all notifier-owned tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
