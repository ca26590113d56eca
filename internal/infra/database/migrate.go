package database

import (
	"context"
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	company TEXT NOT NULL DEFAULT '',
	email TEXT,
	website TEXT,
	active BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS contacts (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'new',
	source_query TEXT NOT NULL DEFAULT '',
	additional_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	persona TEXT,
	identity_id UUID REFERENCES identities(id),
	note TEXT,
	lease_owner TEXT,
	lease_expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS emails (
	id UUID PRIMARY KEY,
	contact_id UUID NOT NULL REFERENCES contacts(id),
	object TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	cta TEXT NOT NULL DEFAULT '',
	footer TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	sent_at TIMESTAMPTZ,
	used_domain TEXT,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_contacts_status_created_at ON contacts(status, created_at);
CREATE INDEX IF NOT EXISTS idx_contacts_lease_expires_at ON contacts(lease_expires_at) WHERE status = 'processing';
CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_live_contact ON emails(contact_id) WHERE status <> 'error';
CREATE INDEX IF NOT EXISTS idx_identities_active ON identities(active, created_at);
`

// Migrate creates the tables when missing. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
