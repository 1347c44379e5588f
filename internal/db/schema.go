package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// Every collection table carries user_id: rows are only ever read or written
// through the owning user's namespace. batches.vessel_id deliberately has no
// foreign key so a batch can outlive its vessel.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id               TEXT PRIMARY KEY,
    email            TEXT NOT NULL,
    name             TEXT NOT NULL DEFAULT '',
    password_hash    TEXT,
    role             TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
    provider         TEXT NOT NULL DEFAULT 'local',
    provider_user_id TEXT,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at       DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL;

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_provider_identity
    ON users(provider, provider_user_id) WHERE provider_user_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS vessels (
    user_id    TEXT NOT NULL REFERENCES users(id),
    id         TEXT NOT NULL,
    name       TEXT NOT NULL,
    capacity   REAL CHECK (capacity IS NULL OR capacity > 0),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS ingredients (
    user_id    TEXT NOT NULL REFERENCES users(id),
    id         TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS batches (
    user_id               TEXT NOT NULL REFERENCES users(id),
    id                    TEXT NOT NULL,
    name                  TEXT NOT NULL DEFAULT '',
    status                TEXT NOT NULL,
    phase                 TEXT NOT NULL,
    start_date            TEXT NOT NULL,
    vessel_id             TEXT NOT NULL,
    primary_ingredients   TEXT NOT NULL DEFAULT '[]',
    secondary_ingredients TEXT NOT NULL DEFAULT '[]',
    parent_id             TEXT,
    image                 BLOB,
    image_mime            TEXT,
    created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_batches_vessel
    ON batches(user_id, vessel_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: status/phase used to be written upper-case.
	`UPDATE batches SET status = lower(status) WHERE status <> lower(status)`,
	`UPDATE batches SET phase = lower(phase) WHERE phase <> lower(phase)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
