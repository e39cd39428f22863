package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create the append-only event log
-- Version: 001

CREATE TABLE IF NOT EXISTS events (
    id BIGSERIAL PRIMARY KEY,
    stream_id VARCHAR(100) NOT NULL,
    type VARCHAR(60) NOT NULL,
    payload JSONB NOT NULL,
    occurred_on TIMESTAMP WITH TIME ZONE NOT NULL,
    stream_version INTEGER NOT NULL,
    user_id VARCHAR(60) NOT NULL DEFAULT '',
    request_id VARCHAR(60) NOT NULL DEFAULT '',

    -- Optimistic concurrency: two writers appending at the same expected
    -- version collide on this constraint and exactly one of them wins.
    CONSTRAINT events_stream_version_unique UNIQUE (stream_id, stream_version),
    CONSTRAINT valid_stream_version CHECK (stream_version >= 1)
);

CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id, stream_version);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, occurred_on DESC);
CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id, occurred_on DESC);
CREATE INDEX IF NOT EXISTS idx_events_occurred_on ON events(occurred_on);
`

const migration001Down = `
DROP TABLE IF EXISTS events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE VIEWS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create the projected read models
-- Version: 002

-- Envelope read model. The name column holds sealed ciphertext.
CREATE TABLE IF NOT EXISTS envelope_views (
    envelope_id VARCHAR(60) PRIMARY KEY,
    owner_id VARCHAR(60) NOT NULL,
    name TEXT NOT NULL,
    targeted_amount BIGINT NOT NULL,
    current_amount BIGINT NOT NULL,
    currency VARCHAR(3) NOT NULL,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_envelope_views_owner ON envelope_views(owner_id, created_at) WHERE NOT deleted;

-- Account read model. Email and display name columns hold sealed ciphertext.
CREATE TABLE IF NOT EXISTS account_views (
    account_id VARCHAR(60) PRIMARY KEY,
    sealed_email TEXT NOT NULL,
    sealed_display_name TEXT NOT NULL,
    language VARCHAR(10) NOT NULL DEFAULT 'en',
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`

const migration002Down = `
DROP TABLE IF EXISTS account_views;
DROP TABLE IF EXISTS envelope_views;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ENCRYPTION KEYS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create per-account encryption keys
-- Version: 003

-- One key per account, created at sign-up. A hard DELETE of the row is the
-- erasure mechanism; there is no soft delete and no recovery.
CREATE TABLE IF NOT EXISTS encryption_keys (
    account_id VARCHAR(60) PRIMARY KEY,
    key_bytes BYTEA NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration003Down = `
DROP TABLE IF EXISTS encryption_keys;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_events",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_views",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_encryption_keys",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}
