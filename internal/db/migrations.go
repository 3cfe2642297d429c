package db

import (
	"context"
	"fmt"
)

// schema holds the DDL for the wallet's tables. The unique index on
// payment_id is what turns payment identifier resolution into a single
// indexed lookup and rules out duplicate identifiers at creation time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id               UUID PRIMARY KEY,
		external_id      TEXT NOT NULL,
		display_name     TEXT NOT NULL,
		email            TEXT NOT NULL DEFAULT '',
		avatar_url       TEXT NOT NULL DEFAULT '',
		balance          NUMERIC(14,2) NOT NULL DEFAULT 0,
		payment_id       TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_interest_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT accounts_external_id_key UNIQUE (external_id),
		CONSTRAINT accounts_payment_id_key UNIQUE (payment_id),
		CONSTRAINT accounts_balance_non_negative CHECK (balance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id            UUID PRIMARY KEY,
		sender_id     UUID,
		receiver_id   UUID NOT NULL,
		amount        NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		entry_type    TEXT NOT NULL,
		status        TEXT NOT NULL,
		note          TEXT NOT NULL DEFAULT '',
		sender_name   TEXT NOT NULL DEFAULT '',
		receiver_name TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_sender_idx
		ON ledger_entries (sender_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_receiver_idx
		ON ledger_entries (receiver_id, created_at DESC)`,
}

// Migrate applies the schema. Statements are idempotent so Migrate is safe
// to run on every startup.
func Migrate(ctx context.Context, pool *Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}
