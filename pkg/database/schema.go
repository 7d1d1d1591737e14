package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// schema holds the full DDL for the loyalty core. All statements are
// idempotent so Migrate is safe to run on every startup.
//
// pg_advisory locks are not needed here: CREATE TABLE IF NOT EXISTS is
// already serialized by the catalog locks Postgres takes internally.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customer_accounts (
		id                 UUID PRIMARY KEY,
		email              TEXT NOT NULL UNIQUE,
		tier               TEXT NOT NULL DEFAULT 'bronze',
		points_balance     BIGINT NOT NULL DEFAULT 0 CHECK (points_balance >= 0),
		lifetime_points    BIGINT NOT NULL DEFAULT 0 CHECK (lifetime_points >= 0),
		nights_this_period INT NOT NULL DEFAULT 0,
		spend_this_period  NUMERIC(14,2) NOT NULL DEFAULT 0,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id             UUID PRIMARY KEY,
		customer_id    UUID NOT NULL REFERENCES customer_accounts(id),
		amount         BIGINT NOT NULL,
		kind           TEXT NOT NULL CHECK (kind IN ('earned','redeemed','expired','adjusted','bonus')),
		description    TEXT NOT NULL DEFAULT '',
		reference_id   TEXT,
		reference_type TEXT,
		expires_at     TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_customer_created
		ON ledger_entries (customer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_expiry
		ON ledger_entries (expires_at) WHERE kind = 'earned' AND expires_at IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS catalog_items (
		id             UUID PRIMARY KEY,
		code           TEXT NOT NULL UNIQUE,
		name           TEXT NOT NULL,
		item_type      TEXT NOT NULL CHECK (item_type IN ('coupon','reward')),
		discount_type  TEXT CHECK (discount_type IN ('fixed','percentage')),
		value          NUMERIC(14,2) NOT NULL DEFAULT 0,
		max_discount   NUMERIC(14,2) NOT NULL DEFAULT 0,
		point_cost     BIGINT NOT NULL DEFAULT 0 CHECK (point_cost >= 0),
		min_tier       TEXT NOT NULL DEFAULT 'bronze',
		min_spend      NUMERIC(14,2) NOT NULL DEFAULT 0,
		usage_limit    INT,
		per_user_limit INT,
		usage_count    INT NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
		valid_from     TIMESTAMPTZ NOT NULL,
		valid_until    TIMESTAMPTZ NOT NULL,
		is_active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS redemption_records (
		id              UUID PRIMARY KEY,
		customer_id     UUID NOT NULL REFERENCES customer_accounts(id),
		catalog_item_id UUID NOT NULL REFERENCES catalog_items(id),
		item_type       TEXT NOT NULL CHECK (item_type IN ('coupon','reward')),
		points_used     BIGINT NOT NULL DEFAULT 0,
		discount_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
		status          TEXT NOT NULL CHECK (status IN ('pending','used','reversed','expired')),
		redemption_code TEXT NOT NULL UNIQUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		used_at         TIMESTAMPTZ,
		expires_at      TIMESTAMPTZ,
		reversed_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_redemption_records_customer_created
		ON redemption_records (customer_id, created_at DESC)`,
}

// Migrate applies the schema. Statements are ordered so foreign keys
// always reference tables created earlier in the list.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("database schema applied")
	return nil
}
