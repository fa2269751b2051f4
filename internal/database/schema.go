package database

import (
	"context"
	"fmt"
)

// schema is applied on every stage start. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		natural_key    TEXT PRIMARY KEY,
		region         TEXT NOT NULL,
		region_code    TEXT NOT NULL DEFAULT '',
		trade_price    BIGINT NOT NULL CHECK (trade_price > 0),
		area           DOUBLE PRECISION NOT NULL CHECK (area > 0),
		building_year  INTEGER,
		trade_year     INTEGER NOT NULL,
		trade_quarter  INTEGER NOT NULL CHECK (trade_quarter BETWEEN 1 AND 4),
		floor_plan     TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_region ON transactions(region)`,

	`CREATE TABLE IF NOT EXISTS listings (
		source_id           TEXT PRIMARY KEY,
		property_name       TEXT NOT NULL DEFAULT '',
		region_name         TEXT NOT NULL,
		address             TEXT NOT NULL DEFAULT '',
		asking_price        BIGINT NOT NULL,
		area                DOUBLE PRECISION,
		building_year       INTEGER,
		floor_plan          TEXT,
		station_name        TEXT,
		minutes_to_station  INTEGER,
		floor               INTEGER,
		total_floors        INTEGER,
		source_url          TEXT,
		latitude            DOUBLE PRECISION,
		longitude           DOUBLE PRECISION,
		market_price        BIGINT,
		deal_score          DOUBLE PRECISION,
		previous_price      BIGINT,
		price_changed_at    TIMESTAMPTZ,
		status              TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
		first_seen_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((market_price IS NULL) = (deal_score IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_region_status ON listings(region_name, status)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_address ON listings(address)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_deal_score ON listings(deal_score DESC NULLS LAST)`,

	`CREATE TABLE IF NOT EXISTS price_history (
		id           BIGSERIAL PRIMARY KEY,
		source_id    TEXT NOT NULL REFERENCES listings(source_id),
		price        BIGINT NOT NULL,
		recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_source_id ON price_history(source_id, recorded_at)`,

	`CREATE TABLE IF NOT EXISTS market_prices (
		region         TEXT NOT NULL,
		age_bracket    TEXT NOT NULL,
		area_bracket   TEXT NOT NULL,
		avg_price      BIGINT NOT NULL,
		sample_count   INTEGER NOT NULL CHECK (sample_count >= 0),
		calculated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (region, age_bracket, area_bracket)
	)`,

	`CREATE TABLE IF NOT EXISTS geocode_cache (
		normalized_address  TEXT PRIMARY KEY,
		latitude            DOUBLE PRECISION NOT NULL,
		longitude           DOUBLE PRECISION NOT NULL,
		cached_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates any missing tables and indexes.
func (db *Database) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
