// Package postgres implements a durable Postgres-backed watermark store.
package postgres

const schemaDDL = `
CREATE TABLE IF NOT EXISTS etl_watermarks (
    target_name          TEXT NOT NULL,
    symbol               TEXT NOT NULL,
    exchange             TEXT NOT NULL DEFAULT '',
    asset_type           TEXT NOT NULL DEFAULT '',
    eligibility          TEXT NOT NULL DEFAULT 'ELIGIBLE',
    delisting_date       DATE,
    first_observed_date  DATE,
    last_observed_date   DATE,
    last_success_at      TIMESTAMPTZ,
    consecutive_failures INTEGER NOT NULL DEFAULT 0,
    last_error           TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (target_name, symbol)
);
CREATE INDEX IF NOT EXISTS idx_watermarks_eligibility ON etl_watermarks (target_name, eligibility);
CREATE INDEX IF NOT EXISTS idx_watermarks_last_success ON etl_watermarks (target_name, last_success_at NULLS FIRST);
`
