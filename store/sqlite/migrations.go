package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Presale store (SQLite).
var Migrations = migrate.NewGroup("presale")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_presale_sales",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS presale_sales (
    id                      TEXT PRIMARY KEY,
    config                  TEXT NOT NULL DEFAULT '{}',
    terms                   TEXT NOT NULL DEFAULT '{}',
    ask_token               TEXT NOT NULL DEFAULT '',
    ask_token_total_supply  TEXT NOT NULL DEFAULT '0',
    total_tokens_allocated  TEXT NOT NULL DEFAULT '0',
    tokens_supplied         BOOLEAN NOT NULL DEFAULT FALSE,
    total_capital_invested  TEXT NOT NULL DEFAULT '0',
    total_capital_raised    TEXT NOT NULL DEFAULT '0',
    total_capital_withdrawn TEXT NOT NULL DEFAULT '0',
    canceled                BOOLEAN NOT NULL DEFAULT FALSE,
    ended                   BOOLEAN NOT NULL DEFAULT FALSE,
    ended_at                TIMESTAMP,
    refund_window_ends_at   TIMESTAMP,
    pending_transfers       TEXT NOT NULL DEFAULT '[]',
    created_at              TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at              TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_presale_sales_phase ON presale_sales (canceled, ended);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS presale_sales`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_presale_positions",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS presale_positions (
    id                TEXT PRIMARY KEY,
    sale_id           TEXT NOT NULL DEFAULT '',
    account           TEXT NOT NULL DEFAULT '',
    invested_capital  TEXT NOT NULL DEFAULT '0',
    invest_cap        TEXT NOT NULL DEFAULT '0',
    token_rate        TEXT NOT NULL DEFAULT '0',
    agreement_hash    TEXT NOT NULL DEFAULT '',
    first_invested_at TIMESTAMP,
    settled           BOOLEAN NOT NULL DEFAULT FALSE,
    refunded          BOOLEAN NOT NULL DEFAULT FALSE,
    vesting_schedule  TEXT NOT NULL DEFAULT '',
    pending_immediate TEXT NOT NULL DEFAULT '0',
    created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_presale_positions_sale_account ON presale_positions (sale_id, account);
CREATE INDEX IF NOT EXISTS idx_presale_positions_settled ON presale_positions (sale_id, settled);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS presale_positions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_presale_consumed_signatures",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS presale_consumed_signatures (
    key           TEXT PRIMARY KEY,
    sale_id       TEXT NOT NULL DEFAULT '',
    account       TEXT NOT NULL DEFAULT '',
    signature_hex TEXT NOT NULL DEFAULT '',
    consumed_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_presale_consumed_sale_account ON presale_consumed_signatures (sale_id, account);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS presale_consumed_signatures`)
				return err
			},
		},
	)
}
