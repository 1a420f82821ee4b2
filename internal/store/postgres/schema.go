package postgres

import "context"

// schema is idempotent and applied on startup. The partial unique index on
// shifts is what keeps a branch to one open shift across processes.
const schema = `
CREATE TABLE IF NOT EXISTS branch_folios (
	branch_id  TEXT PRIMARY KEY,
	last_value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id                    TEXT PRIMARY KEY,
	folio                 TEXT NOT NULL UNIQUE,
	branch_id             TEXT NOT NULL,
	client_id             TEXT NOT NULL,
	shift_id              TEXT NOT NULL DEFAULT '',
	created_by            TEXT NOT NULL,
	global_discount_cents BIGINT NOT NULL DEFAULT 0 CHECK (global_discount_cents >= 0),
	status                TEXT NOT NULL,
	cancel_reason         TEXT NOT NULL DEFAULT '',
	cancelled_at          TIMESTAMPTZ NULL,
	fulfilled_at          TIMESTAMPTZ NULL,
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL,
	version               BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS notes_branch_created_idx ON notes (branch_id, created_at DESC);

CREATE TABLE IF NOT EXISTS note_items (
	note_id          TEXT NOT NULL REFERENCES notes (id),
	id               TEXT NOT NULL,
	position         INT NOT NULL,
	kind             TEXT NOT NULL,
	nature           TEXT NOT NULL,
	item_ref         TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL,
	quantity         BIGINT NOT NULL CHECK (quantity > 0),
	unit_price_cents BIGINT NOT NULL CHECK (unit_price_cents >= 0),
	discount_cents   BIGINT NOT NULL CHECK (discount_cents >= 0),
	fulfillment      TEXT NOT NULL,
	delivered        BOOLEAN NOT NULL DEFAULT false,
	delivered_at     TIMESTAMPTZ NULL,
	PRIMARY KEY (note_id, id)
);

CREATE TABLE IF NOT EXISTS note_payments (
	id           TEXT PRIMARY KEY,
	note_id      TEXT NOT NULL REFERENCES notes (id),
	position     INT NOT NULL,
	amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
	method       TEXT NOT NULL,
	reference    TEXT NOT NULL DEFAULT '',
	shift_id     TEXT NOT NULL DEFAULT '',
	recorded_by  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (note_id, position)
);
CREATE INDEX IF NOT EXISTS note_payments_shift_idx ON note_payments (shift_id);

CREATE TABLE IF NOT EXISTS shifts (
	id                  TEXT PRIMARY KEY,
	branch_id           TEXT NOT NULL,
	status              TEXT NOT NULL,
	opened_at           TIMESTAMPTZ NOT NULL,
	opened_by           TEXT NOT NULL,
	initial_cash_cents  BIGINT NOT NULL CHECK (initial_cash_cents >= 0),
	closed_at           TIMESTAMPTZ NULL,
	closed_by           TEXT NOT NULL DEFAULT '',
	declared_cash_cents BIGINT NULL,
	expected_cash_cents BIGINT NULL,
	difference_cents    BIGINT NULL,
	difference_pct      TEXT NOT NULL DEFAULT '',
	classification      TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	version             BIGINT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS shifts_one_open_per_branch ON shifts (branch_id) WHERE status = 'open';

CREATE TABLE IF NOT EXISTS cash_movements (
	id           TEXT PRIMARY KEY,
	shift_id     TEXT NOT NULL REFERENCES shifts (id),
	position     INT NOT NULL,
	type         TEXT NOT NULL,
	amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
	method       TEXT NOT NULL,
	subtype      TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL,
	created_by   TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	UNIQUE (shift_id, position)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	branch_id   TEXT NOT NULL,
	actor_id    TEXT NOT NULL,
	actor_role  TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	detail      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_logs_branch_created_idx ON audit_logs (branch_id, created_at DESC);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
