package db

// schema is applied at startup. Statements are idempotent so repeated boots
// are safe. The two partial unique indexes carry load-bearing invariants:
// at most one non-disputed proposal per market, and at most one valid
// attestation per (market, signer, nonce).
const schema = `
CREATE TABLE IF NOT EXISTS users (
	address    TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS markets (
	address           TEXT PRIMARY KEY,
	topic             TEXT NOT NULL DEFAULT '',
	threshold         SMALLINT NOT NULL DEFAULT 51,
	staking_token     TEXT NOT NULL DEFAULT '',
	participant_count BIGINT NOT NULL DEFAULT 0,
	total_staked      NUMERIC(78,0) NOT NULL DEFAULT 0,
	status            SMALLINT NOT NULL DEFAULT 0,
	created_at_chain  BIGINT NOT NULL DEFAULT 0,
	proposed_at_chain BIGINT NOT NULL DEFAULT 0,
	resolved_at_chain BIGINT NOT NULL DEFAULT 0,
	last_synced_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS participants (
	market_address TEXT NOT NULL REFERENCES markets(address),
	wallet         TEXT NOT NULL REFERENCES users(address),
	stake          NUMERIC(78,0) NOT NULL DEFAULT 0,
	outcome        SMALLINT NOT NULL DEFAULT 0,
	has_attested   BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (market_address, wallet)
);

CREATE TABLE IF NOT EXISTS proposals (
	id                BIGSERIAL PRIMARY KEY,
	market_address    TEXT NOT NULL REFERENCES markets(address),
	proposer          TEXT NOT NULL,
	outcome           SMALLINT NOT NULL,
	dispute_until     BIGINT NOT NULL DEFAULT 0,
	evidence_hash     TEXT NOT NULL DEFAULT '',
	attestation_count INTEGER NOT NULL DEFAULT 0,
	is_disputed       BOOLEAN NOT NULL DEFAULT false,
	created_at_chain  BIGINT NOT NULL DEFAULT 0,
	inserted_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS proposals_one_active_per_market
	ON proposals (market_address) WHERE NOT is_disputed;

CREATE TABLE IF NOT EXISTS attestations (
	id             BIGSERIAL PRIMARY KEY,
	market_address TEXT NOT NULL REFERENCES markets(address),
	proposal_id    BIGINT NOT NULL REFERENCES proposals(id),
	signer         TEXT NOT NULL,
	outcome        SMALLINT NOT NULL,
	nonce          NUMERIC(78,0) NOT NULL,
	signature      BYTEA NOT NULL,
	is_valid       BOOLEAN NOT NULL DEFAULT true,
	submitted_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS attestations_unique_valid
	ON attestations (market_address, signer, nonce) WHERE is_valid;

CREATE INDEX IF NOT EXISTS attestations_by_market_outcome
	ON attestations (market_address, outcome) WHERE is_valid;

CREATE TABLE IF NOT EXISTS finalization_queue (
	market_address   TEXT PRIMARY KEY REFERENCES markets(address),
	signature_count  INTEGER NOT NULL DEFAULT 0,
	eligible_count   INTEGER NOT NULL DEFAULT 0,
	proposal_outcome SMALLINT NOT NULL DEFAULT 0,
	threshold_met    BOOLEAN NOT NULL DEFAULT false,
	last_checked_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	attempted_at     TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ,
	last_error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sync_log (
	id             BIGSERIAL PRIMARY KEY,
	operation      TEXT NOT NULL,
	market_address TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	message        TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS sync_log_by_time ON sync_log (created_at DESC);
`
