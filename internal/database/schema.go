package database

import (
	"context"
	"fmt"
	"sync"
)

// First use ensures the tables exist. Safe to call from multiple goroutines;
// the DDL runs at most once per process and every caller observes its error.
var (
	schemaOnce sync.Once
	schemaErr  error
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS session_credentials (
	id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	agent_id            BIGINT NOT NULL,
	chain_id            BIGINT NOT NULL,
	delegating_account  TEXT NOT NULL,
	delegated_account   TEXT,
	session_private_key TEXT NOT NULL,
	session_address     TEXT NOT NULL,
	valid_after         TIMESTAMPTZ NOT NULL,
	valid_until         TIMESTAMPTZ NOT NULL,
	delegation_proof    BYTEA NOT NULL,
	relay_endpoint      TEXT NOT NULL,
	reputation_contract TEXT NOT NULL,
	redemption_selector TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (agent_id, chain_id)
);

CREATE TABLE IF NOT EXISTS validation_results (
	id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	request_hash TEXT NOT NULL,
	agent_id     BIGINT NOT NULL,
	chain_id     BIGINT NOT NULL,
	status       TEXT NOT NULL,
	tx_hash      TEXT,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_validation_results_request_hash
	ON validation_results (request_hash);

CREATE TABLE IF NOT EXISTS feedback_authorizations (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	agent_id       BIGINT NOT NULL,
	client_address TEXT NOT NULL,
	chain_id       BIGINT NOT NULL,
	skill_id       TEXT,
	expires_at     TIMESTAMPTZ NOT NULL,
	signature      BYTEA NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_feedback_authorizations_agent
	ON feedback_authorizations (agent_id, chain_id);
`

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	schemaOnce.Do(func() {
		if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
			schemaErr = fmt.Errorf("ensure schema: %w", err)
		}
	})
	return schemaErr
}
