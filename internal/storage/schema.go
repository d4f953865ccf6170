package storage

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS progress_documents (
  run_id            TEXT PRIMARY KEY,
  source_descriptor TEXT NOT NULL,
  status            TEXT NOT NULL,
  windows_completed INT NOT NULL DEFAULT 0,
  total_windows     INT NOT NULL,
  document          JSONB NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS llm_calls (
  call_id       UUID PRIMARY KEY,
  operation     TEXT NOT NULL,
  run_id        TEXT,
  window_id     INT,
  attempt       INT NOT NULL DEFAULT 1,
  provider_name TEXT NOT NULL,
  model         TEXT NOT NULL,
  status        TEXT NOT NULL,
  error_type    TEXT,
  latency_ms    BIGINT,
  prompt_sha256 TEXT,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE llm_calls ADD COLUMN IF NOT EXISTS prompt_sha256 TEXT;

CREATE INDEX IF NOT EXISTS llm_calls_run_idx ON llm_calls(run_id);
`

// EnsureSchema creates the tables questflow writes to when they are missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
