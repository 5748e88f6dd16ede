package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0004, Down0004)
}

func Up0004(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE job (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	kind TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT 'waiting',
	payload JSONB NOT NULL DEFAULT '{}'::jsonb,
	attempt INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3 CHECK (max_attempts > 0),
	enqueued_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	next_attempt_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	locked_by TEXT,
	lease_expires_at TIMESTAMP WITH TIME ZONE,
	last_error TEXT,
	finished_at TIMESTAMP WITH TIME ZONE,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);`},
		// dequeue scans waiting jobs by due time, reaping scans active jobs by lease
		statement{query: `CREATE INDEX job_waiting_idx ON job (next_attempt_at) WHERE state = 'waiting';`},
		statement{query: `CREATE INDEX job_active_idx ON job (lease_expires_at) WHERE state = 'active';`},
		statement{query: `CREATE INDEX job_terminal_idx ON job (state, finished_at) WHERE state IN ('completed', 'failed');`},
	)
}

func Down0004(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE job;`)
	return err
}
