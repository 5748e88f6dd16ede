package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0003, Down0003)
}

func Up0003(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE app_user (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	username TEXT NOT NULL UNIQUE,
	platform_username TEXT NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);`},
		statement{query: `
CREATE TABLE challenge (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	start_date DATE NOT NULL,
	end_date DATE NOT NULL,
	min_submissions_per_day INTEGER NOT NULL DEFAULT 1 CHECK (min_submissions_per_day >= 0),
	difficulty_filter JSONB NOT NULL DEFAULT '[]'::jsonb,
	unique_problem_constraint BOOLEAN NOT NULL DEFAULT false,
	penalty_amount BIGINT NOT NULL DEFAULT 0 CHECK (penalty_amount >= 0),
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	CHECK (start_date <= end_date)
);`},
		statement{query: `CREATE INDEX challenge_status_window_idx ON challenge (status, start_date, end_date);`},
		statement{query: `
CREATE TABLE challenge_member (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	challenge_id UUID NOT NULL REFERENCES challenge (id) ON DELETE CASCADE,
	user_id UUID NOT NULL REFERENCES app_user (id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'active',
	current_streak INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
	longest_streak INTEGER NOT NULL DEFAULT 0,
	total_penalties BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	UNIQUE (challenge_id, user_id),
	CHECK (longest_streak >= current_streak)
);`},
		statement{query: `
CREATE TABLE daily_result (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	member_id UUID NOT NULL REFERENCES challenge_member (id) ON DELETE CASCADE,
	date DATE NOT NULL,
	submission_count INTEGER NOT NULL,
	qualifying_problems INTEGER NOT NULL,
	passed BOOLEAN NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	UNIQUE (member_id, date)
);`},
		statement{query: `
CREATE TABLE penalty_ledger (
	id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
	member_id UUID NOT NULL REFERENCES challenge_member (id) ON DELETE CASCADE,
	amount BIGINT NOT NULL,
	reason TEXT NOT NULL,
	date DATE NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);`},
		statement{query: `CREATE INDEX penalty_ledger_member_idx ON penalty_ledger (member_id);`},
	)
}

func Down0003(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE penalty_ledger;`},
		statement{query: `DROP TABLE daily_result;`},
		statement{query: `DROP TABLE challenge_member;`},
		statement{query: `DROP TABLE challenge;`},
		statement{query: `DROP TABLE app_user;`},
	)
}
