package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0001, Down0001)
}

// Time ordered ids: job claims and ledger scans read in primary key order
func Up0001(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx, statement{query: `
CREATE OR REPLACE FUNCTION uuidv7_sub_ms() RETURNS uuid
AS $$
 SELECT encode(
   substring(int8send(floor(t_ms)::int8) FROM 3) ||
   int2send((7<<12)::int2 | ((t_ms-floor(t_ms))*4096)::int2) ||
   substring(uuid_send(gen_random_uuid()) FROM 9 FOR 8)
  , 'hex')::uuid
  FROM (SELECT extract(epoch FROM clock_timestamp())*1000 AS t_ms) s
$$ LANGUAGE sql VOLATILE;`})
}

func Down0001(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx, statement{query: `DROP FUNCTION IF EXISTS uuidv7_sub_ms();`})
}
