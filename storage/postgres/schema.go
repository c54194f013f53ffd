package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS certificates (
	id      TEXT   PRIMARY KEY,
	payload JSONB  NOT NULL,
	version BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS certificates_document_hash_idx
	ON certificates ((payload->>'document_hash'));
`

// EnsureSchema creates the certificates table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
