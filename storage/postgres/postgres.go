// Package postgres implements storage.Repository backed by PostgreSQL.
//
// Records are stored in a single certificates table keyed by certificate ID.
// The version column carries the compare-and-swap token; UpdateCAS relies on
// a conditional UPDATE so concurrent writers to the same ID serialize at the
// database rather than in the caller.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certforge/certforge/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
// The caller should run EnsureSchema once before first use.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN connects to PostgreSQL using the given DSN, ensures the
// schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Create(id string, payload []byte) error {
	tag, err := s.pool.Exec(context.Background(),
		`INSERT INTO certificates (id, payload, version)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (id) DO NOTHING`,
		id, payload)
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, storage.ErrDuplicateID)
	}
	return nil
}

func (s *Store) Get(id string) (*storage.Record, error) {
	rec := storage.Record{ID: id}
	err := s.pool.QueryRow(context.Background(),
		`SELECT payload, version FROM certificates WHERE id = $1`,
		id).Scan(&rec.Payload, &rec.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) List() ([]storage.Record, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, payload, version FROM certificates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		var rec storage.Record
		if err := rows.Scan(&rec.ID, &rec.Payload, &rec.Version); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) UpdateCAS(id string, expectedVersion uint64, payload []byte) error {
	tag, err := s.pool.Exec(context.Background(),
		`UPDATE certificates SET payload = $2, version = version + 1
		 WHERE id = $1 AND version = $3`,
		id, payload, expectedVersion)
	if err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish a missing record from a version conflict.
	var exists bool
	err = s.pool.QueryRow(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM certificates WHERE id = $1)`,
		id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking record %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	return storage.ErrCASFailed
}
