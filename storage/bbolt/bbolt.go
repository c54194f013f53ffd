// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/certforge/certforge/storage"
)

var bucketCertificates = []byte("certificates")

// Store implements storage.Repository backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// stored is the on-disk JSON shape. The ID is the bucket key, not repeated here.
type stored struct {
	Payload json.RawMessage `json:"payload"`
	Version uint64          `json:"version"`
}

func (s *Store) Create(id string, payload []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketCertificates)
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) != nil {
			return fmt.Errorf("%s: %w", id, storage.ErrDuplicateID)
		}
		data, err := json.Marshal(stored{Payload: payload, Version: 1})
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

func (s *Store) Get(id string) (*storage.Record, error) {
	var rec *storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCertificates)
		if b == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		var st stored
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		rec = &storage.Record{
			ID:      id,
			Payload: append([]byte(nil), st.Payload...),
			Version: st.Version,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) List() ([]storage.Record, error) {
	var records []storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCertificates)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var st stored
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			records = append(records, storage.Record{
				ID:      string(k),
				Payload: append([]byte(nil), st.Payload...),
				Version: st.Version,
			})
			return nil
		})
	})
	return records, err
}

func (s *Store) UpdateCAS(id string, expectedVersion uint64, payload []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCertificates)
		if b == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		var st stored
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		if st.Version != expectedVersion {
			return storage.ErrCASFailed
		}
		next, err := json.Marshal(stored{Payload: payload, Version: st.Version + 1})
		if err != nil {
			return err
		}
		return b.Put([]byte(id), next)
	})
}
