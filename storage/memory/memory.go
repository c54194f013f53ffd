// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"sync"

	"github.com/certforge/certforge/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]*storage.Record
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]*storage.Record)}
}

func cloneRecord(rec *storage.Record) *storage.Record {
	if rec == nil {
		return nil
	}
	return &storage.Record{
		ID:      rec.ID,
		Payload: append([]byte(nil), rec.Payload...),
		Version: rec.Version,
	}
}

func (r *Repository) Create(id string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; ok {
		return storage.ErrDuplicateID
	}
	r.data[id] = &storage.Record{
		ID:      id,
		Payload: append([]byte(nil), payload...),
		Version: 1,
	}
	return nil
}

func (r *Repository) Get(id string) (*storage.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (r *Repository) List() ([]storage.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]storage.Record, 0, len(r.data))
	for _, rec := range r.data {
		records = append(records, *cloneRecord(rec))
	}
	return records, nil
}

func (r *Repository) UpdateCAS(id string, expectedVersion uint64, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	if rec.Version != expectedVersion {
		return storage.ErrCASFailed
	}
	rec.Payload = append([]byte(nil), payload...)
	rec.Version++
	return nil
}
