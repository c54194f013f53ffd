// Package storage provides the storage abstraction layer for certificate records.
package storage

import (
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for the requested ID.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned by Create when the ID is already taken.
	ErrDuplicateID = errors.New("duplicate record ID")
	// ErrCASFailed is returned when a compare-and-swap version check fails.
	ErrCASFailed = errors.New("CAS version mismatch")
)

// Record is a persisted certificate record: an opaque JSON payload plus the
// monotonically increasing version the backend assigns on every write. The
// version is the compare-and-swap token for UpdateCAS; callers never set it.
type Record struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Version uint64          `json:"version"`
}

// Repository defines the interface for certificate record storage.
//
// There is no Delete: records are append/update only, and revocation is the
// only terminal mutation. Backends must guarantee per-key atomicity for
// Create and UpdateCAS.
type Repository interface {
	// Create stores a new record under id. Fails with ErrDuplicateID if a
	// record already exists for that id.
	Create(id string, payload []byte) error
	// Get returns the record stored under id, or ErrNotFound.
	Get(id string) (*Record, error)
	// List returns every stored record. Order is unspecified.
	List() ([]Record, error)
	// UpdateCAS replaces the payload for id if the stored version still equals
	// expectedVersion. Fails with ErrNotFound for unknown ids and ErrCASFailed
	// on a version mismatch.
	UpdateCAS(id string, expectedVersion uint64, payload []byte) error
}
