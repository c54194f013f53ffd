package certificate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/certforge/certforge/storage"
)

const (
	// issueAttempts bounds ID-collision retries. With ~16.7M IDs per
	// prefix-year, hitting this limit means the random source is broken.
	issueAttempts = 5
	// casAttempts bounds compare-and-swap retries when concurrent writers
	// touch the same record.
	casAttempts = 8
)

// DefaultPrefix is the issuer prefix used when no option overrides it.
const DefaultPrefix = "BD"

// Registry is the certificate engine: it mints, signs, and persists
// certificates, binds document hashes, revokes, and verifies. All record
// mutations go through a compare-and-swap loop on the underlying store, so
// concurrent writers to the same ID serialize instead of losing writes.
type Registry struct {
	repo   storage.Repository
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithPrefix sets the issuer prefix embedded in minted certificate IDs.
func WithPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry over the given record store.
func New(repo storage.Repository, opts ...Option) *Registry {
	r := &Registry{
		repo:   repo,
		prefix: DefaultPrefix,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue validates the fields, mints an ID, signs the canonical payload, and
// persists the new record. An empty issue date defaults to today. If the store
// rejects the minted ID as a duplicate, issuance retries with a fresh ID.
func (r *Registry) Issue(ctx context.Context, f Fields) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := r.now()
	if f.IssueDate == "" {
		f.IssueDate = now.Format(DateLayout)
	}
	if err := ValidateFields(f); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < issueAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := NewID(r.prefix, now)
		if err != nil {
			return nil, err
		}
		rec := &Record{
			ID:               id,
			SubjectName:      f.SubjectName,
			CourseTitle:      f.CourseTitle,
			CohortLabel:      f.CohortLabel,
			CertificateClass: f.CertificateClass,
			IssueDate:        f.IssueDate,
			Signature:        Sign(id, f),
			Status:           StatusActive,
			CreatedAt:        now.UTC(),
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		err = r.repo.Create(id, payload)
		if errors.Is(err, storage.ErrDuplicateID) {
			r.logger.Warn("certificate ID collision, retrying", "id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persisting certificate: %w", err)
		}
		r.logger.Info("certificate issued", "id", id, "subject", f.SubjectName, "course", f.CourseTitle)
		return rec, nil
	}
	return nil, fmt.Errorf("could not mint a unique certificate ID after %d attempts", issueAttempts)
}

// Get loads a certificate by ID.
func (r *Registry) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := r.repo.Get(id)
	if err != nil {
		return nil, err
	}
	return decodeRecord(stored)
}

// List returns every stored certificate.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := r.repo.List()
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(stored))
	for i := range stored {
		rec, err := decodeRecord(&stored[i])
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// errNoChange signals from a mutator that the record is already in the desired
// state and no write is needed.
var errNoChange = errors.New("no change")

// update applies mutate to the record under a compare-and-swap retry loop.
// On version conflict it rereads and reapplies, so a revoke racing a hash
// bind cannot lose either write.
func (r *Registry) update(ctx context.Context, id string, mutate func(*Record) error) (*Record, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stored, err := r.repo.Get(id)
		if err != nil {
			return nil, err
		}
		rec, err := decodeRecord(stored)
		if err != nil {
			return nil, err
		}
		if err := mutate(rec); err != nil {
			if errors.Is(err, errNoChange) {
				return rec, nil
			}
			return nil, err
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		err = r.repo.UpdateCAS(id, stored.Version, payload)
		if errors.Is(err, storage.ErrCASFailed) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("updating certificate %s: %w", id, err)
		}
		return rec, nil
	}
	return nil, fmt.Errorf("updating certificate %s: %w", id, storage.ErrCASFailed)
}

// BindHash computes the content hash of the rendered document bytes and
// attaches it to the record. Rebinding the identical hash is an idempotent
// no-op; binding a different hash fails with ErrHashMismatch.
func (r *Registry) BindHash(ctx context.Context, id string, document []byte) (*Record, error) {
	hash := DocumentHash(document)
	rec, err := r.update(ctx, id, func(rec *Record) error {
		switch rec.DocumentHash {
		case "":
			rec.DocumentHash = hash
			return nil
		case hash:
			return errNoChange
		default:
			return fmt.Errorf("%w: record %s already bound to %s", ErrHashMismatch, id, rec.DocumentHash)
		}
	})
	if err != nil {
		if errors.Is(err, ErrHashMismatch) {
			r.logger.Error("document hash rebind conflict", "id", id, "hash", hash)
		}
		return nil, err
	}
	r.logger.Info("document hash bound", "id", id, "hash", hash)
	return rec, nil
}

// Revoke flips the record to revoked. The transition is one-way: there is no
// un-revoke, and the revocation timestamp is set only on the first call.
// Returns whether this call performed the transition.
func (r *Registry) Revoke(ctx context.Context, id string) (bool, error) {
	changed := false
	_, err := r.update(ctx, id, func(rec *Record) error {
		if rec.Status == StatusRevoked {
			return errNoChange
		}
		now := r.now().UTC()
		rec.Status = StatusRevoked
		rec.RevokedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		r.logger.Info("certificate revoked", "id", id)
	}
	return changed, nil
}

// SetPublicationRef records the external announcement reference. Once set it
// is never replaced; repeat calls are no-ops, which is the idempotency guard
// the publisher keys on.
func (r *Registry) SetPublicationRef(ctx context.Context, id string, ref PublicationRef) (*Record, error) {
	return r.update(ctx, id, func(rec *Record) error {
		if rec.PublicationRef != nil {
			return errNoChange
		}
		rec.PublicationRef = &ref
		return nil
	})
}

func decodeRecord(stored *storage.Record) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(stored.Payload, &rec); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", stored.ID, err)
	}
	return &rec, nil
}
