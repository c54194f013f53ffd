package certificate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/certforge/certforge/storage"
)

// Verification reasons. ReasonAuthentic is the single valid outcome; the rest
// explain why a certificate is not valid. Tamper detection is a normal
// verification result, never an error.
const (
	ReasonAuthentic    = "Certificate is authentic"
	ReasonNotFound     = "certificate not found"
	ReasonHashNotFound = "hash not found"
	ReasonRevoked      = "revoked"
	ReasonTampered     = "tampered"
)

// VerifyResult is the structured answer to "is this certificate genuine and
// unmodified?".
type VerifyResult struct {
	Valid  bool    `json:"valid"`
	Reason string  `json:"reason"`
	Record *Record `json:"record,omitempty"`
}

// VerifyByID verifies a certificate by its identifier: the record must exist,
// must not be revoked, and its recomputed signature must match the stored one.
// Verification never mutates state.
func (r *Registry) VerifyByID(ctx context.Context, id string) (*VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := r.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return &VerifyResult{Valid: false, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	return r.verifyRecord(rec), nil
}

// VerifyByHash verifies a certificate by its rendered document's content hash.
// Exactly one record must own the hash; two records sharing it is an integrity
// violation surfaced as an error, never silently resolved to the first match.
func (r *Registry) VerifyByHash(ctx context.Context, hash string) (*VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash = strings.ToLower(strings.TrimSpace(hash))
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var matches []*Record
	for i := range records {
		if records[i].DocumentHash != "" && records[i].DocumentHash == hash {
			matches = append(matches, &records[i])
		}
	}
	switch len(matches) {
	case 0:
		return &VerifyResult{Valid: false, Reason: ReasonHashNotFound}, nil
	case 1:
		return r.verifyRecord(matches[0]), nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		r.logger.Error("document hash owned by multiple records", "hash", hash, "ids", ids)
		return nil, fmt.Errorf("%w: %s owned by %s", ErrHashCollision, hash, strings.Join(ids, ", "))
	}
}

// VerifyByDocument computes the document's content hash and delegates to
// VerifyByHash.
func (r *Registry) VerifyByDocument(ctx context.Context, document []byte) (*VerifyResult, error) {
	return r.VerifyByHash(ctx, DocumentHash(document))
}

// verifyRecord applies the checks common to all verification modes. Revocation
// dominates: a revoked record is never valid even with a matching signature.
func (r *Registry) verifyRecord(rec *Record) *VerifyResult {
	if rec.Status == StatusRevoked {
		return &VerifyResult{Valid: false, Reason: ReasonRevoked, Record: rec}
	}
	if !VerifySignature(rec) {
		return &VerifyResult{Valid: false, Reason: ReasonTampered, Record: rec}
	}
	return &VerifyResult{Valid: true, Reason: ReasonAuthentic, Record: rec}
}
