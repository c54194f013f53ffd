// Package certificate implements the certificate integrity and verification
// engine: canonical signing, document hash binding, revocation, and
// multi-mode verification over an abstract record store.
package certificate

import (
	"time"
)

// DefaultClass is substituted for an empty certificate class during canonical
// payload construction. The substitution is part of the signed payload, so it
// must never change once certificates exist.
const DefaultClass = "Certificate of Completion"

// DateLayout is the calendar date format used for issue dates.
const DateLayout = "2006-01-02"

// Status represents the lifecycle state of a certificate.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Fields is the signed subset of a certificate, as supplied at issuance.
type Fields struct {
	SubjectName      string `json:"subject_name"`
	CourseTitle      string `json:"course_title"`
	CohortLabel      string `json:"cohort_label,omitempty"`
	CertificateClass string `json:"certificate_class,omitempty"`
	IssueDate        string `json:"issue_date"`
}

// PublicationRef records a successful external announcement: the endpoint that
// accepted it, the identifier it assigned, and the issuer public key the
// announcement was signed with.
type PublicationRef struct {
	Endpoint        string `json:"endpoint"`
	AnnouncementID  string `json:"announcement_id"`
	IssuerPublicKey string `json:"issuer_public_key"`
}

// Record is the central entity: a signed certificate as stored in the record
// store. The signed fields are immutable after issuance; changing any of them
// invalidates the signature.
type Record struct {
	ID               string          `json:"id"`
	SubjectName      string          `json:"subject_name"`
	CourseTitle      string          `json:"course_title"`
	CohortLabel      string          `json:"cohort_label,omitempty"`
	CertificateClass string          `json:"certificate_class,omitempty"`
	IssueDate        string          `json:"issue_date"`
	Signature        string          `json:"signature"`
	DocumentHash     string          `json:"document_hash,omitempty"`
	Status           Status          `json:"status"`
	RevokedAt        *time.Time      `json:"revoked_at,omitempty"`
	PublicationRef   *PublicationRef `json:"publication_ref,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// SignedFields returns the signed subset of the record, as stored.
func (r *Record) SignedFields() Fields {
	return Fields{
		SubjectName:      r.SubjectName,
		CourseTitle:      r.CourseTitle,
		CohortLabel:      r.CohortLabel,
		CertificateClass: r.CertificateClass,
		IssueDate:        r.IssueDate,
	}
}

// DisplayClass returns the certificate class with the default applied.
func (r *Record) DisplayClass() string {
	if r.CertificateClass == "" {
		return DefaultClass
	}
	return r.CertificateClass
}
