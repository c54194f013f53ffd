package api

import (
	"github.com/certforge/certforge/batch"
	"github.com/certforge/certforge/certificate"
	"github.com/certforge/certforge/publish"
)

// ErrorResponse is the JSON body returned for any error status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IssueRequest is the JSON body for POST /certificates.
type IssueRequest struct {
	SubjectName      string `json:"subject_name"`
	CourseTitle      string `json:"course_title"`
	CohortLabel      string `json:"cohort_label,omitempty"`
	CertificateClass string `json:"certificate_class,omitempty"`
	IssueDate        string `json:"issue_date,omitempty"`
}

// CertificateResponse wraps a single certificate record.
type CertificateResponse struct {
	Certificate *certificate.Record `json:"certificate"`
}

// ListCertificatesResponse is returned from GET /certificates.
type ListCertificatesResponse struct {
	Certificates []certificate.Record `json:"certificates"`
	Total        int                  `json:"total"`
}

// RevokeResponse is returned from POST /certificates/{certID}/revoke.
// Revoked reports whether this call performed the transition; revoking an
// already-revoked certificate is a no-op success.
type RevokeResponse struct {
	Revoked     bool                `json:"revoked"`
	Certificate *certificate.Record `json:"certificate"`
}

// BatchRequest is the JSON body for POST /batches.
type BatchRequest struct {
	Rows    []batch.Row `json:"rows"`
	Publish bool        `json:"publish,omitempty"`
}

// BatchResponse wraps a completed batch report.
type BatchResponse struct {
	Report *batch.Report `json:"report"`
}

// PublishResponse is returned from POST /certificates/{certID}/publish.
type PublishResponse struct {
	Result *publish.Result `json:"result"`
}
