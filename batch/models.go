// Package batch drives ordered lists of candidate rows through the full
// issuance pipeline with partial-failure semantics: a failing row is recorded
// and its siblings keep going, and the batch never aborts early.
package batch

import (
	"fmt"
	"strings"

	"github.com/certforge/certforge/certificate"
)

func errRowf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", certificate.ErrValidation, fmt.Sprintf(format, args...))
}

// State is the per-batch (not per-row) phase of a run.
type State string

const (
	StateValidating State = "validating"
	StateIssuing    State = "issuing"
	StateDone       State = "done"
)

// Pipeline stages, reported on row failure.
const (
	StageValidate = "validate"
	StageIssue    = "issue"
	StageRender   = "render"
	StageBind     = "bind"
	StageCanceled = "canceled"
)

// Row is one candidate certificate from an import. Email is validated here
// (delivery happens downstream, outside this engine) but never enters the
// signed payload.
type Row struct {
	SubjectName      string `json:"subject_name"`
	Email            string `json:"email"`
	CourseTitle      string `json:"course_title"`
	CohortLabel      string `json:"cohort_label,omitempty"`
	CertificateClass string `json:"certificate_class,omitempty"`
	IssueDate        string `json:"issue_date,omitempty"`
}

// Fields maps the row onto the signed field subset.
func (r Row) Fields() certificate.Fields {
	return certificate.Fields{
		SubjectName:      r.SubjectName,
		CourseTitle:      r.CourseTitle,
		CohortLabel:      r.CohortLabel,
		CertificateClass: r.CertificateClass,
		IssueDate:        r.IssueDate,
	}
}

// Validate checks the row before any issuance work. Name and email are
// required; the signed fields get the same validation issuance applies.
func (r Row) Validate() error {
	if strings.TrimSpace(r.SubjectName) == "" {
		return errRowf("subject name is required")
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return errRowf("email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return errRowf("email %q is malformed", email)
	}
	if r.IssueDate == "" {
		// Issue fills in today's date.
		f := r.Fields()
		f.IssueDate = "2000-01-01"
		return certificate.ValidateFields(f)
	}
	return certificate.ValidateFields(r.Fields())
}

// RowResult is one row's settled outcome.
type RowResult struct {
	Index         int    `json:"index"`
	CertificateID string `json:"certificate_id,omitempty"`
	DocumentHash  string `json:"document_hash,omitempty"`
	Published     bool   `json:"published,omitempty"`
	PublishedTo   int    `json:"published_to,omitempty"`
	Stage         string `json:"stage,omitempty"`
	Err           string `json:"error,omitempty"`
}

// Succeeded reports whether the row completed the pipeline. Publication is
// best-effort and does not count against success.
func (r RowResult) Succeeded() bool {
	return r.Err == ""
}

// Report is the final batch result.
type Report struct {
	BatchID   string      `json:"batch_id"`
	State     State       `json:"state"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Rows      []RowResult `json:"rows"`
}
