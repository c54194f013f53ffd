// Package render provides a byte-deterministic plain-text document renderer.
//
// Real deployments plug in a visual renderer behind the same contract; this
// implementation exists so the pipeline and the CLI can produce documents
// whose hashes are stable across re-renders. Determinism is the only hard
// requirement the hash binder places on a renderer: no timestamps, no
// environment-dependent output, identical bytes for identical certificates.
package render

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/certforge/certforge/certificate"
)

// DefaultTemplate is the built-in certificate layout.
const DefaultTemplate = `================================================================
                    {{ .DisplayClass }}
================================================================

This certifies that

    {{ .SubjectName }}

has successfully completed

    {{ .CourseTitle }}
{{ if .CohortLabel }}
    {{ .CohortLabel }}
{{ end }}
Issued on {{ .IssueDate }}

Certificate ID: {{ .ID }}
Signature: {{ .Signature }}
================================================================
`

// Text renders certificates into a fixed plain-text layout.
type Text struct {
	tmpl *template.Template
}

// NewText parses the template source into a renderer. An empty source uses
// DefaultTemplate.
func NewText(source string) (*Text, error) {
	if source == "" {
		source = DefaultTemplate
	}
	tmpl, err := template.New("certificate").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate template: %w", err)
	}
	return &Text{tmpl: tmpl}, nil
}

// Render produces the document bytes for a certificate. Output depends only
// on the record's fields, so re-rendering an unchanged record yields
// byte-identical output.
func (t *Text) Render(ctx context.Context, rec *certificate.Record) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, rec); err != nil {
		return nil, fmt.Errorf("rendering certificate %s: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}
