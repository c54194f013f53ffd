package batch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certforge/certificate"
	"github.com/certforge/certforge/publish"
	"github.com/certforge/certforge/render"
	"github.com/certforge/certforge/storage/memory"
)

// flakyRenderer fails or panics for subject names it is told to.
type flakyRenderer struct {
	inner    Renderer
	failFor  map[string]bool
	panicFor map[string]bool
	calls    int
}

func (f *flakyRenderer) Render(ctx context.Context, rec *certificate.Record) ([]byte, error) {
	f.calls++
	if f.panicFor[rec.SubjectName] {
		panic("renderer exploded")
	}
	if f.failFor[rec.SubjectName] {
		return nil, errors.New("render backend unavailable")
	}
	return f.inner.Render(ctx, rec)
}

type recordingPublisher struct {
	results map[string]*publish.Result
	calls   []string
}

func (p *recordingPublisher) Publish(ctx context.Context, rec *certificate.Record) (*publish.Result, error) {
	p.calls = append(p.calls, rec.ID)
	if r, ok := p.results[rec.SubjectName]; ok {
		return r, nil
	}
	return &publish.Result{PublishedTo: 2, Total: 2}, nil
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *certificate.Registry) {
	t.Helper()
	repo := memory.NewRepository()
	registry := certificate.New(repo, certificate.WithPrefix("BD"))
	renderer, err := render.NewText("")
	require.NoError(t, err)
	return New(registry, renderer, opts...), registry
}

func validRow(name string) Row {
	return Row{
		SubjectName: name,
		Email:       strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		CourseTitle: "Bitcoin Fundamentals",
		IssueDate:   "2025-01-15",
	}
}

func TestOrchestrator_AllRowsSucceed(t *testing.T) {
	ctx := context.Background()
	o, registry := newTestOrchestrator(t)

	rows := []Row{validRow("Alice Johnson"), validRow("Bob Smith"), validRow("Carol White")}
	report, err := o.Run(ctx, rows)
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)

	for _, row := range report.Rows {
		assert.True(t, row.Succeeded())
		assert.NotEmpty(t, row.CertificateID)
		assert.NotEmpty(t, row.DocumentHash)

		result, err := registry.VerifyByID(ctx, row.CertificateID)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	}
}

func TestOrchestrator_InvalidRowsDoNotAttemptIssuance(t *testing.T) {
	ctx := context.Background()
	o, registry := newTestOrchestrator(t)

	missingName := validRow("")
	missingEmail := validRow("Dan Brown")
	missingEmail.Email = ""

	rows := []Row{validRow("Alice Johnson"), missingName, missingEmail, validRow("Bob Smith")}
	report, err := o.Run(ctx, rows)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, report.Total, report.Succeeded+report.Failed)

	assert.Equal(t, StageValidate, report.Rows[1].Stage)
	assert.Equal(t, StageValidate, report.Rows[2].Stage)
	assert.Empty(t, report.Rows[1].CertificateID, "invalid rows must not reach issuance")

	// Exactly N-K records exist in the store.
	records, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestOrchestrator_RenderFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	registry := certificate.New(repo, certificate.WithPrefix("BD"))
	inner, err := render.NewText("")
	require.NoError(t, err)
	renderer := &flakyRenderer{inner: inner, failFor: map[string]bool{"Bob Smith": true}}

	o := New(registry, renderer)
	rows := []Row{validRow("Alice Johnson"), validRow("Bob Smith"), validRow("Carol White")}
	report, err := o.Run(ctx, rows)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, StageRender, report.Rows[1].Stage)

	// The failed row still left a persisted, signed, un-hashed record.
	require.NotEmpty(t, report.Rows[1].CertificateID)
	rec, err := registry.Get(ctx, report.Rows[1].CertificateID)
	require.NoError(t, err)
	assert.Empty(t, rec.DocumentHash)
	assert.True(t, certificate.VerifySignature(rec))

	// Later re-render and bind works.
	doc, err := inner.Render(ctx, rec)
	require.NoError(t, err)
	rec, err = registry.BindHash(ctx, rec.ID, doc)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.DocumentHash)
}

func TestOrchestrator_RowPanicIsContained(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	registry := certificate.New(repo, certificate.WithPrefix("BD"))
	inner, err := render.NewText("")
	require.NoError(t, err)
	renderer := &flakyRenderer{inner: inner, panicFor: map[string]bool{"Bob Smith": true}}

	o := New(registry, renderer)
	rows := []Row{validRow("Alice Johnson"), validRow("Bob Smith"), validRow("Carol White")}
	report, err := o.Run(ctx, rows)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Rows[1].Err, "panicked")
	assert.True(t, report.Rows[2].Succeeded(), "rows after a panic keep processing")
}

func TestOrchestrator_PublishIsBestEffort(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{results: map[string]*publish.Result{
		"Bob Smith": {PublishedTo: 0, Total: 2},
	}}
	o, _ := newTestOrchestrator(t, WithPublisher(pub))

	rows := []Row{validRow("Alice Johnson"), validRow("Bob Smith")}
	report, err := o.Run(ctx, rows)
	require.NoError(t, err)

	// Both rows succeed; only publication outcomes differ.
	assert.Equal(t, 2, report.Succeeded)
	assert.True(t, report.Rows[0].Published)
	assert.Equal(t, 2, report.Rows[0].PublishedTo)
	assert.False(t, report.Rows[1].Published)
	assert.Len(t, pub.calls, 2)
}

func TestOrchestrator_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := memory.NewRepository()
	registry := certificate.New(repo, certificate.WithPrefix("BD"))
	inner, err := render.NewText("")
	require.NoError(t, err)

	// Cancel once the first row's pipeline has fully settled.
	pub := publishFunc(func(c context.Context, rec *certificate.Record) (*publish.Result, error) {
		cancel()
		return &publish.Result{PublishedTo: 1, Total: 1}, nil
	})

	o := New(registry, inner, WithPublisher(pub))
	rows := []Row{validRow("Alice Johnson"), validRow("Bob Smith"), validRow("Carol White")}
	report, err := o.Run(ctx, rows)
	require.ErrorIs(t, err, context.Canceled)

	// The completed row stays intact; the remainder are marked canceled.
	assert.True(t, report.Rows[0].Succeeded())
	assert.NotEmpty(t, report.Rows[0].DocumentHash)
	assert.Equal(t, StageCanceled, report.Rows[1].Stage)
	assert.Equal(t, StageCanceled, report.Rows[2].Stage)

	records, err := registry.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

type publishFunc func(ctx context.Context, rec *certificate.Record) (*publish.Result, error)

func (f publishFunc) Publish(ctx context.Context, rec *certificate.Record) (*publish.Result, error) {
	return f(ctx, rec)
}

func TestRow_Validate(t *testing.T) {
	require.NoError(t, validRow("Alice Johnson").Validate())

	noDate := validRow("Alice Johnson")
	noDate.IssueDate = ""
	require.NoError(t, noDate.Validate(), "issue date is defaulted at issuance")

	badEmail := validRow("Alice Johnson")
	badEmail.Email = "not-an-email"
	require.ErrorIs(t, badEmail.Validate(), certificate.ErrValidation)

	badDate := validRow("Alice Johnson")
	badDate.IssueDate = "Jan 15, 2025"
	require.ErrorIs(t, badDate.Validate(), certificate.ErrValidation)
}
