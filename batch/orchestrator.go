package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/certforge/certforge/certificate"
	"github.com/certforge/certforge/publish"
)

// Renderer is the external document renderer contract. Implementations must
// be byte-deterministic for identical records.
type Renderer interface {
	Render(ctx context.Context, rec *certificate.Record) ([]byte, error)
}

// Publisher broadcasts an announcement for a record. Publication during a
// batch is best-effort; its failure never fails a row.
type Publisher interface {
	Publish(ctx context.Context, rec *certificate.Record) (*publish.Result, error)
}

// Orchestrator runs batches through validation and the per-row issuance
// pipeline: mint, sign, persist, render, bind hash, publish.
type Orchestrator struct {
	registry  *certificate.Registry
	renderer  Renderer
	publisher Publisher
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher enables best-effort announcement broadcast per row.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New creates an Orchestrator.
func New(registry *certificate.Registry, renderer Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes rows strictly in order: row n+1 does not start until row n's
// pipeline settles. Progress reporting downstream depends on that ordering,
// and the external renderer is not assumed reentrant-safe.
//
// Row failures are recorded in the report and never abort the batch. A
// canceled context stops before the next external call; rows already
// completed stay intact, the remainder are marked canceled, and the context
// error is returned alongside the partial report.
func (o *Orchestrator) Run(ctx context.Context, rows []Row) (*Report, error) {
	report := &Report{
		BatchID: uuid.NewString(),
		State:   StateValidating,
		Total:   len(rows),
		Rows:    make([]RowResult, len(rows)),
	}
	o.logger.Info("batch started", "batch_id", report.BatchID, "rows", len(rows))

	for i, row := range rows {
		report.Rows[i] = RowResult{Index: i}
		if err := row.Validate(); err != nil {
			report.Rows[i].Stage = StageValidate
			report.Rows[i].Err = err.Error()
		}
	}

	report.State = StateIssuing
	for i, row := range rows {
		if report.Rows[i].Err != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			o.cancelRemaining(report, i)
			o.finish(report)
			return report, err
		}
		o.processRow(ctx, row, &report.Rows[i])
	}

	o.finish(report)
	return report, nil
}

// processRow runs one row's pipeline. A renderer or store panic is contained
// here so a misbehaving row cannot take its siblings down.
func (o *Orchestrator) processRow(ctx context.Context, row Row, result *RowResult) {
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Sprintf("row panicked: %v", r)
			o.logger.Error("batch row panicked", "index", result.Index, "panic", r)
		}
	}()

	rec, err := o.registry.Issue(ctx, row.Fields())
	if err != nil {
		result.Stage = StageIssue
		result.Err = err.Error()
		return
	}
	result.CertificateID = rec.ID

	if err := ctx.Err(); err != nil {
		result.Stage = StageCanceled
		result.Err = err.Error()
		return
	}

	// Render failure leaves a persisted, signed, un-hashed record behind.
	// The record can be re-rendered and bound later; it is never rolled back.
	doc, err := o.renderer.Render(ctx, rec)
	if err != nil {
		result.Stage = StageRender
		result.Err = err.Error()
		o.logger.Warn("render failed, record kept unbound", "id", rec.ID, "error", err)
		return
	}

	rec, err = o.registry.BindHash(ctx, rec.ID, doc)
	if err != nil {
		result.Stage = StageBind
		result.Err = err.Error()
		return
	}
	result.DocumentHash = rec.DocumentHash

	if o.publisher != nil {
		pubResult, err := o.publisher.Publish(ctx, rec)
		if err != nil {
			// Best-effort: reported, not fatal to the row.
			o.logger.Warn("publish failed", "id", rec.ID, "error", err)
			return
		}
		result.Published = pubResult.Published()
		result.PublishedTo = pubResult.PublishedTo
	}
}

func (o *Orchestrator) cancelRemaining(report *Report, from int) {
	for i := from; i < len(report.Rows); i++ {
		if report.Rows[i].Err == "" && report.Rows[i].CertificateID == "" {
			report.Rows[i].Stage = StageCanceled
			report.Rows[i].Err = context.Canceled.Error()
		}
	}
}

func (o *Orchestrator) finish(report *Report) {
	report.State = StateDone
	for _, row := range report.Rows {
		if row.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	o.logger.Info("batch finished",
		"batch_id", report.BatchID,
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed)
}
