package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/certforge/certforge/batch"
	"github.com/certforge/certforge/certificate"
)

// IssueCertificate handles POST /certificates.
func (a *API) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := a.registry.Issue(r.Context(), certificate.Fields{
		SubjectName:      req.SubjectName,
		CourseTitle:      req.CourseTitle,
		CohortLabel:      req.CohortLabel,
		CertificateClass: req.CertificateClass,
		IssueDate:        req.IssueDate,
	})
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CertificateResponse{Certificate: rec})
}

// ListCertificates handles GET /certificates.
func (a *API) ListCertificates(w http.ResponseWriter, r *http.Request) {
	records, err := a.registry.List(r.Context())
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListCertificatesResponse{Certificates: records, Total: len(records)})
}

// GetCertificate handles GET /certificates/{certID}.
func (a *API) GetCertificate(w http.ResponseWriter, r *http.Request) {
	rec, err := a.registry.Get(r.Context(), chi.URLParam(r, "certID"))
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CertificateResponse{Certificate: rec})
}

// RevokeCertificate handles POST /certificates/{certID}/revoke.
func (a *API) RevokeCertificate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "certID")
	changed, err := a.registry.Revoke(r.Context(), id)
	if err != nil {
		a.mapError(w, err)
		return
	}
	rec, err := a.registry.Get(r.Context(), id)
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RevokeResponse{Revoked: changed, Certificate: rec})
}

// RenderDocument handles GET /certificates/{certID}/document: it renders the
// certificate, binds the resulting hash (idempotent for a byte-identical
// re-render), and returns the document.
func (a *API) RenderDocument(w http.ResponseWriter, r *http.Request) {
	if a.renderer == nil {
		writeError(w, http.StatusNotImplemented, "no document renderer configured")
		return
	}
	id := chi.URLParam(r, "certID")
	rec, err := a.registry.Get(r.Context(), id)
	if err != nil {
		a.mapError(w, err)
		return
	}
	doc, err := a.renderer.Render(r.Context(), rec)
	if err != nil {
		a.logger.Error("render failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, "document renderer failed")
		return
	}
	if _, err := a.registry.BindHash(r.Context(), id, doc); err != nil {
		a.mapError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(doc)
}

// BindDocument handles POST /certificates/{certID}/document: it binds the
// content hash of externally rendered document bytes.
func (a *API) BindDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(io.LimitReader(r.Body, a.maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading document body")
		return
	}
	if len(doc) == 0 {
		writeError(w, http.StatusBadRequest, "document body must not be empty")
		return
	}
	rec, err := a.registry.BindHash(r.Context(), chi.URLParam(r, "certID"), doc)
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CertificateResponse{Certificate: rec})
}

// PublishCertificate handles POST /certificates/{certID}/publish.
func (a *API) PublishCertificate(w http.ResponseWriter, r *http.Request) {
	if a.publisher == nil {
		writeError(w, http.StatusNotImplemented, "no broadcast publisher configured")
		return
	}
	rec, err := a.registry.Get(r.Context(), chi.URLParam(r, "certID"))
	if err != nil {
		a.mapError(w, err)
		return
	}
	result, err := a.publisher.Publish(r.Context(), rec)
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PublishResponse{Result: result})
}

// Verify handles GET /verify/{target}, the public verification surface.
// The target is either a certificate ID or a hex content hash; both forms
// round-trip from published verification URLs.
func (a *API) Verify(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	var (
		result *certificate.VerifyResult
		err    error
	)
	if certificate.ValidID(target) {
		result, err = a.registry.VerifyByID(r.Context(), target)
	} else {
		result, err = a.registry.VerifyByHash(r.Context(), target)
	}
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// VerifyDocument handles POST /verify/document with raw document bytes.
func (a *API) VerifyDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(io.LimitReader(r.Body, a.maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading document body")
		return
	}
	result, err := a.registry.VerifyByDocument(r.Context(), doc)
	if err != nil {
		a.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunBatch handles POST /batches: it drives the rows through the issuance
// pipeline and returns the per-row report.
func (a *API) RunBatch(w http.ResponseWriter, r *http.Request) {
	if a.renderer == nil {
		writeError(w, http.StatusNotImplemented, "no document renderer configured")
		return
	}
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one row")
		return
	}

	opts := []batch.Option{batch.WithLogger(a.logger)}
	if req.Publish && a.publisher != nil {
		opts = append(opts, batch.WithPublisher(a.publisher))
	}
	orchestrator := batch.New(a.registry, a.renderer, opts...)

	report, err := orchestrator.Run(r.Context(), req.Rows)
	if err != nil {
		// The report still carries the rows that completed before
		// cancellation; return it alongside the error status.
		a.logger.Warn("batch interrupted", "batch_id", report.BatchID, "error", err)
	}
	writeJSON(w, http.StatusOK, BatchResponse{Report: report})
}
