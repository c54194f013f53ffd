package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certforge/api"
	"github.com/certforge/certforge/batch"
	"github.com/certforge/certforge/certificate"
	"github.com/certforge/certforge/render"
	"github.com/certforge/certforge/storage/memory"
)

func setupServer(t *testing.T, opts ...api.Option) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := certificate.New(memory.NewRepository(), certificate.WithLogger(logger))
	renderer, err := render.NewText("")
	require.NoError(t, err)

	opts = append([]api.Option{api.WithRenderer(renderer), api.WithLogger(logger)}, opts...)
	a := api.New(registry, opts...)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	return httptest.NewServer(r)
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func doRaw(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func issueCertificate(t *testing.T, baseURL string) *certificate.Record {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/v1/certificates", map[string]string{
		"subject_name": "Alice Johnson",
		"course_title": "Bitcoin Fundamentals",
		"cohort_label": "Cohort 7",
		"issue_date":   "2025-01-15",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created api.CertificateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotNil(t, created.Certificate)
	return created.Certificate
}

func TestIssueAndGetCertificate(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	rec := issueCertificate(t, srv.URL)
	assert.True(t, certificate.ValidID(rec.ID))
	assert.NotEmpty(t, rec.Signature)
	assert.Equal(t, certificate.StatusActive, rec.Status)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates/"+rec.ID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got api.CertificateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, rec.ID, got.Certificate.ID)
	assert.Equal(t, "Alice Johnson", got.Certificate.SubjectName)
}

func TestIssueCertificate_MissingFields(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates", map[string]string{
		"course_title": "Bitcoin Fundamentals",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)
}

func TestGetCertificate_NotFound(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates/BD-2025-FFFFFF", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListCertificates(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	issueCertificate(t, srv.URL)
	issueCertificate(t, srv.URL)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list api.ListCertificatesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Certificates, 2)
}

func TestRevokeCertificate(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	rec := issueCertificate(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates/"+rec.ID+"/revoke", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var revoked api.RevokeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&revoked))
	assert.True(t, revoked.Revoked)
	assert.Equal(t, certificate.StatusRevoked, revoked.Certificate.Status)
	require.NotNil(t, revoked.Certificate.RevokedAt)
	firstRevokedAt := *revoked.Certificate.RevokedAt

	// Second revoke is a no-op success and keeps the original timestamp.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates/"+rec.ID+"/revoke", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&revoked))
	assert.False(t, revoked.Revoked)
	require.NotNil(t, revoked.Certificate.RevokedAt)
	assert.Equal(t, firstRevokedAt, *revoked.Certificate.RevokedAt)
}

func TestRenderDocument_BindsHash(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	rec := issueCertificate(t, srv.URL)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates/"+rec.ID+"/document", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Alice Johnson")
	assert.Contains(t, string(doc), rec.ID)

	// Re-rendering the unchanged record produces identical bytes and the
	// rebind stays a no-op.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates/"+rec.ID+"/document", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, doc, again)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates/"+rec.ID, nil)
	defer resp.Body.Close()
	var got api.CertificateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, certificate.DocumentHash(doc), got.Certificate.DocumentHash)
}

func TestBindDocument_ConflictOnDifferentBytes(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	rec := issueCertificate(t, srv.URL)

	resp := doRaw(t, http.MethodPost, srv.URL+"/api/v1/certificates/"+rec.ID+"/document", []byte("rendered document v1"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Identical bytes rebind fine.
	resp = doRaw(t, http.MethodPost, srv.URL+"/api/v1/certificates/"+rec.ID+"/document", []byte("rendered document v1"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Different bytes are rejected.
	resp = doRaw(t, http.MethodPost, srv.URL+"/api/v1/certificates/"+rec.ID+"/document", []byte("rendered document v2"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestVerifyByID(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	rec := issueCertificate(t, srv.URL)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/verify/"+rec.ID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result certificate.VerifyResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Valid)
	assert.Equal(t, certificate.ReasonAuthentic, result.Reason)

	// Revoked certificates verify as invalid, not as an error.
	revoke := doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates/"+rec.ID+"/revoke", nil)
	revoke.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/verify/"+rec.ID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Valid)
	assert.Equal(t, certificate.ReasonRevoked, result.Reason)
}

func TestVerify_UnknownTargets(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/verify/BD-2025-AB12CD", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result certificate.VerifyResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Valid)
	assert.Equal(t, certificate.ReasonNotFound, result.Reason)

	// A non-ID target is treated as a content hash.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/verify/deadbeef", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Valid)
	assert.Equal(t, certificate.ReasonHashNotFound, result.Reason)
}

func TestVerifyDocument(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	rec := issueCertificate(t, srv.URL)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/certificates/"+rec.ID+"/document", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	resp = doRaw(t, http.MethodPost, srv.URL+"/api/v1/verify/document", doc)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result certificate.VerifyResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Valid)
	require.NotNil(t, result.Record)
	assert.Equal(t, rec.ID, result.Record.ID)

	// Altered bytes hash to nothing in the store.
	resp = doRaw(t, http.MethodPost, srv.URL+"/api/v1/verify/document", append(doc, '!'))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Valid)
	assert.Equal(t, certificate.ReasonHashNotFound, result.Reason)
}

func TestRunBatch_PartialFailure(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/batches", api.BatchRequest{
		Rows: []batch.Row{
			{SubjectName: "Alice Johnson", Email: "alice@example.com", CourseTitle: "Bitcoin Fundamentals"},
			{SubjectName: "", Email: "bob@example.com", CourseTitle: "Bitcoin Fundamentals"},
			{SubjectName: "Carol White", Email: "carol@example.com", CourseTitle: "Bitcoin Fundamentals"},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Report)
	assert.Equal(t, 3, body.Report.Total)
	assert.Equal(t, 2, body.Report.Succeeded)
	assert.Equal(t, 1, body.Report.Failed)
	assert.Equal(t, batch.StageValidate, body.Report.Rows[1].Stage)
	assert.NotEmpty(t, body.Report.Rows[0].CertificateID)
	assert.NotEmpty(t, body.Report.Rows[0].DocumentHash)
}

func TestRunBatch_EmptyRows(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/batches", api.BatchRequest{})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPublishCertificate_NotConfigured(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	rec := issueCertificate(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/certificates/"+rec.ID+"/publish", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestOpenAPISpecServed(t *testing.T) {
	srv := setupServer(t)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/openapi.yaml", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	spec, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(spec), "openapi:")
}
