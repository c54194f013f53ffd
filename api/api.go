// Package api exposes the certificate engine over HTTP: issuance,
// revocation, document binding, batch import, and the public verification
// query surface.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/certforge/certforge/batch"
	"github.com/certforge/certforge/certificate"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	registry    *certificate.Registry
	renderer    batch.Renderer
	publisher   batch.Publisher
	logger      *slog.Logger
	maxBodySize int64
}

//go:embed openapi.yaml
var openapiSpec []byte

// defaultMaxBodySize bounds uploaded document bodies.
const defaultMaxBodySize = 10 << 20

// Option configures the API instance.
type Option func(*API)

// WithRenderer enables server-side rendering for document endpoints.
func WithRenderer(r batch.Renderer) Option {
	return func(a *API) { a.renderer = r }
}

// WithPublisher enables the publish endpoint and per-row broadcast in batches.
func WithPublisher(p batch.Publisher) Option {
	return func(a *API) { a.publisher = p }
}

// WithLogger sets the structured logger.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// New creates a new API instance.
func New(registry *certificate.Registry, opts ...Option) *API {
	a := &API{
		registry:    registry,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/certificates", a.IssueCertificate)
	r.Get("/certificates", a.ListCertificates)
	r.Get("/certificates/{certID}", a.GetCertificate)
	r.Post("/certificates/{certID}/revoke", a.RevokeCertificate)
	r.Get("/certificates/{certID}/document", a.RenderDocument)
	r.Post("/certificates/{certID}/document", a.BindDocument)
	r.Post("/certificates/{certID}/publish", a.PublishCertificate)

	r.Get("/verify/{target}", a.Verify)
	r.Post("/verify/document", a.VerifyDocument)

	r.Post("/batches", a.RunBatch)

	return r
}
