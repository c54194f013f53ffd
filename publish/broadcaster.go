// Package publish fans signed certificate announcements out to a redundant
// set of independent public log endpoints. Publication is advisory: endpoints
// are redundant copies, not an authority, and partial failure is a normal
// outcome reported rather than retried.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/certforge/certforge/certificate"
	"github.com/certforge/certforge/issuer"
)

// Endpoint is one public log service in the broadcast set.
type Endpoint struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Attempt reports one endpoint's outcome, success or failure.
type Attempt struct {
	Endpoint       string        `json:"endpoint"`
	AnnouncementID string        `json:"announcement_id,omitempty"`
	Duration       time.Duration `json:"duration"`
	Err            string        `json:"error,omitempty"`
}

// Result is the settled outcome of one broadcast. The operation as a whole
// never fails on endpoint errors; a record counts as published when at least
// one endpoint accepted the announcement.
type Result struct {
	PublishedTo int       `json:"published_to"`
	Total       int       `json:"total"`
	Skipped     bool      `json:"skipped,omitempty"`
	Attempts    []Attempt `json:"attempts,omitempty"`

	Ref *certificate.PublicationRef `json:"ref,omitempty"`
}

// Published reports whether the announcement reached at least one endpoint.
func (r *Result) Published() bool {
	return r.Skipped || r.PublishedTo >= 1
}

// defaultAttemptTimeout bounds each endpoint attempt so one unreachable
// endpoint cannot stall the others' reporting.
const defaultAttemptTimeout = 10 * time.Second

// Broadcaster publishes announcements for certificate records.
type Broadcaster struct {
	registry  *certificate.Registry
	identity  *issuer.Identity
	endpoints []Endpoint
	origin    string
	client    *http.Client
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithHTTPClient overrides the HTTP client used for endpoint calls.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Broadcaster) { b.client = client }
}

// WithAttemptTimeout sets the per-endpoint timeout.
func WithAttemptTimeout(d time.Duration) Option {
	return func(b *Broadcaster) { b.timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) { b.logger = logger }
}

// NewBroadcaster creates a Broadcaster over a fixed endpoint set. origin is
// the public base URL verification links are built against.
func NewBroadcaster(registry *certificate.Registry, identity *issuer.Identity, origin string, endpoints []Endpoint, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		registry:  registry,
		identity:  identity,
		endpoints: endpoints,
		origin:    origin,
		client:    &http.Client{},
		timeout:   defaultAttemptTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// announceResponse is the body a log endpoint returns on acceptance. The
// endpoint-assigned ID is optional; endpoints that echo nothing fall back to
// the client-generated announcement ID.
type announceResponse struct {
	AnnouncementID string `json:"announcement_id"`
}

// Publish broadcasts a signed announcement for the record to every endpoint
// concurrently and waits for all attempts to settle. Records that already
// carry a publication reference are skipped, which keeps re-publication from
// duplicating announcements. On first success the publication reference is
// persisted through the registry.
func (b *Broadcaster) Publish(ctx context.Context, rec *certificate.Record) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rec.PublicationRef != nil {
		b.logger.Info("record already published, skipping broadcast", "id", rec.ID)
		return &Result{Skipped: true, Total: len(b.endpoints), Ref: rec.PublicationRef}, nil
	}

	ann, err := NewAnnouncement(b.identity, b.origin, rec)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(ann)
	if err != nil {
		return nil, err
	}

	// All attempts start together and the result waits for every one to
	// settle; endpoint independence is the point of the redundancy, so there
	// is no fail-fast.
	attempts := make([]Attempt, len(b.endpoints))
	var wg sync.WaitGroup
	for i, ep := range b.endpoints {
		wg.Add(1)
		go func(i int, ep Endpoint) {
			defer wg.Done()
			attempts[i] = b.attempt(ctx, ep, ann.AnnouncementID, body)
		}(i, ep)
	}
	wg.Wait()

	result := &Result{Total: len(b.endpoints), Attempts: attempts}
	var ref *certificate.PublicationRef
	for _, a := range attempts {
		if a.Err != "" {
			continue
		}
		result.PublishedTo++
		if ref == nil {
			ref = &certificate.PublicationRef{
				Endpoint:        a.Endpoint,
				AnnouncementID:  a.AnnouncementID,
				IssuerPublicKey: ann.IssuerPublicKey,
			}
		}
	}

	if ref != nil {
		updated, err := b.registry.SetPublicationRef(ctx, rec.ID, *ref)
		if err != nil {
			return nil, fmt.Errorf("recording publication ref for %s: %w", rec.ID, err)
		}
		result.Ref = updated.PublicationRef
	}

	b.logger.Info("broadcast settled",
		"id", rec.ID, "published_to", result.PublishedTo, "total", result.Total)
	return result, nil
}

// attempt POSTs the announcement to one endpoint with its own timeout.
func (b *Broadcaster) attempt(ctx context.Context, ep Endpoint, fallbackID string, body []byte) Attempt {
	start := time.Now()
	att := Attempt{Endpoint: ep.Name}
	if att.Endpoint == "" {
		att.Endpoint = ep.URL
	}

	attemptCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		att.Err = err.Error()
		att.Duration = time.Since(start)
		return att
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CertForge-Broadcast/1.0")

	resp, err := b.client.Do(req)
	if err != nil {
		att.Err = err.Error()
		att.Duration = time.Since(start)
		b.logger.Warn("broadcast attempt failed", "endpoint", att.Endpoint, "error", err)
		return att
	}
	defer resp.Body.Close()

	att.Duration = time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		att.Err = fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
		b.logger.Warn("broadcast attempt rejected", "endpoint", att.Endpoint, "status", resp.StatusCode)
		return att
	}

	var ar announceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&ar); err == nil && ar.AnnouncementID != "" {
		att.AnnouncementID = ar.AnnouncementID
	} else {
		att.AnnouncementID = fallbackID
	}
	return att
}
