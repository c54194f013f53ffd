package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/certforge/certforge/certificate"
	"github.com/certforge/certforge/publish"
	"github.com/certforge/certforge/render"
	"github.com/certforge/certforge/storage"
	bboltstorage "github.com/certforge/certforge/storage/bbolt"
	"github.com/certforge/certforge/storage/postgres"
)

// config is the environment-driven service configuration. Flags on individual
// commands override these values when set.
type config struct {
	Port          int      `env:"CERTFORGE_PORT" envDefault:"8080"`
	DataDir       string   `env:"CERTFORGE_DATA_DIR" envDefault:"./data"`
	PostgresDSN   string   `env:"CERTFORGE_POSTGRES_DSN"`
	IDPrefix      string   `env:"CERTFORGE_ID_PREFIX" envDefault:"BD"`
	KeyFile       string   `env:"CERTFORGE_ISSUER_KEYFILE"`
	KeyPassphrase string   `env:"CERTFORGE_ISSUER_PASSPHRASE"`
	Endpoints     []string `env:"CERTFORGE_PUBLISH_ENDPOINTS" envSeparator:","`
	Origin        string   `env:"CERTFORGE_VERIFY_ORIGIN" envDefault:"http://localhost:8080"`
	TemplateFile  string   `env:"CERTFORGE_TEMPLATE_FILE"`
	TLSCert       string   `env:"CERTFORGE_TLS_CERT"`
	TLSKey        string   `env:"CERTFORGE_TLS_KEY"`
}

func loadConfig() (*config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

func (c *config) publishEndpoints() []publish.Endpoint {
	eps := make([]publish.Endpoint, 0, len(c.Endpoints))
	for _, u := range c.Endpoints {
		eps = append(eps, publish.Endpoint{URL: u})
	}
	return eps
}

// openRepository selects the record store: postgres when a DSN is configured,
// bbolt in the data directory otherwise.
func openRepository(ctx context.Context, cfg *config) (storage.Repository, func(), error) {
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewRepositoryFromDSN(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return store, store.Close, nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := bboltstorage.NewRepositoryFromFile(cfg.DataDir+"/certificates.db", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("opening certificate storage: %w", err)
	}
	return store, func() { store.Close() }, nil
}

func newRegistry(ctx context.Context, cfg *config, logger *slog.Logger) (*certificate.Registry, func(), error) {
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	registry := certificate.New(repo,
		certificate.WithPrefix(cfg.IDPrefix),
		certificate.WithLogger(logger))
	return registry, closeRepo, nil
}

func newRenderer(cfg *config) (*render.Text, error) {
	source := ""
	if cfg.TemplateFile != "" {
		data, err := os.ReadFile(cfg.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("reading certificate template: %w", err)
		}
		source = string(data)
	}
	return render.NewText(source)
}

func newLogger(quiet bool) *slog.Logger {
	if quiet {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
