package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/certforge/certforge/api"
	"github.com/certforge/certforge/issuer"
	"github.com/certforge/certforge/publish"
)

var (
	serverPort    int
	serverDataDir string
	serverTLSCert string
	serverTLSKey  string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the certificate service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = serverPort
		}
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = serverDataDir
		}
		if cmd.Flags().Changed("tls-cert") {
			cfg.TLSCert = serverTLSCert
		}
		if cmd.Flags().Changed("tls-key") {
			cfg.TLSKey = serverTLSKey
		}

		logger := newLogger(false)
		registry, closeRepo, err := newRegistry(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeRepo()

		renderer, err := newRenderer(cfg)
		if err != nil {
			return err
		}

		opts := []api.Option{api.WithRenderer(renderer), api.WithLogger(logger)}
		if cfg.KeyFile != "" && len(cfg.Endpoints) > 0 {
			identity, err := issuer.Load(cfg.KeyFile, cfg.KeyPassphrase)
			if err != nil {
				return fmt.Errorf("loading issuer identity: %w", err)
			}
			broadcaster := publish.NewBroadcaster(registry, identity, cfg.Origin,
				cfg.publishEndpoints(), publish.WithLogger(logger))
			opts = append(opts, api.WithPublisher(broadcaster))
		}

		a := api.New(registry, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		useTLS := cfg.TLSCert != "" && cfg.TLSKey != ""
		if useTLS {
			cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			server.TLSConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if useTLS {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (data: %s)...\n", cfg.Port, cfg.DataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&serverDataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().StringVar(&serverTLSCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&serverTLSKey, "tls-key", "", "Path to TLS key file")
}
