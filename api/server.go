package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cloudchase/ota-distribution/audit"
	"github.com/cloudchase/ota-distribution/catalog"
	"github.com/cloudchase/ota-distribution/config"
	"github.com/cloudchase/ota-distribution/manifest"
	"github.com/cloudchase/ota-distribution/metrics"
)

// Auditor records downloads.
type Auditor interface {
	Record(audit.Event) error
}

// Server is the HTTP server publishing a catalog for over-the-air
// installation.
type Server struct {
	catalog         *catalog.Catalog
	addr            string
	prefix          string
	publicURL       *url.URL
	format          manifest.Format
	shutdownTimeout time.Duration

	logger  *slog.Logger
	metrics metrics.HTTPMetrics
	auditor Auditor

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the request metrics recorder.
func WithMetrics(m metrics.HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAuditor records manifest and archive downloads to a.
func WithAuditor(a Auditor) Option {
	return func(s *Server) { s.auditor = a }
}

// NewServer creates a server for cat. cfg must have been validated.
func NewServer(cat *catalog.Catalog, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		catalog:         cat,
		addr:            cfg.Listen,
		prefix:          cfg.URLPrefix,
		format:          cfg.Format(),
		shutdownTimeout: time.Duration(cfg.ShutdownTimeout),
		logger:          slog.Default(),
		metrics:         metrics.Noop{},
	}
	if cfg.PublicURL != "" {
		u, err := url.Parse(cfg.PublicURL)
		if err != nil {
			return nil, fmt.Errorf("public url: %w", err)
		}
		s.publicURL = u
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, s)
	s.handler = s.withRequestLog(mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start serves HTTP on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting OTA distribution server",
		"addr", s.addr, "root", s.catalog.Dir(), "prefix", "/"+s.prefix+"/", "manifest_format", s.format.String())
	return ListenAndServe(ctx, srv, s.shutdownTimeout, s.logger)
}

// ListenAndServe runs srv until ctx is done, then shuts it down, waiting up
// to timeout for in-flight requests.
func ListenAndServe(ctx context.Context, srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server", "addr", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", srv.Addr, err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
