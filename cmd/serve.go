package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudchase/ota-distribution/api"
	"github.com/cloudchase/ota-distribution/audit"
	"github.com/cloudchase/ota-distribution/catalog"
	"github.com/cloudchase/ota-distribution/config"
	"github.com/cloudchase/ota-distribution/metrics"
)

var serveFlags struct {
	config         string
	listen         string
	root           string
	urlPrefix      string
	publicURL      string
	manifestFormat string
	metricsListen  string
	auditDB        string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the distribution server",
	Long: `Serve the catalog directory over HTTP: an index page at /, installer
manifests at /<prefix>/<name>.plist and raw archives at /<prefix>/<name>.ipa.

Flags override values read from --config.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.config, "config", "", "YAML configuration file")
	f.StringVar(&serveFlags.listen, "listen", ":8080", "Address to listen on")
	f.StringVar(&serveFlags.root, "root", "static", "Catalog directory")
	f.StringVar(&serveFlags.urlPrefix, "url-prefix", "static", "URL path segment the catalog is served under")
	f.StringVar(&serveFlags.publicURL, "public-url", "", "Scheme and host used in generated links (default: taken from each request)")
	f.StringVar(&serveFlags.manifestFormat, "manifest-format", "xml", "Installer manifest encoding: xml or binary")
	f.StringVar(&serveFlags.metricsListen, "metrics-listen", "", "Address of the Prometheus metrics server (disabled when empty)")
	f.StringVar(&serveFlags.auditDB, "audit-db", "", "SQLite database recording downloads (disabled when empty)")
}

// loadServeConfig reads --config and applies the flags the user set on top.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(serveFlags.config)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"listen":          &cfg.Listen,
		"root":            &cfg.Root,
		"url-prefix":      &cfg.URLPrefix,
		"public-url":      &cfg.PublicURL,
		"manifest-format": &cfg.ManifestFormat,
		"metrics-listen":  &cfg.MetricsListen,
		"audit-db":        &cfg.AuditDB,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if info, err := os.Stat(cfg.Root); err != nil {
		logger.Warn("Catalog directory is not readable, serving an empty catalog", "root", cfg.Root, "error", err)
	} else if !info.IsDir() {
		logger.Warn("Catalog root is not a directory", "root", cfg.Root)
	}

	catOpts := []catalog.Option{catalog.WithLogger(logger)}
	srvOpts := []api.Option{api.WithLogger(logger)}

	if cfg.MetricsListen != "" {
		m := metrics.NewProm("ota")
		catOpts = append(catOpts, catalog.WithMetrics(m))
		srvOpts = append(srvOpts, api.WithMetrics(m))

		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		msrv := &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.MetricsListen)
			if err := api.ListenAndServe(ctx, msrv, time.Duration(cfg.ShutdownTimeout), logger); err != nil {
				logger.Error("Metrics server failed", "addr", cfg.MetricsListen, "error", err)
			}
		}()
	}

	if cfg.AuditDB != "" {
		auditLog, err := audit.Open(cfg.AuditDB)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer auditLog.Close()
		srvOpts = append(srvOpts, api.WithAuditor(auditLog))
	}

	srv, err := api.NewServer(catalog.New(cfg.Root, catOpts...), cfg, srvOpts...)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	return srv.Start(ctx)
}
