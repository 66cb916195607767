// Package config holds the server configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// command line flags. The result is fixed for the life of the process and
// handed to each component when it is constructed.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloudchase/ota-distribution/manifest"
)

const (
	defaultListen          = ":8080"
	defaultRoot            = "static"
	defaultURLPrefix       = "static"
	defaultManifestFormat  = "xml"
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
)

// Config is the server configuration.
type Config struct {
	// Listen is the address of the public server.
	Listen string `yaml:"listen"`
	// Root is the catalog directory.
	Root string `yaml:"root"`
	// URLPrefix is the first path segment under which the catalog is served.
	URLPrefix string `yaml:"url_prefix"`
	// PublicURL, when set, replaces the scheme and host taken from requests
	// in generated links, e.g. "https://apps.example.com".
	PublicURL string `yaml:"public_url"`
	// ManifestFormat is "xml" or "binary".
	ManifestFormat string `yaml:"manifest_format"`
	// MetricsListen is the address of the metrics server; empty disables it.
	MetricsListen string `yaml:"metrics_listen"`
	// AuditDB is the path of the SQLite audit database; empty disables it.
	AuditDB string `yaml:"audit_db"`

	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a time.Duration written as a string ("10s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:          defaultListen,
		Root:            defaultRoot,
		URLPrefix:       defaultURLPrefix,
		ManifestFormat:  defaultManifestFormat,
		ShutdownTimeout: Duration(defaultShutdownTimeout),
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Parse decodes YAML data over the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document (or one holding only comments) decodes as io.EOF.
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	// #nosec G304 -- config path is operator-provided.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration and normalises the URL prefix.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.Root == "" {
		errs = append(errs, errors.New("catalog root is empty"))
	}
	c.URLPrefix = strings.Trim(c.URLPrefix, "/")
	if c.URLPrefix == "" {
		errs = append(errs, errors.New("url prefix is empty"))
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("public url: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("public url %q: scheme must be http or https", c.PublicURL))
		case u.Host == "":
			errs = append(errs, fmt.Errorf("public url %q: missing host", c.PublicURL))
		}
	}
	if _, err := manifest.ParseFormat(c.ManifestFormat); err != nil {
		errs = append(errs, err)
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("shutdown timeout is negative"))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Format returns the parsed manifest format. Call after Validate.
func (c *Config) Format() manifest.Format {
	f, _ := manifest.ParseFormat(c.ManifestFormat)
	return f
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := l.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
