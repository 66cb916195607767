// Package catalog discovers application archives beneath a directory and
// reads their bundle metadata.
//
// Nothing is cached: every call walks the directory and opens the archives
// again. All file access after the walk goes through an [os.Root], so a
// relative path can never resolve outside the catalog directory.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cloudchase/ota-distribution/ipa"
	"github.com/cloudchase/ota-distribution/metrics"
)

// ErrInvalidPath is returned for relative paths that are empty, absolute or
// contain ".." elements.
var ErrInvalidPath = fmt.Errorf("invalid catalog path: %w", fs.ErrNotExist)

// Catalog provides access to the archives beneath a directory.
type Catalog struct {
	dir     string
	scanner *Scanner
	logger  *slog.Logger
	metrics metrics.CatalogMetrics
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for skipped paths. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// WithMetrics sets the recorder for archive inspections.
func WithMetrics(m metrics.CatalogMetrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// New creates a Catalog for the archives beneath dir.
func New(dir string, opts ...Option) *Catalog {
	dir = filepath.Clean(dir)
	c := &Catalog{
		dir:     dir,
		scanner: NewScanner(dir),
		logger:  slog.Default(),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the catalog directory.
func (c *Catalog) Dir() string { return c.dir }

// Entries inspects every archive beneath the catalog directory and returns
// them ordered by relative path.
//
// A catalog directory that cannot be opened is an error. Anything that goes
// wrong below it is contained: unreadable subdirectories are logged and
// skipped, and an archive that cannot be inspected is returned with Err set
// so one bad upload does not hide the rest of the catalog.
func (c *Catalog) Entries() ([]Entry, error) {
	root, err := os.OpenRoot(c.dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	var entries []Entry
	for path, err := range c.scanner.Scan() {
		if err != nil {
			if path == c.dir {
				return nil, err
			}
			c.logger.Warn("Skipping unreadable catalog path", "path", path, "error", err)
			continue
		}
		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			c.logger.Warn("Skipping catalog path outside root", "path", path, "error", err)
			continue
		}
		entries = append(entries, c.inspect(root, rel))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries, nil
}

// Lookup inspects the archive at rel, a slash-separated path relative to the
// catalog directory. The returned error is from opening or inspecting the
// archive; see package ipa for the kinds.
func (c *Catalog) Lookup(rel string) (Entry, error) {
	if !fs.ValidPath(rel) || rel == "." {
		return Entry{}, ErrInvalidPath
	}

	root, err := os.OpenRoot(c.dir)
	if err != nil {
		return Entry{}, err
	}
	defer root.Close()

	e := c.inspect(root, filepath.FromSlash(rel))
	return e, e.Err
}

func (c *Catalog) inspect(root *os.Root, rel string) Entry {
	e := Entry{
		Path: filepath.Join(c.dir, rel),
		Rel:  filepath.ToSlash(rel),
	}

	a, err := inspectIn(root, rel)
	if err != nil {
		c.metrics.IncInspections(metrics.ResultError)
		e.Err = err
		if info, serr := root.Stat(rel); serr == nil {
			e.Size, e.Modified = info.Size(), info.ModTime()
		}
		return e
	}

	c.metrics.IncInspections(metrics.ResultOK)
	e.Size, e.Modified, e.Bundle = a.Size, a.Modified, a.Bundle
	return e
}

func inspectIn(root *os.Root, rel string) (*ipa.Archive, error) {
	f, err := root.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ipa.InspectFile(f)
}

// IsNotFound reports whether err means the archive does not exist, as opposed
// to existing in an unusable form.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
