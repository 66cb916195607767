package api

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/cloudchase/ota-distribution/audit"
	"github.com/cloudchase/ota-distribution/catalog"
	"github.com/cloudchase/ota-distribution/ipa"
	"github.com/cloudchase/ota-distribution/manifest"
)

const contentTypeOctetStream = "application/octet-stream"

// writeStatus writes the bare status line, e.g. "404 Not Found", as a plain
// text response.
func writeStatus(w http.ResponseWriter, code int) {
	body := strconv.Itoa(code) + " " + http.StatusText(code)
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	io.WriteString(w, body)
}

// writeBody writes a complete 200 response.
func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleNotFound handles every request no other route claims.
func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusNotFound)
}

// handleIndex handles GET /.
//
// A catalog directory that cannot be read is logged and rendered as an empty
// catalog, so the page stays up while the directory is fixed.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.Entries()
	if err != nil {
		s.logger.Error("Cannot read catalog directory", "root", s.catalog.Dir(), "error", err)
	}
	for _, e := range entries {
		if !e.OK() {
			s.logger.Warn("Listing unreadable archive", "path", e.Rel, "error", e.Err)
		}
	}

	var buf bytes.Buffer
	err = manifest.RenderIndex(&buf, entries, func(e catalog.Entry) string {
		return s.catalogURL(r, manifestRel(e.Rel))
	})
	if err != nil {
		s.logger.Error("Cannot render index", "error", err)
		writeStatus(w, http.StatusInternalServerError)
		return
	}
	writeBody(w, manifest.IndexContentType, buf.Bytes())
}

// handleCatalogPath handles GET /<prefix>/{path...}, dispatching manifest
// requests and raw downloads.
func (s *Server) handleCatalogPath(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	if strings.HasSuffix(rel, manifest.Ext) {
		s.instrument(routeManifest, s.handleManifest)(w, r)
		return
	}
	s.instrument(routeArchive, s.handleArchive)(w, r)
}

// handleManifest serves the installer manifest for the archive next to the
// requested .plist path. Any failure to inspect the archive, whether it is
// missing or malformed, is reported as not found.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	rel := archiveRel(r.PathValue("path"))
	e, err := s.catalog.Lookup(rel)
	if err != nil {
		if catalog.IsNotFound(err) {
			s.logger.Debug("Manifest requested for missing archive", "path", rel, "error", err)
		} else {
			s.logger.Warn("Manifest requested for unreadable archive", "path", rel, "error", err)
		}
		writeStatus(w, http.StatusNotFound)
		return
	}

	m := manifest.Build(e.Bundle, s.catalogURL(r, e.Rel), e.Modified)
	var buf bytes.Buffer
	if err := manifest.Encode(&buf, m, s.format); err != nil {
		s.logger.Error("Cannot encode manifest", "path", rel, "error", err)
		writeStatus(w, http.StatusInternalServerError)
		return
	}
	writeBody(w, manifest.ContentType, buf.Bytes())

	if r.Method != http.MethodGet {
		return
	}
	s.record(r, audit.Event{
		EventType:        string(audit.EventManifest),
		Path:             e.Rel,
		BundleIdentifier: e.Bundle.Identifier,
		BundleVersion:    e.Bundle.Version,
	})
}

// handleArchive serves the raw bytes of a file in the catalog.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	f, info, err := s.catalog.Open(rel)
	if err != nil {
		s.logger.Debug("Raw file not served", "path", rel, "error", err)
		writeStatus(w, http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentTypeOctetStream)
	http.ServeContent(w, r, "", info.ModTime(), f)

	if r.Method == http.MethodGet && catalog.IsArchiveName(rel) {
		s.record(r, audit.Event{EventType: string(audit.EventArchive), Path: rel})
	}
}

func (s *Server) record(r *http.Request, e audit.Event) {
	if s.auditor == nil {
		return
	}
	e.RemoteAddr = r.RemoteAddr
	e.RequestID = requestID(r.Context())
	if err := s.auditor.Record(e); err != nil {
		s.logger.Error("Cannot record download", "path", e.Path, "error", err)
	}
}

// baseURL returns the scheme and host that generated links point at.
func (s *Server) baseURL(r *http.Request) *url.URL {
	if s.publicURL != nil {
		u := *s.publicURL
		return &u
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: r.Host}
}

// catalogURL returns the absolute URL of rel, a path relative to the catalog
// directory.
func (s *Server) catalogURL(r *http.Request, rel string) string {
	u := s.baseURL(r)
	u.Path = path.Join("/", u.Path, s.prefix, rel)
	u.RawPath, u.RawQuery, u.Fragment = "", "", ""
	return u.String()
}

// manifestRel maps an archive path to the path its manifest is served at.
func manifestRel(rel string) string {
	return strings.TrimSuffix(rel, path.Ext(rel)) + manifest.Ext
}

// archiveRel maps a manifest path to the archive it describes.
func archiveRel(rel string) string {
	return strings.TrimSuffix(rel, manifest.Ext) + ipa.Ext
}
