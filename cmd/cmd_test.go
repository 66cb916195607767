package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cloudchase/ota-distribution/audit"
	"github.com/cloudchase/ota-distribution/catalog"
	"github.com/cloudchase/ota-distribution/ipa"
	"github.com/cloudchase/ota-distribution/ipa/ipatest"
	"github.com/cloudchase/ota-distribution/manifest"
)

func TestFormatSize(t *testing.T) {
	testCases := []struct {
		Bytes int64
		Want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tc := range testCases {
		if got := formatSize(tc.Bytes); got != tc.Want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.Bytes, got, tc.Want)
		}
	}
}

func TestPrintEntries(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	entries := []catalog.Entry{
		{
			Rel:      "ham.ipa",
			Size:     2048,
			Modified: modified,
			Bundle:   &ipa.Bundle{Identifier: "com.example.app.spam", Name: "spam", Version: "1.0.0"},
		},
		{
			Rel:      "beta/broken.ipa",
			Size:     10,
			Modified: modified,
			Err:      errors.New("no bundle"),
		},
	}

	var buf bytes.Buffer
	if err := printEntries(&buf, entries); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if got := strings.Fields(lines[1]); !cmp.Equal(got, []string{"ham.ipa", "spam", "com.example.app.spam", "1.0.0", "2.0", "KB", "2024-03-01", "12:30"}) {
		t.Errorf("unexpected row %q", lines[1])
	}
	if !strings.Contains(lines[2], "(unreadable)") {
		t.Errorf("broken entry not marked: %q", lines[2])
	}
	if lines[3] != "beta/broken.ipa: no bundle" {
		t.Errorf("error line = %q", lines[3])
	}

	buf.Reset()
	if err := printEntries(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "No archives found.\n" {
		t.Errorf("empty listing = %q", got)
	}
}

func TestPrintEvents(t *testing.T) {
	events := []audit.Event{{
		EventType:        string(audit.EventManifest),
		Timestamp:        time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC).Unix(),
		Path:             "ham.ipa",
		BundleIdentifier: "com.example.app.spam",
		BundleVersion:    "1.0.0",
	}}

	var buf bytes.Buffer
	if err := printEvents(&buf, events); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{"2024-03-01", "12:30:00", "manifest", "ham.ipa", "com.example.app.spam", "1.0.0", "-"}
	if diff := cmp.Diff(want, strings.Fields(lines[1])); diff != "" {
		t.Errorf("unexpected row (-want +got):\n%s", diff)
	}
}

func TestPruneEvents(t *testing.T) {
	l, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	old := time.Now().Add(-48 * time.Hour).UTC().Unix()
	for _, e := range []audit.Event{
		{EventType: string(audit.EventArchive), Timestamp: old, Path: "old.ipa"},
		{EventType: string(audit.EventArchive), Path: "new.ipa"},
	} {
		if err := l.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := pruneEvents(&buf, l, 24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Pruned 1 events older than 24h0m0s.\n" {
		t.Errorf("output = %q", got)
	}
	events, err := l.RecentEvents(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Path != "new.ipa" {
		t.Errorf("unexpected remaining events %+v", events)
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ham.ipa")
	ipatest.WriteIPA(t, path, "spam", ipatest.Info("com.example.app.spam", "spam", "1.0.0"))

	var buf bytes.Buffer
	if err := writeManifest(&buf, path, "https://example.com/static/ham.ipa", "xml"); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Items[0].Assets[0].URL; got != "https://example.com/static/ham.ipa" {
		t.Errorf("asset url = %q", got)
	}
	if got := m.Items[0].Metadata.BundleIdentifier; got != "com.example.app.spam" {
		t.Errorf("bundle identifier = %q", got)
	}

	for _, tc := range []struct {
		Description string
		URL         string
		Format      string
	}{
		{"relative url", "/static/ham.ipa", "xml"},
		{"unknown format", "https://example.com/static/ham.ipa", "json"},
	} {
		t.Run(tc.Description, func(t *testing.T) {
			if err := writeManifest(&bytes.Buffer{}, path, tc.URL, tc.Format); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadServeConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ota.yaml")
	writeFile(t, cfgPath, "listen: \":9000\"\nroot: /srv/apps\nurl_prefix: builds\n")

	flags := serveCmd.Flags()
	for name, value := range map[string]string{
		"config":     cfgPath,
		"url-prefix": "/ota/",
		"public-url": "https://apps.example.com",
	} {
		if err := flags.Set(name, value); err != nil {
			t.Fatal(err)
		}
	}

	cfg, err := loadServeConfig(serveCmd)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{cfg.Listen, cfg.Root, cfg.URLPrefix, cfg.PublicURL, cfg.ManifestFormat}
	want := []string{":9000", "/srv/apps", "ota", "https://apps.example.com", "xml"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}
