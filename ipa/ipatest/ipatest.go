// Package ipatest builds application archives for tests.
package ipatest

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"howett.net/plist"
)

// Info returns an Info.plist dictionary with the three keys the catalog
// displays.
func Info(identifier, name, version string) map[string]any {
	return map[string]any{
		"CFBundleIdentifier": identifier,
		"CFBundleName":       name,
		"CFBundleVersion":    version,
	}
}

// InfoPlist encodes info in the given plist format.
func InfoPlist(t testing.TB, info map[string]any, format int) []byte {
	t.Helper()
	data, err := plist.Marshal(info, format)
	if err != nil {
		t.Fatalf("encode Info.plist: %v", err)
	}
	return data
}

// Entry is one file in a test archive.
type Entry struct {
	Name string
	Data []byte
}

// WriteZip writes a zip file at path containing entries in order, creating
// parent directories as needed.
func WriteZip(t testing.TB, path string, entries ...Entry) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("create entry %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("write entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

// WriteIPA writes an archive at path whose bundle directory is
// Payload/<appName>.app and whose Info.plist is info in binary form.
func WriteIPA(t testing.TB, path, appName string, info map[string]any) {
	t.Helper()
	WriteZip(t, path, Entry{
		Name: "Payload/" + appName + ".app/Info.plist",
		Data: InfoPlist(t, info, plist.BinaryFormat),
	})
}
