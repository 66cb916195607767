package ipa_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"howett.net/plist"

	"github.com/cloudchase/ota-distribution/ipa"
	"github.com/cloudchase/ota-distribution/ipa/ipatest"
)

func TestInspectBundle(t *testing.T) {
	testCases := []struct {
		Description string
		Format      int
		Info        map[string]any
		Want        *ipa.Bundle
	}{
		{
			Description: "binary plist",
			Format:      plist.BinaryFormat,
			Info:        ipatest.Info("com.example.app.spam", "spam", "1.0.0"),
			Want: &ipa.Bundle{
				Dir:        "spam.app",
				Identifier: "com.example.app.spam",
				Name:       "spam",
				Version:    "1.0.0",
			},
		},
		{
			Description: "xml plist",
			Format:      plist.XMLFormat,
			Info: map[string]any{
				"CFBundleIdentifier":         "com.example.app.spam",
				"CFBundleName":               "spam",
				"CFBundleVersion":            "42",
				"CFBundleDisplayName":        "Spam & Eggs",
				"CFBundleShortVersionString": "1.2",
				"MinimumOSVersion":           "15.0",
			},
			Want: &ipa.Bundle{
				Dir:              "spam.app",
				Identifier:       "com.example.app.spam",
				Name:             "spam",
				Version:          "42",
				DisplayName:      "Spam & Eggs",
				ShortVersion:     "1.2",
				MinimumOSVersion: "15.0",
			},
		},
		{
			Description: "missing fields",
			Format:      plist.BinaryFormat,
			Info:        map[string]any{"CFBundleName": "spam"},
			Want:        &ipa.Bundle{Dir: "spam.app", Name: "spam"},
		},
		{
			Description: "non-string field",
			Format:      plist.XMLFormat,
			Info:        map[string]any{"CFBundleName": "spam", "CFBundleVersion": uint64(7)},
			Want:        &ipa.Bundle{Dir: "spam.app", Name: "spam"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Description, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ham.ipa")
			ipatest.WriteZip(t, path, ipatest.Entry{
				Name: "Payload/spam.app/Info.plist",
				Data: ipatest.InfoPlist(t, tc.Info, tc.Format),
			})

			a, err := ipa.Inspect(path)
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if diff := cmp.Diff(tc.Want, a.Bundle); diff != "" {
				t.Errorf("unexpected bundle (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLocateBundleName(t *testing.T) {
	testCases := []struct {
		Description string
		Names       []string
		Want        string
		WantErr     error
	}{
		{
			Description: "directory entry listed",
			Names:       []string{"Payload/", "Payload/spam.app/", "Payload/spam.app/Info.plist"},
			Want:        "spam.app",
		},
		{
			Description: "directory entry not listed",
			Names:       []string{"META-INF/x", "Payload/spam.app/Info.plist"},
			Want:        "spam.app",
		},
		{
			Description: "nested bundle does not widen the match",
			Names:       []string{"Payload/spam.app/Watch/eggs.app/Info.plist"},
			Want:        "spam.app",
		},
		{
			Description: "first match wins",
			Names:       []string{"Payload/eggs.app/Info.plist", "Payload/spam.app/Info.plist"},
			Want:        "eggs.app",
		},
		{
			Description: "no bundle",
			Names:       []string{"Payload/readme.txt", "spam.app/Info.plist"},
			WantErr:     ipa.ErrBundleNotFound,
		},
		{
			Description: "empty archive",
			WantErr:     ipa.ErrBundleNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Description, func(t *testing.T) {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			for _, name := range tc.Names {
				if _, err := zw.Create(name); err != nil {
					t.Fatal(err)
				}
			}
			if err := zw.Close(); err != nil {
				t.Fatal(err)
			}
			zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			if err != nil {
				t.Fatal(err)
			}

			got, err := ipa.LocateBundleName(zr)
			if !errors.Is(err, tc.WantErr) {
				t.Fatalf("got error %v, want %v", err, tc.WantErr)
			}
			if got != tc.Want {
				t.Errorf("got %q, want %q", got, tc.Want)
			}
		})
	}
}

func TestInspectErrors(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "not-zip.ipa")
	if err := os.WriteFile(notZip, []byte("definitely not a zip file"), 0644); err != nil {
		t.Fatal(err)
	}

	noBundle := filepath.Join(dir, "no-bundle.ipa")
	ipatest.WriteZip(t, noBundle, ipatest.Entry{Name: "readme.txt", Data: []byte("hi")})

	noInfo := filepath.Join(dir, "no-info.ipa")
	ipatest.WriteZip(t, noInfo, ipatest.Entry{Name: "Payload/spam.app/spam", Data: []byte{0xca, 0xfe}})

	corrupt := filepath.Join(dir, "corrupt.ipa")
	ipatest.WriteZip(t, corrupt, ipatest.Entry{Name: "Payload/spam.app/Info.plist", Data: []byte("bplist00garbage")})

	notDict := filepath.Join(dir, "not-dict.ipa")
	arrayPlist, err := plist.Marshal([]string{"spam"}, plist.XMLFormat)
	if err != nil {
		t.Fatal(err)
	}
	ipatest.WriteZip(t, notDict, ipatest.Entry{Name: "Payload/spam.app/Info.plist", Data: arrayPlist})

	oversized := filepath.Join(dir, "oversized.ipa")
	ipatest.WriteZip(t, oversized, ipatest.Entry{
		Name: "Payload/spam.app/Info.plist",
		Data: bytes.Repeat([]byte(" "), ipa.MaxInfoPlistSize+1),
	})

	var (
		formatErr *ipa.FormatError
		parseErr  *ipa.ParseError
	)

	testCases := []struct {
		Description string
		Path        string
		Check       func(error) bool
	}{
		{
			Description: "missing file",
			Path:        filepath.Join(dir, "missing.ipa"),
			Check:       func(err error) bool { return errors.Is(err, fs.ErrNotExist) },
		},
		{
			Description: "not a zip",
			Path:        notZip,
			Check:       func(err error) bool { return errors.As(err, &formatErr) && errors.Is(err, zip.ErrFormat) },
		},
		{
			Description: "no bundle directory",
			Path:        noBundle,
			Check:       func(err error) bool { return errors.As(err, &formatErr) && errors.Is(err, ipa.ErrBundleNotFound) },
		},
		{
			Description: "no Info.plist",
			Path:        noInfo,
			Check:       func(err error) bool { return errors.Is(err, ipa.ErrEntryNotFound) && !errors.As(err, &parseErr) },
		},
		{
			Description: "corrupt Info.plist",
			Path:        corrupt,
			Check:       func(err error) bool { return errors.As(err, &parseErr) && !errors.Is(err, ipa.ErrEntryNotFound) },
		},
		{
			Description: "Info.plist root is not a dictionary",
			Path:        notDict,
			Check:       func(err error) bool { return errors.As(err, &parseErr) },
		},
		{
			Description: "Info.plist too large",
			Path:        oversized,
			Check:       func(err error) bool { return errors.As(err, &parseErr) && !errors.Is(err, ipa.ErrEntryNotFound) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Description, func(t *testing.T) {
			a, err := ipa.Inspect(tc.Path)
			if err == nil {
				t.Fatalf("expected error, got archive %+v", a)
			}
			if !tc.Check(err) {
				t.Errorf("unexpected error kind: %v", err)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ham.ipa")
	ipatest.WriteIPA(t, path, "spam", ipatest.Info("com.example.app.spam", "spam", "1.0.0"))

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	a, err := ipa.Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if a.Size != info.Size() {
		t.Errorf("size = %d, want %d", a.Size, info.Size())
	}
	if !a.Modified.Equal(info.ModTime()) {
		t.Errorf("modified = %v, want %v", a.Modified, info.ModTime())
	}
	if a.Bundle.Identifier != "com.example.app.spam" {
		t.Errorf("identifier = %q", a.Bundle.Identifier)
	}

	if _, err := ipa.Inspect(filepath.Dir(path)); err == nil {
		t.Error("expected error inspecting a directory")
	}
}
