// Package ipa reads bundle metadata out of iOS application archives.
//
// An archive is a zip file whose application bundle lives under
// Payload/<Name>.app/. The bundle's Info.plist may be stored in binary, XML
// or OpenStep property list form.
package ipa

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"howett.net/plist"
)

// Ext is the file extension of application archives.
const Ext = ".ipa"

// Info.plist keys read into a Bundle.
const (
	KeyBundleIdentifier   = "CFBundleIdentifier"
	KeyBundleName         = "CFBundleName"
	KeyBundleVersion      = "CFBundleVersion"
	KeyBundleDisplayName  = "CFBundleDisplayName"
	KeyShortVersionString = "CFBundleShortVersionString"
	KeyMinimumOSVersion   = "MinimumOSVersion"
)

// bundleDirPattern matches the bundle directory directly under Payload/.
// Archives do not always carry an entry for the directory itself, so the
// match runs against every entry name.
var bundleDirPattern = regexp.MustCompile(`^Payload/([^/]+\.app)/`)

var (
	// ErrBundleNotFound is returned when no entry lives under a
	// Payload/<Name>.app/ directory.
	ErrBundleNotFound = errors.New("no Payload/*.app bundle directory")

	// ErrEntryNotFound is returned when the bundle has no Info.plist.
	ErrEntryNotFound = errors.New("archive entry not found")

	errEntryTooLarge = fmt.Errorf("entry exceeds %d bytes", MaxInfoPlistSize)
)

// MaxInfoPlistSize is the largest Info.plist that will be read.
const MaxInfoPlistSize = 4 << 20

// FormatError reports an archive that is not a usable application archive.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("ipa %s: invalid archive: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParseError reports an Info.plist that exists but cannot be decoded.
type ParseError struct {
	Path  string
	Entry string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ipa %s: parse %s: %v", e.Path, e.Entry, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Bundle is the metadata of an application bundle. Fields missing from
// Info.plist, or present with a non-string value, are empty.
type Bundle struct {
	// Dir is the bundle directory name, including the .app suffix.
	Dir string

	Identifier       string
	Name             string
	Version          string
	DisplayName      string
	ShortVersion     string
	MinimumOSVersion string
}

// Archive is an inspected archive file.
type Archive struct {
	Path     string
	Size     int64
	Modified time.Time
	Bundle   *Bundle
}

// LocateBundleName returns the bundle directory name of the first entry under
// Payload/<Name>.app/, in archive order.
func LocateBundleName(zr *zip.Reader) (string, error) {
	for _, f := range zr.File {
		if m := bundleDirPattern.FindStringSubmatch(f.Name); m != nil {
			return m[1], nil
		}
	}
	return "", ErrBundleNotFound
}

// InfoPlistPath returns the entry name of the Info.plist for bundle dir.
func InfoPlistPath(dir string) string {
	return "Payload/" + dir + "/Info.plist"
}

// Inspect opens the archive at path and decodes its bundle metadata.
//
// Errors are a *fs.PathError when the file cannot be opened, a *FormatError
// when it is not an application archive, ErrEntryNotFound when the bundle has
// no Info.plist and a *ParseError when Info.plist cannot be decoded.
func Inspect(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return InspectFile(f)
}

// InspectFile reads the archive open as f. The caller keeps ownership of f.
func InspectFile(f *os.File) (*Archive, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, &FormatError{Path: f.Name(), Err: errors.New("not a regular file")}
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, &FormatError{Path: f.Name(), Err: err}
	}
	b, err := readBundle(f.Name(), zr)
	if err != nil {
		return nil, err
	}
	return &Archive{
		Path:     f.Name(),
		Size:     info.Size(),
		Modified: info.ModTime(),
		Bundle:   b,
	}, nil
}

func readBundle(path string, zr *zip.Reader) (*Bundle, error) {
	dir, err := LocateBundleName(zr)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	entry := InfoPlistPath(dir)
	data, err := readEntry(zr, entry, MaxInfoPlistSize)
	if errors.Is(err, errEntryTooLarge) {
		return nil, &ParseError{Path: path, Entry: entry, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("ipa %s: read %s: %w", path, entry, err)
	}

	info, err := decodeInfo(data)
	if err != nil {
		return nil, &ParseError{Path: path, Entry: entry, Err: err}
	}

	return &Bundle{
		Dir:              dir,
		Identifier:       stringValue(info, KeyBundleIdentifier),
		Name:             stringValue(info, KeyBundleName),
		Version:          stringValue(info, KeyBundleVersion),
		DisplayName:      stringValue(info, KeyBundleDisplayName),
		ShortVersion:     stringValue(info, KeyShortVersionString),
		MinimumOSVersion: stringValue(info, KeyMinimumOSVersion),
	}, nil
}

// readEntry reads the entry called name, refusing more than limit bytes.
func readEntry(zr *zip.Reader, name string, limit int64) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, limit+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > limit {
			return nil, errEntryTooLarge
		}
		return data, nil
	}
	return nil, ErrEntryNotFound
}

func decodeInfo(data []byte) (map[string]any, error) {
	var v any
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, err
	}
	info, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("root is %T, not a dictionary", v)
	}
	return info, nil
}

func stringValue(info map[string]any, key string) string {
	s, _ := info[key].(string)
	return s
}
