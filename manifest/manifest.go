// Package manifest generates the documents a device needs to install an
// application over the air: the installer manifest that an itms-services
// link points at, and the HTML index that carries those links.
package manifest

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"howett.net/plist"

	"github.com/cloudchase/ota-distribution/ipa"
)

// Installer manifest constants.
const (
	Ext         = ".plist"
	ContentType = "application/x-plist"

	KindSoftwarePackage = "software-package"
	KindSoftware        = "software"
)

// TimeLayout formats modification times shown to users.
const TimeLayout = time.ANSIC

// Manifest is an installer manifest.
type Manifest struct {
	Items []Item `plist:"items"`
}

type Item struct {
	Assets   []Asset  `plist:"assets"`
	Metadata Metadata `plist:"metadata"`
}

type Asset struct {
	Kind string `plist:"kind"`
	URL  string `plist:"url"`
}

type Metadata struct {
	BundleIdentifier string `plist:"bundle-identifier"`
	BundleVersion    string `plist:"bundle-version"`
	Kind             string `plist:"kind"`
	Subtitle         string `plist:"subtitle"`
	Title            string `plist:"title"`
}

// Build returns the manifest installing bundle from the archive served at
// archiveURL. The subtitle shows the archive's modification time.
func Build(bundle *ipa.Bundle, archiveURL string, modified time.Time) *Manifest {
	return &Manifest{
		Items: []Item{{
			Assets: []Asset{{
				Kind: KindSoftwarePackage,
				URL:  archiveURL,
			}},
			Metadata: Metadata{
				BundleIdentifier: bundle.Identifier,
				BundleVersion:    bundle.Version,
				Kind:             KindSoftware,
				Subtitle:         FormatTime(modified),
				Title:            bundle.Name,
			},
		}},
	}
}

// FormatTime renders t the way the catalog shows modification times.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// Format selects the property list encoding of a manifest.
type Format int

const (
	XMLFormat    Format = plist.XMLFormat
	BinaryFormat Format = plist.BinaryFormat
)

// ParseFormat parses "xml" or "binary".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "xml":
		return XMLFormat, nil
	case "binary":
		return BinaryFormat, nil
	default:
		return 0, fmt.Errorf("unknown manifest format %q (want xml or binary)", s)
	}
}

func (f Format) String() string {
	if f == BinaryFormat {
		return "binary"
	}
	return "xml"
}

// Encode writes m to w as a property list.
func Encode(w io.Writer, m *Manifest, format Format) error {
	enc := plist.NewEncoderForFormat(w, int(format))
	if format == XMLFormat {
		enc.Indent("\t")
	}
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

// Decode reads a manifest in any property list format.
func Decode(r io.ReadSeeker) (*Manifest, error) {
	var m Manifest
	if err := plist.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// InstallURL returns the itms-services link that makes a device fetch the
// manifest at manifestURL.
func InstallURL(manifestURL string) string {
	return "itms-services://?action=download-manifest&url=" + url.QueryEscape(manifestURL)
}
