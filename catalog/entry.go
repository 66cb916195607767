package catalog

import (
	"time"

	"github.com/cloudchase/ota-distribution/ipa"
)

// Entry describes one archive found in the catalog. Exactly one of Bundle
// and Err is set.
type Entry struct {
	// Path is the filesystem path of the archive.
	Path string
	// Rel is the slash-separated path of the archive relative to the root.
	Rel string

	Size     int64
	Modified time.Time
	Bundle   *ipa.Bundle
	Err      error
}

// OK reports whether the archive was inspected successfully.
func (e Entry) OK() bool { return e.Err == nil && e.Bundle != nil }
