package catalog

import (
	"io/fs"
	"iter"
	"path/filepath"
	"strings"

	"github.com/cloudchase/ota-distribution/ipa"
)

// Scanner finds application archives beneath a root directory.
type Scanner struct {
	root string
}

// NewScanner creates a Scanner rooted at root.
func NewScanner(root string) *Scanner {
	return &Scanner{root: root}
}

// Root returns the directory the scanner walks.
func (s *Scanner) Root() string { return s.root }

// Scan returns a sequence of the paths of every non-directory file beneath
// the root, at any depth, whose name ends in ".ipa". The walk
// happens while the sequence is ranged over, and each range walks again.
// Order follows the directory walk and should not be relied on.
//
// A root that cannot be read yields a single (root, err) pair. A
// subdirectory that cannot be read yields (dir, err) and the walk moves on.
// Callers decide whether an error ends their iteration.
func (s *Scanner) Scan() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(path, err) {
					return fs.SkipAll
				}
				return nil
			}
			if d.IsDir() || !IsArchiveName(d.Name()) {
				return nil
			}
			if !yield(path, nil) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// IsArchiveName reports whether name carries the archive extension. The
// match is case-sensitive so that a manifest path always maps back to it.
func IsArchiveName(name string) bool {
	return strings.HasSuffix(name, ipa.Ext)
}
