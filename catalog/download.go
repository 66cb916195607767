package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Open opens the file at rel, a slash-separated path relative to the catalog
// directory, for raw download. Directories are reported as not existing.
// The caller must close the returned file.
func (c *Catalog) Open(rel string) (*os.File, fs.FileInfo, error) {
	if !fs.ValidPath(rel) || rel == "." {
		return nil, nil, ErrInvalidPath
	}

	root, err := os.OpenRoot(c.dir)
	if err != nil {
		return nil, nil, err
	}
	defer root.Close()

	f, err := root.Open(filepath.FromSlash(rel))
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, &fs.PathError{Op: "open", Path: rel, Err: fs.ErrNotExist}
	}
	return f, info, nil
}
