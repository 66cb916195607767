package manifest

import (
	"embed"
	"html/template"
	"io"
	"path"

	"github.com/cloudchase/ota-distribution/catalog"
)

// IndexContentType is the content type of a rendered index page.
const IndexContentType = "text/html"

//go:embed templates/index.html
var templates embed.FS

var indexTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

// IndexTitle is the heading of the index page.
const IndexTitle = "apps"

type indexPage struct {
	Title   string
	Entries []indexEntry
}

type indexEntry struct {
	Caption    string
	Identifier string
	Version    string
	Modified   string
	InstallURL template.URL
	Err        string
}

// RenderIndex writes the HTML index of entries to w. manifestURL maps an
// entry to the absolute URL of its installer manifest.
//
// Entries that failed inspection are listed with their error and without an
// install link. Every value taken from an archive is HTML-escaped.
func RenderIndex(w io.Writer, entries []catalog.Entry, manifestURL func(catalog.Entry) string) error {
	page := indexPage{Title: IndexTitle}
	for _, e := range entries {
		ie := indexEntry{Caption: path.Base(e.Rel)}
		if !e.Modified.IsZero() {
			ie.Modified = FormatTime(e.Modified)
		}
		if !e.OK() {
			ie.Err = "unreadable archive"
			if e.Err != nil {
				ie.Err = e.Err.Error()
			}
			page.Entries = append(page.Entries, ie)
			continue
		}
		if e.Bundle.Name != "" {
			ie.Caption = e.Bundle.Name
		}
		ie.Identifier = e.Bundle.Identifier
		ie.Version = e.Bundle.Version
		// The link is assembled here from a query-escaped URL, and the
		// itms-services scheme would otherwise be filtered as unsafe.
		ie.InstallURL = template.URL(InstallURL(manifestURL(e)))
		page.Entries = append(page.Entries, ie)
	}
	return indexTemplate.Execute(w, page)
}
