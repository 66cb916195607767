package api

import "net/http"

// Route names used as metric labels.
const (
	routeIndex    = "index"
	routeManifest = "manifest"
	routeArchive  = "archive"
	routeNotFound = "not_found"
)

// RegisterRoutes wires up the catalog endpoints on the given ServeMux.
//
//	/                   index of every archive
//	/<prefix>/*.plist   installer manifest for the sibling .ipa
//	/<prefix>/*         raw file bytes
//	anything else       404
func RegisterRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /{$}", s.instrument(routeIndex, s.handleIndex))
	mux.HandleFunc("GET /"+s.prefix+"/{path...}", s.handleCatalogPath)
	mux.HandleFunc("/", s.instrument(routeNotFound, s.handleNotFound))
}
