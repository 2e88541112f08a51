package server

import (
	"fmt"
	"net/http"
	"strings"
)

// HandleResolve redirects an external identifier (URN, PURL, ...) to the
// manifest registered for it.
// GET /api/resolve/{identifier}
func (s *Server) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	// Identifiers may contain slashes and colons; take the raw remainder
	identifier := strings.TrimPrefix(r.URL.Path, "/api/resolve/")
	if identifier == "" {
		writeError(w, http.StatusNotFound, "identifier not registered")
		return
	}

	manifestID, err := s.identifiers.Resolve(identifier)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	target := fmt.Sprintf("%s/iiif/%s/manifest", s.cfg.Server.BaseURL, manifestID)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
