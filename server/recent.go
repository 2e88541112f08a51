package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/teranos/iiify/iiif"
	"github.com/teranos/iiify/storage"
)

// recentPerPage is the page size of the recent-manifests listing and the
// IIIF collection pages.
const recentPerPage = 10

type recentManifest struct {
	ID              string `json:"@id"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	Label           string `json:"label"`
	MetsURL         string `json:"metsurl"`
	Attribution     string `json:"attribution,omitempty"`
	AttributionLogo string `json:"attribution_logo,omitempty"`
}

// HandleRecent lists recently imported manifests, newest first.
// GET /api/recent?page=N
func (s *Server) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = parsed
	}

	manifests, total, err := s.manifests.Recent(page, recentPerPage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	entries := make([]recentManifest, 0, len(manifests))
	for _, m := range manifests {
		entries = append(entries, summarizeManifest(m))
	}

	var nextPage *int
	if page*recentPerPage < total {
		next := page + 1
		nextPage = &next
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"next_page": nextPage,
		"manifests": entries,
	})
}

// summarizeManifest extracts the listing fields from a stored manifest
// document. A document that no longer decodes still lists with its
// stored label.
func summarizeManifest(m *storage.Manifest) recentManifest {
	entry := recentManifest{
		Label:   m.Label,
		MetsURL: m.Origin,
	}

	var doc iiif.Manifest
	if err := json.Unmarshal(m.Document, &doc); err == nil {
		entry.ID = doc.ID
		entry.Attribution = doc.Attribution
		entry.AttributionLogo = doc.Logo
		if doc.Thumbnail != nil {
			entry.Thumbnail = doc.Thumbnail.ID
		}
	}
	return entry
}
