package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/teranos/iiify/iiif"
	"github.com/teranos/iiify/storage"
)

// subResourceKinds are the manifest-embedded documents that can be
// addressed directly.
var subResourceKinds = map[string]bool{
	"sequence":   true,
	"canvas":     true,
	"annotation": true,
	"range":      true,
}

// HandleManifestResource serves stored manifests and the sub-resources
// embedded in them.
// GET /iiif/{id}/manifest[.json]
// GET /iiif/{id}/{sequence|canvas|annotation|range}/{resourceID}[.json]
func (s *Server) HandleManifestResource(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/iiif/")
	if len(parts) < 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	manifestID := parts[0]

	if len(parts) == 2 && trimJSONSuffix(parts[1]) == "manifest" {
		m, err := s.manifests.Get(manifestID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeRawJSON(w, http.StatusOK, m.Document)
		return
	}

	if len(parts) == 3 && subResourceKinds[parts[1]] {
		resource, err := s.manifests.SubResource(manifestID, parts[1], trimJSONSuffix(parts[2]))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeRawJSON(w, http.StatusOK, resource)
		return
	}

	writeError(w, http.StatusNotFound, "not found")
}

// HandleCollection serves the paginated collection of all imported
// manifests.
// GET /iiif/collection/index
// GET /iiif/collection/index/p{n}
func (s *Server) HandleCollection(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/iiif/collection/")
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	// "top" is an accepted alias for the index collection
	if name := trimJSONSuffix(parts[0]); name != "index" && name != "top" {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	page := 0
	if len(parts) == 2 {
		raw := trimJSONSuffix(parts[1])
		if !strings.HasPrefix(raw, "p") {
			writeError(w, http.StatusNotFound, "unknown collection page")
			return
		}
		parsed, err := strconv.Atoi(strings.TrimPrefix(raw, "p"))
		if err != nil || parsed < 1 {
			writeError(w, http.StatusNotFound, "unknown collection page")
			return
		}
		page = parsed
	} else if len(parts) > 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var (
		stored []*storage.Manifest
		total  int
		err    error
	)
	if page == 0 {
		_, total, err = s.manifests.Recent(1, 1)
	} else {
		stored, total, err = s.manifests.Recent(page, recentPerPage)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	lastPage := (total + recentPerPage - 1) / recentPerPage
	if page > lastPage && page > 1 {
		writeError(w, http.StatusNotFound, "unknown collection page")
		return
	}

	entries := make([]iiif.CollectionManifest, 0, len(stored))
	for _, m := range stored {
		summary := summarizeManifest(m)
		entry := iiif.CollectionManifest{
			ID:          summary.ID,
			Type:        "sc:Manifest",
			Label:       summary.Label,
			Attribution: summary.Attribution,
			Logo:        summary.AttributionLogo,
		}
		if summary.Thumbnail != "" {
			entry.Thumbnail = &iiif.ImageRef{ID: summary.Thumbnail}
		}
		entries = append(entries, entry)
	}

	coll := iiif.MakeCollection("index", "Recently imported documents",
		s.cfg.Server.BaseURL, entries, total, page, lastPage, recentPerPage)
	writeJSON(w, http.StatusOK, coll)
}

// HandleImage serves Image API documents and size-request redirects.
// GET /iiif/image/{id}/info.json
// GET /iiif/image/{id}/{region}/{size}/{rotation}/{quality}.{format}
//
// The image service is level 0: only full region, no rotation and the
// pre-rendered sizes are available. Valid requests outside that subset
// answer 501, size requests matching a stored file redirect to it.
func (s *Server) HandleImage(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/iiif/image/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	imageID := parts[0]

	if len(parts) == 2 && parts[1] == "info.json" {
		info, err := s.images.GetInfo(imageID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeRawJSON(w, http.StatusOK, info)
		return
	}

	if len(parts) != 5 {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	region, size, rotation := parts[1], parts[2], parts[3]

	quality, format, ok := strings.Cut(parts[4], ".")
	if !ok || format == "" {
		writeError(w, http.StatusBadRequest, "missing image format")
		return
	}

	if region != "full" {
		writeError(w, http.StatusNotImplemented, "region extraction is not supported")
		return
	}
	if rotation != "0" {
		writeError(w, http.StatusNotImplemented, "rotation is not supported")
		return
	}
	if quality != "default" && quality != "native" {
		writeError(w, http.StatusNotImplemented, fmt.Sprintf("quality %q is not supported", quality))
		return
	}

	width, height, err := parseSize(size)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fileURL, err := s.images.ResolveFileURL(imageID, format, width, height)
	if err != nil {
		// A syntactically valid size with no pre-rendered file behind it
		// is beyond what a level 0 service can answer
		writeError(w, http.StatusNotImplemented, fmt.Sprintf("no stored rendition for size %q", size))
		return
	}
	http.Redirect(w, r, fileURL, http.StatusSeeOther)
}

// parseSize parses the IIIF size parameter subset a level 0 service can
// serve: full, max, w, ",h" and "w,h". Zero means unconstrained.
func parseSize(size string) (width, height int, err error) {
	if size == "full" || size == "max" {
		return 0, 0, nil
	}

	w, h, ok := strings.Cut(size, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q", size)
	}
	if w != "" {
		width, err = strconv.Atoi(w)
		if err != nil || width <= 0 {
			return 0, 0, fmt.Errorf("invalid size %q", size)
		}
	}
	if h != "" {
		height, err = strconv.Atoi(h)
		if err != nil || height <= 0 {
			return 0, 0, fmt.Errorf("invalid size %q", size)
		}
	}
	if w == "" && h == "" {
		return 0, 0, fmt.Errorf("invalid size %q", size)
	}
	return width, height, nil
}
