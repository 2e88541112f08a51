package server

import (
	"fmt"
	"net/http"

	"github.com/teranos/iiify/ingest"
	"github.com/teranos/iiify/mets"
)

type importRequest struct {
	URL string `json:"url"`
}

// HandleImport accepts a METS URL for asynchronous import.
// POST /api/import {"url": "..."}
//
// DFG-Viewer presentation URLs are unwrapped to the METS URL they carry.
// The source is probed before the job is accepted; an unreachable source
// is a client error. Submission metadata is extracted synchronously so
// clients have something to display while the job is queued.
func (s *Server) HandleImport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req importRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	sourceURL := mets.ResolveSourceURL(req.URL)

	// Re-submitting a source with an active job returns that job instead
	// of queueing a duplicate
	if existing, err := s.queue.FindActiveBySource(sourceURL); err == nil && existing != nil {
		s.respondAccepted(w, r, existing)
		return
	}

	if err := s.fetcher.Probe(r.Context(), sourceURL, s.cfg.Import.ProbeTimeout); err != nil {
		s.logger.Infow("Rejecting unreachable import source",
			"url", sourceURL,
			"error", err,
		)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("METS could not be retrieved from %s", sourceURL))
		return
	}

	meta, err := s.importer.BasicInfo(r.Context(), sourceURL)
	if err != nil {
		s.logger.Infow("Rejecting import source",
			"url", sourceURL,
			"error", err,
		)
		writeServiceError(w, err)
		return
	}

	job := ingest.NewJob(sourceURL, meta)
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Errorw("Failed to enqueue import job", "url", sourceURL, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.logger.Infow("Accepted import job",
		"job_id", shortID(job.ID),
		"url", sourceURL,
	)
	s.respondAccepted(w, r, job)
}

func (s *Server) respondAccepted(w http.ResponseWriter, r *http.Request, job *ingest.Job) {
	view, err := s.queue.StatusView(job)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/api/tasks/%s", s.cfg.Server.BaseURL, job.ID))
	writeJSON(w, http.StatusAccepted, view)
}
