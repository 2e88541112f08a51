package server

import (
	"net/http"

	"github.com/teranos/iiify/ingest"
)

// HandleTasks lists jobs waiting in the queue.
// GET /api/tasks
func (s *Server) HandleTasks(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	queued, err := s.queue.ListQueued()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]*ingest.StatusView, 0, len(queued))
	for _, job := range queued {
		view, err := s.queue.StatusView(job)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": views})
}

// HandleTask serves a single job: its status document or, with a /stream
// suffix, a live SSE feed of status changes.
// GET /api/tasks/{id}
// GET /api/tasks/{id}/stream
func (s *Server) HandleTask(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	parts := extractPathParts(r.URL.Path, "/api/tasks/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	jobID := parts[0]

	if len(parts) == 2 && parts[1] == "stream" {
		s.streamTask(w, r, jobID)
		return
	}
	if len(parts) > 1 {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	job, err := s.queue.GetJob(jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	view, err := s.queue.StatusView(job)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
