package server

import (
	"net/http"
	"net/mail"

	"github.com/teranos/iiify/ingest"
)

type notifyRequest struct {
	Recipient string   `json:"recipient"`
	Jobs      []string `json:"jobs"`
}

// HandleNotify subscribes an email recipient to completion notifications
// for a set of jobs. Subscriptions accumulate across calls with set
// semantics; the response lists the recipient's full job set.
// POST /api/tasks/notify {"recipient": "a@example.com", "jobs": ["..."]}
func (s *Server) HandleNotify(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req notifyRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if _, err := mail.ParseAddress(req.Recipient); err != nil {
		writeError(w, http.StatusBadRequest, "recipient is not a valid email address")
		return
	}
	if len(req.Jobs) == 0 {
		writeError(w, http.StatusBadRequest, "jobs must not be empty")
		return
	}

	// Subscribing to an unknown job is a client error, not a silent no-op
	for _, jobID := range req.Jobs {
		if _, err := s.queue.GetJob(jobID); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	if err := s.subscriptions.Subscribe(req.Recipient, req.Jobs); err != nil {
		writeServiceError(w, err)
		return
	}

	jobIDs, err := s.subscriptions.JobsFor(req.Recipient)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]*ingest.StatusView, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		job, err := s.queue.GetJob(jobID)
		if err != nil {
			// Job cleaned up since subscribing; skip it
			continue
		}
		view, err := s.queue.StatusView(job)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recipient": req.Recipient,
		"jobs":      views,
	})
}
