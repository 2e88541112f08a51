package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/teranos/iiify/ingest"
)

// streamTask pushes job status changes to the client as server-sent
// events. The current status is sent immediately, every later change is
// pushed as it happens, and the stream closes once a terminal status has
// been delivered. Updates that do not change the visible status document
// are suppressed.
func (s *Server) streamTask(w http.ResponseWriter, r *http.Request, jobID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the initial fetch so a transition between the two
	// is seen on the channel rather than lost
	updates := s.queue.Subscribe()
	defer s.queue.Unsubscribe(updates)

	job, err := s.queue.GetJob(jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var lastSent *ingest.StatusView
	send := func(job *ingest.Job) (terminal bool, err error) {
		view, err := s.queue.StatusView(job)
		if err != nil {
			return false, err
		}
		if lastSent != nil && reflect.DeepEqual(view, lastSent) {
			return job.IsTerminal(), nil
		}
		data, err := json.Marshal(view)
		if err != nil {
			return false, err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false, err
		}
		flusher.Flush()
		lastSent = view
		return job.IsTerminal(), nil
	}

	if terminal, err := send(job); err != nil || terminal {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.ID != jobID {
				continue
			}
			terminal, err := send(update)
			if err != nil {
				s.logger.Debugw("SSE stream closed", "job_id", shortID(jobID), "error", err)
				return
			}
			if terminal {
				return
			}
		}
	}
}
