// Package ingest runs asynchronous METS import jobs: queueing, worker
// execution and status reporting.
package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/teranos/iiify/errors"
)

// Status is the lifecycle state of an import job
type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Meta is the submission metadata captured synchronously when a job is
// accepted, shown to clients while the import is still running.
type Meta struct {
	Label           string `json:"label,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	Attribution     string `json:"attribution,omitempty"`
	AttributionLogo string `json:"attribution_logo,omitempty"`
}

// ManifestRef points a finished job at the manifest it produced
type ManifestRef struct {
	ID string `json:"@id"`
}

// FailureDescriptor records why a job failed. Trace carries the full
// error chain for debugging and is only exposed on failed jobs.
type FailureDescriptor struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Job is one METS import. Exactly one of Result / Failure is set once the
// job reaches a terminal status.
type Job struct {
	ID           string
	SourceURL    string
	Status       Status
	Meta         Meta
	PagesDropped int
	Result       *ManifestRef
	Failure      *FailureDescriptor
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	UpdatedAt    time.Time
}

// NewJob creates a queued job for the given METS URL
func NewJob(sourceURL string, meta Meta) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		Status:    StatusQueued,
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start transitions the job from queued to started
func (j *Job) Start() error {
	if j.Status != StatusQueued {
		return errors.Newf("job %s cannot start from status %s", j.ID, j.Status)
	}
	now := time.Now().UTC()
	j.Status = StatusStarted
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Finish transitions the job from started to finished with its result
func (j *Job) Finish(result ManifestRef, pagesDropped int) error {
	if j.Status != StatusStarted {
		return errors.Newf("job %s cannot finish from status %s", j.ID, j.Status)
	}
	now := time.Now().UTC()
	j.Status = StatusFinished
	j.Result = &result
	j.PagesDropped = pagesDropped
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail transitions the job from started to failed with a failure record
func (j *Job) Fail(failure FailureDescriptor) error {
	if j.Status != StatusStarted {
		return errors.Newf("job %s cannot fail from status %s", j.ID, j.Status)
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.Failure = &failure
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// IsTerminal reports whether the job has reached a final status
func (j *Job) IsTerminal() bool {
	return j.Status == StatusFinished || j.Status == StatusFailed
}

// StatusView is the client-facing JSON shape of a job. Metadata is hidden
// on failed jobs, Position only appears while queued, Result only on
// finished and Traceback only on failed jobs.
type StatusView struct {
	ID           string       `json:"id"`
	Status       Status       `json:"status"`
	Metadata     *Meta        `json:"metadata,omitempty"`
	Position     *int         `json:"position,omitempty"`
	PagesDropped int          `json:"pages_dropped,omitempty"`
	Result       *ManifestRef `json:"result,omitempty"`
	Traceback    string       `json:"traceback,omitempty"`
}

// View renders the job in its client-facing shape. position may be nil
// when the job is not queued (or its place cannot be determined).
func (j *Job) View(position *int) *StatusView {
	view := &StatusView{
		ID:           j.ID,
		Status:       j.Status,
		PagesDropped: j.PagesDropped,
	}
	if j.Status != StatusFailed {
		meta := j.Meta
		view.Metadata = &meta
	}
	switch j.Status {
	case StatusQueued:
		view.Position = position
	case StatusFinished:
		view.Result = j.Result
	case StatusFailed:
		if j.Failure != nil {
			view.Traceback = j.Failure.Trace
			if view.Traceback == "" {
				view.Traceback = j.Failure.Message
			}
		}
	}
	return view
}
