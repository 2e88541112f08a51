package ingest

import (
	"database/sql"
	"sync"
	"time"

	"github.com/teranos/iiify/errors"
)

const (
	// MaxJobsLimit is the maximum number of jobs returned by listings
	MaxJobsLimit = 10000
	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 100
)

// Queue coordinates import job state changes and fans updates out to
// subscribers (SSE streams, websocket feed).
type Queue struct {
	store       *Store
	mu          sync.RWMutex
	subscribers []chan *Job
}

// NewQueue creates a new job queue
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		store:       NewStore(db),
		subscribers: make([]chan *Job, 0),
	}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.CreateJob(job); err != nil {
		return errors.Wrapf(err, "failed to enqueue job for %s", job.SourceURL)
	}
	q.notifySubscribers(job)
	return nil
}

// Dequeue takes the oldest queued job and marks it started.
// Returns nil when nothing is queued.
func (q *Queue) Dequeue() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, err := q.store.ListQueued(1)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get queued jobs")
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	job := jobs[0]
	if err := job.Start(); err != nil {
		return nil, err
	}
	if err := q.store.UpdateJob(job); err != nil {
		return nil, errors.Wrapf(err, "failed to mark job %s as started", job.ID)
	}

	q.notifySubscribers(job)
	return job, nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.GetJob(id)
}

// FinishJob marks a started job as finished with its manifest reference
func (q *Queue) FinishJob(id string, result ManifestRef, pagesDropped int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrapf(err, "failed to finish job %s", id)
	}
	if err := job.Finish(result, pagesDropped); err != nil {
		return err
	}
	if err := q.store.UpdateJob(job); err != nil {
		return errors.Wrapf(err, "failed to persist finished job %s", id)
	}

	q.notifySubscribers(job)
	return nil
}

// FailJob marks a started job as failed with a failure record
func (q *Queue) FailJob(id string, failure FailureDescriptor) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrapf(err, "failed to mark job %s as failed", id)
	}
	if err := job.Fail(failure); err != nil {
		return err
	}
	if err := q.store.UpdateJob(job); err != nil {
		return errors.Wrapf(err, "failed to persist failed job %s", id)
	}

	q.notifySubscribers(job)
	return nil
}

// RequeueJob resets an orphaned started job back to queued so a worker
// can pick it up again after a crash.
func (q *Queue) RequeueJob(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.Status = StatusQueued
	job.StartedAt = nil
	job.UpdatedAt = time.Now().UTC()

	if err := q.store.UpdateJob(job); err != nil {
		return errors.Wrapf(err, "failed to requeue job %s", job.ID)
	}
	q.notifySubscribers(job)
	return nil
}

// ListQueued returns all queued jobs oldest-first
func (q *Queue) ListQueued() ([]*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.ListQueued(MaxJobsLimit)
}

// ListByStatus returns jobs with the given status
func (q *Queue) ListByStatus(status Status) ([]*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.ListByStatus(status, MaxJobsLimit)
}

// FindActiveBySource finds a queued or started job for the given METS URL
func (q *Queue) FindActiveBySource(sourceURL string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.FindActiveBySource(sourceURL)
}

// StatusView renders a job in its client-facing shape, including its
// queue position while queued.
func (q *Queue) StatusView(job *Job) (*StatusView, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var position *int
	if job.Status == StatusQueued {
		pos, err := q.store.QueuePosition(job.ID)
		if err != nil {
			return nil, err
		}
		position = pos
	}
	return job.View(position), nil
}

// Cleanup removes old terminal jobs
func (q *Queue) Cleanup(olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.CleanupOldJobs(olderThan)
}

// Subscribe returns a channel that receives job updates.
// The caller is responsible for calling Unsubscribe when done.
// The returned channel is buffered to prevent blocking the notifier.
func (q *Queue) Subscribe() chan *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	q.subscribers = append(q.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel from the queue.
// The channel is NOT closed by this method - callers should close it
// themselves after unsubscribing if needed.
func (q *Queue) Unsubscribe(ch chan *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			return
		}
	}
}

// notifySubscribers sends job updates to all subscribers.
// REQUIRES: q.mu must be held by caller (either Lock or RLock).
// Uses non-blocking send to avoid stalling if a subscriber is slow.
func (q *Queue) notifySubscribers(job *Job) {
	for _, ch := range q.subscribers {
		select {
		case ch <- job:
		default:
			// Channel full, skip
		}
	}
}
