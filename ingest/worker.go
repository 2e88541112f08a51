package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/iiify/errors"
)

// MaxOrphanedJobsToRecover limits how many started jobs are re-queued on
// startup after a crash.
const MaxOrphanedJobsToRecover = 1000

// Importer executes one import job and returns the manifest it produced
// plus the number of pages dropped during structure resolution.
type Importer interface {
	Import(ctx context.Context, job *Job) (*ManifestRef, int, error)
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers      int           `json:"workers"`
	PollInterval time.Duration `json:"poll_interval"`
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      1,
		PollInterval: time.Second,
	}
}

// WorkerPool manages workers that process import jobs off the queue
type WorkerPool struct {
	queue     *Queue
	importer  Importer
	config    WorkerPoolConfig
	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *zap.SugaredLogger
}

// NewWorkerPool creates a worker pool processing jobs with the given
// importer. Callers must call Start to begin processing.
func NewWorkerPool(ctx context.Context, queue *Queue, importer Importer, cfg WorkerPoolConfig, logger *zap.SugaredLogger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	workerCtx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		queue:     queue,
		importer:  importer,
		config:    cfg,
		parentCtx: ctx,
		ctx:       workerCtx,
		cancel:    cancel,
		logger:    logger.Named("ingest"),
	}
}

// Start recovers orphaned jobs and begins processing
func (wp *WorkerPool) Start() {
	select {
	case <-wp.ctx.Done():
		// Restarted after Stop; derive a fresh context
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
	default:
	}

	if err := wp.recoverOrphanedJobs(); err != nil {
		wp.logger.Warnw("Failed to recover orphaned jobs", "error", err)
		// Continue starting workers even if recovery fails
	}

	for i := 0; i < wp.config.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.logger.Infow("Worker pool started",
		"workers", wp.config.Workers,
		"poll_interval", wp.config.PollInterval,
	)
}

// Stop gracefully stops the worker pool, waiting up to 30 seconds for
// in-flight imports to finish.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Infow("Worker pool stopped, all workers exited cleanly")
	case <-time.After(30 * time.Second):
		wp.logger.Warnw("Worker pool stop timed out, workers may still be running")
	}
}

// recoverOrphanedJobs re-queues jobs stuck in started state from a
// previous crash so they run again instead of hanging forever.
func (wp *WorkerPool) recoverOrphanedJobs() error {
	orphaned, err := wp.queue.ListByStatus(StatusStarted)
	if err != nil {
		return errors.Wrap(err, "failed to list started jobs")
	}
	if len(orphaned) == 0 {
		return nil
	}
	if len(orphaned) > MaxOrphanedJobsToRecover {
		orphaned = orphaned[:MaxOrphanedJobsToRecover]
	}

	wp.logger.Warnw("Recovering orphaned jobs from previous run", "count", len(orphaned))
	for _, job := range orphaned {
		if err := wp.queue.RequeueJob(job); err != nil {
			wp.logger.Warnw("Failed to requeue orphaned job", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

// worker polls the queue and processes jobs until the pool is stopped
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	ticker := time.NewTicker(wp.config.PollInterval)
	defer ticker.Stop()

	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		case <-ticker.C:
			if err := wp.processNextJob(); err != nil {
				select {
				case <-wp.ctx.Done():
					return
				default:
				}
				if errors.Is(err, sql.ErrConnDone) {
					// Database closed during shutdown
					return
				}
				errorCount++
				wp.logger.Errorw("Worker error processing job",
					"worker_id", id,
					"error", err,
					"consecutive_errors", errorCount,
				)
				if errorCount >= maxConsecutiveErrors {
					wp.logger.Warnw("Worker backing off due to consecutive errors",
						"worker_id", id,
						"backoff", backoffDuration,
					)
					time.Sleep(backoffDuration)
					backoffDuration = min(backoffDuration*2, maxBackoff)
				}
			} else {
				errorCount = 0
				backoffDuration = time.Second
			}
		}
	}
}

// processNextJob takes one job off the queue and runs it through the
// importer. Import errors fail the job rather than the worker.
func (wp *WorkerPool) processNextJob() error {
	select {
	case <-wp.ctx.Done():
		return nil
	default:
	}

	job, err := wp.queue.Dequeue()
	if err != nil {
		return errors.Wrap(err, "failed to dequeue job")
	}
	if job == nil {
		return nil
	}

	wp.logger.Infow("Processing import job",
		"job_id", job.ID,
		"source_url", job.SourceURL,
	)

	result, pagesDropped, importErr := wp.importer.Import(wp.ctx, job)
	if importErr != nil {
		select {
		case <-wp.ctx.Done():
			// Shutdown mid-import; put the job back for the next run
			wp.logger.Warnw("Import interrupted by shutdown, re-queuing", "job_id", job.ID)
			if requeueErr := wp.queue.RequeueJob(job); requeueErr != nil {
				wp.logger.Errorw("Failed to re-queue interrupted job", "job_id", job.ID, "error", requeueErr)
			}
			return nil
		default:
		}

		wp.logger.Warnw("Import job failed",
			"job_id", job.ID,
			"source_url", job.SourceURL,
			"error", importErr,
		)
		return wp.queue.FailJob(job.ID, describeFailure(importErr))
	}

	if err := wp.queue.FinishJob(job.ID, *result, pagesDropped); err != nil {
		return err
	}
	wp.logger.Infow("Import job finished",
		"job_id", job.ID,
		"manifest", result.ID,
		"pages_dropped", pagesDropped,
	)
	return nil
}

// describeFailure classifies an import error into the client-facing
// failure record. The trace carries the full error chain.
func describeFailure(err error) FailureDescriptor {
	failureType := "import_error"
	switch {
	case errors.Is(err, errors.ErrUnreachableSource):
		failureType = "source_unreachable"
	case errors.Is(err, errors.ErrMalformedDocument):
		failureType = "malformed_document"
	case errors.Is(err, errors.ErrInvalidRequest):
		failureType = "invalid_source"
	}
	return FailureDescriptor{
		Type:    failureType,
		Message: err.Error(),
		Trace:   fmt.Sprintf("%+v", err),
	}
}
