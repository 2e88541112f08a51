package ingest

import (
	"database/sql"
	"time"

	"github.com/teranos/iiify/errors"
)

// Store handles persistence of import jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new import job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const jobColumns = `id, source_url, status,
	meta_label, meta_thumbnail, meta_attribution, meta_attribution_logo,
	pages_dropped, result_manifest_id, failure_type, failure_message, failure_trace,
	created_at, started_at, completed_at, updated_at`

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *Job) error {
	query := `
		INSERT INTO import_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		job.ID,
		job.SourceURL,
		job.Status,
		job.Meta.Label,
		job.Meta.Thumbnail,
		job.Meta.Attribution,
		job.Meta.AttributionLogo,
		job.PagesDropped,
		resultID(job),
		failureField(job, func(f *FailureDescriptor) string { return f.Type }),
		failureField(job, func(f *FailureDescriptor) string { return f.Message }),
		failureField(job, func(f *FailureDescriptor) string { return f.Trace }),
		job.CreatedAt,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create job %s", job.ID)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM import_jobs WHERE id = ?`

	job, err := scanJob(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return job, nil
}

// UpdateJob updates an existing job in the database
func (s *Store) UpdateJob(job *Job) error {
	query := `
		UPDATE import_jobs
		SET status = ?,
		    meta_label = ?,
		    meta_thumbnail = ?,
		    meta_attribution = ?,
		    meta_attribution_logo = ?,
		    pages_dropped = ?,
		    result_manifest_id = ?,
		    failure_type = ?,
		    failure_message = ?,
		    failure_trace = ?,
		    started_at = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.Exec(query,
		job.Status,
		job.Meta.Label,
		job.Meta.Thumbnail,
		job.Meta.Attribution,
		job.Meta.AttributionLogo,
		job.PagesDropped,
		resultID(job),
		failureField(job, func(f *FailureDescriptor) string { return f.Type }),
		failureField(job, func(f *FailureDescriptor) string { return f.Message }),
		failureField(job, func(f *FailureDescriptor) string { return f.Trace }),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update job %s", job.ID)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("job not found: %s", job.ID)
	}
	return nil
}

// ListQueued returns queued jobs oldest-first, the order workers pick
// them up in.
func (s *Store) ListQueued(limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM import_jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC, id ASC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list queued jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "queued jobs")
}

// ListByStatus returns jobs with the given status, newest-first
func (s *Store) ListByStatus(status Status, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM import_jobs
		WHERE status = ?
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := s.db.Query(query, status, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "jobs")
}

// QueuePosition returns the zero-based place of a queued job among all
// queued jobs. Returns nil when the job is no longer queued.
func (s *Store) QueuePosition(id string) (*int, error) {
	query := `
		SELECT COUNT(*) FROM import_jobs
		WHERE status = 'queued'
		  AND (created_at < (SELECT created_at FROM import_jobs WHERE id = ? AND status = 'queued')
		       OR (created_at = (SELECT created_at FROM import_jobs WHERE id = ? AND status = 'queued')
		           AND id < ?))
	`
	var position int
	err := s.db.QueryRow(query, id, id, id).Scan(&position)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute queue position")
	}

	// Distinguish "first in queue" from "not queued at all"
	var queued int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM import_jobs WHERE id = ? AND status = 'queued'`, id,
	).Scan(&queued); err != nil {
		return nil, errors.Wrap(err, "failed to check job status")
	}
	if queued == 0 {
		return nil, nil
	}
	return &position, nil
}

// FindActiveBySource finds a queued or started job for the given METS URL.
// Returns nil if no active job exists for this source.
func (s *Store) FindActiveBySource(sourceURL string) (*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM import_jobs
		WHERE source_url = ?
		  AND status IN ('queued', 'started')
		ORDER BY created_at DESC
		LIMIT 1`

	job, err := scanJob(s.db.QueryRow(query, sourceURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find active job by source")
	}
	return job, nil
}

// CleanupOldJobs removes terminal jobs older than the specified duration
func (s *Store) CleanupOldJobs(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	result, err := s.db.Exec(`
		DELETE FROM import_jobs
		WHERE status IN ('finished', 'failed')
		  AND updated_at < ?
	`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var resultManifestID, failureType, failureMessage, failureTrace sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.SourceURL,
		&job.Status,
		&job.Meta.Label,
		&job.Meta.Thumbnail,
		&job.Meta.Attribution,
		&job.Meta.AttributionLogo,
		&job.PagesDropped,
		&resultManifestID,
		&failureType,
		&failureMessage,
		&failureTrace,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resultManifestID.Valid {
		job.Result = &ManifestRef{ID: resultManifestID.String}
	}
	if failureType.Valid || failureMessage.Valid {
		job.Failure = &FailureDescriptor{
			Type:    failureType.String,
			Message: failureMessage.String,
			Trace:   failureTrace.String,
		}
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows, context string) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}
	return jobs, nil
}

func resultID(job *Job) sql.NullString {
	if job.Result == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: job.Result.ID, Valid: true}
}

func failureField(job *Job, pick func(*FailureDescriptor) string) sql.NullString {
	if job.Failure == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: pick(job.Failure), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
