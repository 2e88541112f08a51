package storage

import (
	"database/sql"
	"time"

	"github.com/teranos/iiify/errors"
)

// SubscriptionStore tracks which recipients want completion notifications
// for which import jobs. Membership has set semantics.
type SubscriptionStore struct {
	db *sql.DB
}

// NewSubscriptionStore creates a subscription store on the given database
func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Subscribe adds jobs to a recipient's subscription set. Already
// subscribed jobs are ignored.
func (s *SubscriptionStore) Subscribe(recipient string, jobIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin subscribe")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, jobID := range jobIDs {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO subscriptions (recipient, job_id, created_at)
			VALUES (?, ?, ?)
		`, recipient, jobID, now); err != nil {
			return errors.Wrapf(err, "failed to subscribe %s to job %s", recipient, jobID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit subscribe")
	}
	return nil
}

// JobsFor returns all job IDs a recipient is subscribed to
func (s *SubscriptionStore) JobsFor(recipient string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT job_id FROM subscriptions WHERE recipient = ? ORDER BY created_at, job_id`,
		recipient,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscribed jobs")
	}
	defer rows.Close()

	return scanStrings(rows, "subscribed jobs")
}

// RecipientsFor returns all recipients subscribed to a job
func (s *SubscriptionStore) RecipientsFor(jobID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT recipient FROM subscriptions WHERE job_id = ? ORDER BY recipient`,
		jobID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recipients")
	}
	defer rows.Close()

	return scanStrings(rows, "recipients")
}

func scanStrings(rows *sql.Rows, context string) ([]string, error) {
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}
	return values, nil
}
