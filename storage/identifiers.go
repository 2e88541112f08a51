package storage

import (
	"database/sql"
	"time"

	"github.com/teranos/iiify/errors"
)

// IdentifierStore maps external identifiers (URN, PURL, ...) to manifests
type IdentifierStore struct {
	db *sql.DB
}

// NewIdentifierStore creates an identifier store on the given database
func NewIdentifierStore(db *sql.DB) *IdentifierStore {
	return &IdentifierStore{db: db}
}

// Register points an identifier at a manifest. Registration is last-write-
// wins: an identifier already pointing elsewhere is repointed silently.
func (s *IdentifierStore) Register(identifier, manifestID string) error {
	_, err := s.db.Exec(`
		INSERT INTO identifiers (identifier, manifest_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			manifest_id = excluded.manifest_id,
			updated_at = excluded.updated_at
	`, identifier, manifestID, time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to register identifier %s", identifier)
	}
	return nil
}

// Resolve returns the manifest ID an identifier points at
func (s *IdentifierStore) Resolve(identifier string) (string, error) {
	var manifestID string
	err := s.db.QueryRow(
		`SELECT manifest_id FROM identifiers WHERE identifier = ?`, identifier,
	).Scan(&manifestID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFoundError("identifier not registered: %s", identifier)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve identifier")
	}
	return manifestID, nil
}
