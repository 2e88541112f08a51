// Package storage persists manifests, image descriptors, identifier
// registrations and notification subscriptions in SQLite.
package storage

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/teranos/iiify/errors"
)

// Manifest is a stored IIIF Presentation manifest. Document holds the
// complete manifest JSON as built at import time.
type Manifest struct {
	ID        string
	Origin    string
	Label     string
	Document  json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Image is a stored IIIF image descriptor with the remote files backing it
type Image struct {
	ID    string
	Info  json.RawMessage
	Files []ImageFile
}

// ImageFile is one concrete remote rendition of an image
type ImageFile struct {
	URL    string
	Width  int
	Height int
	Format string
}

// ManifestStore handles persistence of manifests and their dependents
type ManifestStore struct {
	db *sql.DB
}

// NewManifestStore creates a manifest store on the given database
func NewManifestStore(db *sql.DB) *ManifestStore {
	return &ManifestStore{db: db}
}

// Save writes a manifest together with its images and identifier
// registrations in one transaction. Re-saving a manifest ID replaces its
// document, images and identifiers wholesale, so a re-import never leaves
// stale image rows behind.
func (s *ManifestStore) Save(manifest *Manifest, images []Image, identifiers []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin manifest save")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.Exec(`
		INSERT INTO manifests (id, origin, label, manifest, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			origin = excluded.origin,
			label = excluded.label,
			manifest = excluded.manifest,
			updated_at = excluded.updated_at
	`, manifest.ID, manifest.Origin, manifest.Label, string(manifest.Document), now, now)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert manifest %s", manifest.ID)
	}

	if _, err := tx.Exec(`DELETE FROM iiif_images WHERE manifest_id = ?`, manifest.ID); err != nil {
		return errors.Wrap(err, "failed to clear previous images")
	}
	for _, img := range images {
		if _, err := tx.Exec(
			`INSERT INTO iiif_images (id, manifest_id, info) VALUES (?, ?, ?)`,
			img.ID, manifest.ID, string(img.Info),
		); err != nil {
			return errors.Wrapf(err, "failed to insert image %s", img.ID)
		}
		for _, file := range img.Files {
			if _, err := tx.Exec(`
				INSERT INTO image_files (url, width, height, format, iiif_id)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(url) DO UPDATE SET
					width = excluded.width,
					height = excluded.height,
					format = excluded.format,
					iiif_id = excluded.iiif_id
			`, file.URL, file.Width, file.Height, file.Format, img.ID); err != nil {
				return errors.Wrapf(err, "failed to insert image file %s", file.URL)
			}
		}
	}

	if _, err := tx.Exec(`DELETE FROM identifiers WHERE manifest_id = ?`, manifest.ID); err != nil {
		return errors.Wrap(err, "failed to clear previous identifiers")
	}
	for _, identifier := range identifiers {
		// Last write wins: an identifier already pointing elsewhere is
		// silently repointed at this manifest
		if _, err := tx.Exec(`
			INSERT INTO identifiers (identifier, manifest_id, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(identifier) DO UPDATE SET
				manifest_id = excluded.manifest_id,
				updated_at = excluded.updated_at
		`, identifier, manifest.ID, now); err != nil {
			return errors.Wrapf(err, "failed to register identifier %s", identifier)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit manifest save")
	}
	return nil
}

// Get retrieves a manifest by ID
func (s *ManifestStore) Get(id string) (*Manifest, error) {
	query := `SELECT id, origin, label, manifest, created_at, updated_at
		FROM manifests WHERE id = ?`

	var m Manifest
	var doc string
	err := s.db.QueryRow(query, id).Scan(&m.ID, &m.Origin, &m.Label, &doc, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("manifest not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get manifest")
	}
	m.Document = json.RawMessage(doc)
	return &m, nil
}

// ByOrigin finds the manifest previously imported from the given METS URL.
// Returns nil when no import from that origin exists.
func (s *ManifestStore) ByOrigin(origin string) (*Manifest, error) {
	query := `SELECT id, origin, label, manifest, created_at, updated_at
		FROM manifests WHERE origin = ?`

	var m Manifest
	var doc string
	err := s.db.QueryRow(query, origin).Scan(&m.ID, &m.Origin, &m.Label, &doc, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find manifest by origin")
	}
	m.Document = json.RawMessage(doc)
	return &m, nil
}

// Recent returns one page of manifests ordered newest-first by creation
// time along with the collection-wide count. page starts at 1. Re-imports
// bump updated_at only, so they do not reshuffle the listing.
func (s *ManifestStore) Recent(page, perPage int) ([]*Manifest, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM manifests`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count manifests")
	}

	query := `SELECT id, origin, label, manifest, created_at, updated_at
		FROM manifests
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list recent manifests")
	}
	defer rows.Close()

	var manifests []*Manifest
	for rows.Next() {
		var m Manifest
		var doc string
		if err := rows.Scan(&m.ID, &m.Origin, &m.Label, &doc, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan manifest")
		}
		m.Document = json.RawMessage(doc)
		manifests = append(manifests, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "error iterating manifests")
	}
	return manifests, total, nil
}

// Delete removes a manifest; its images, files and identifier
// registrations cascade away with it.
func (s *ManifestStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM manifests WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete manifest")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("manifest not found: %s", id)
	}
	return nil
}

// SubResource extracts an embedded sub-resource (sequence, canvas,
// annotation or range) from a stored manifest by its @id suffix
// "/{kind}/{resourceID}.json".
func (s *ManifestStore) SubResource(manifestID, kind, resourceID string) (json.RawMessage, error) {
	m, err := s.Get(manifestID)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(m.Document, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode stored manifest %s", manifestID)
	}

	suffix := "/" + kind + "/" + resourceID + ".json"
	if found := findBySuffix(doc, suffix); found != nil {
		data, err := json.Marshal(found)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode sub-resource")
		}
		return data, nil
	}
	return nil, errors.NewNotFoundError("%s not found in manifest %s: %s", kind, manifestID, resourceID)
}

// findBySuffix walks a decoded JSON tree for the first object whose @id
// ends in suffix.
func findBySuffix(node any, suffix string) any {
	switch v := node.(type) {
	case map[string]any:
		if id, ok := v["@id"].(string); ok && strings.HasSuffix(id, suffix) {
			return v
		}
		for _, child := range v {
			if found := findBySuffix(child, suffix); found != nil {
				return found
			}
		}
	case []any:
		for _, child := range v {
			if found := findBySuffix(child, suffix); found != nil {
				return found
			}
		}
	}
	return nil
}
