package storage

import (
	"database/sql"
	"encoding/json"

	"github.com/teranos/iiify/errors"
)

// ImageStore serves stored image descriptors and resolves size requests
// to the remote files backing them.
type ImageStore struct {
	db *sql.DB
}

// NewImageStore creates an image store on the given database
func NewImageStore(db *sql.DB) *ImageStore {
	return &ImageStore{db: db}
}

// GetInfo returns the stored info.json document for an image
func (s *ImageStore) GetInfo(imageID string) (json.RawMessage, error) {
	var info string
	err := s.db.QueryRow(`SELECT info FROM iiif_images WHERE id = ?`, imageID).Scan(&info)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("image not found: %s", imageID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get image info")
	}
	return json.RawMessage(info), nil
}

// ResolveFileURL finds the remote file satisfying a size request against
// an image. Zero width/height leave that dimension unconstrained; with
// both unconstrained the widest rendition wins.
func (s *ImageStore) ResolveFileURL(imageID, format string, width, height int) (string, error) {
	query := `SELECT url FROM image_files WHERE iiif_id = ? AND format = ?`
	args := []interface{}{imageID, format}

	if width > 0 {
		query += ` AND width = ?`
		args = append(args, width)
	}
	if height > 0 {
		query += ` AND height = ?`
		args = append(args, height)
	}
	query += ` ORDER BY width DESC LIMIT 1`

	var url string
	err := s.db.QueryRow(query, args...).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFoundError("no %s file for image %s at %dx%d", format, imageID, width, height)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve image file")
	}
	return url, nil
}

// DimensionsByURL returns previously stored pixel dimensions for a file
// URL, letting repeat imports skip the remote probe.
func (s *ImageStore) DimensionsByURL(url string) (width, height int, ok bool) {
	err := s.db.QueryRow(
		`SELECT width, height FROM image_files WHERE url = ?`, url,
	).Scan(&width, &height)
	if err != nil {
		return 0, 0, false
	}
	return width, height, true
}
