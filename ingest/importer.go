package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/iiif"
	"github.com/teranos/iiify/mets"
	"github.com/teranos/iiify/storage"
)

// ManifestImporter turns a METS URL into a stored IIIF manifest. It is
// the Importer implementation behind the worker pool.
type ManifestImporter struct {
	fetcher   *mets.Fetcher
	manifests *storage.ManifestStore
	images    *storage.ImageStore
	baseURL   string
	logger    *zap.SugaredLogger
}

// NewManifestImporter creates an importer writing manifests under baseURL
func NewManifestImporter(fetcher *mets.Fetcher, manifests *storage.ManifestStore, images *storage.ImageStore, baseURL string, logger *zap.SugaredLogger) *ManifestImporter {
	return &ManifestImporter{
		fetcher:   fetcher,
		manifests: manifests,
		images:    images,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger.Named("import"),
	}
}

// BasicInfo fetches the document behind a METS URL and extracts the
// submission metadata shown while the full import is still queued.
func (imp *ManifestImporter) BasicInfo(ctx context.Context, sourceURL string) (Meta, error) {
	doc, err := imp.fetcher.FetchDocument(ctx, sourceURL)
	if err != nil {
		return Meta{}, err
	}
	meta := doc.Metadata()
	return Meta{
		Label:           iiif.MakeLabel(meta),
		Thumbnail:       doc.ThumbnailURL(),
		Attribution:     iiif.MakeAttribution(meta.Attribution),
		AttributionLogo: meta.Attribution.Logo,
	}, nil
}

// Import runs the full pipeline for one job: fetch, parse, probe image
// dimensions, build the manifest and persist everything in one
// transaction. Returns the manifest reference and the number of pages
// dropped during structure resolution.
func (imp *ManifestImporter) Import(ctx context.Context, job *Job) (*ManifestRef, int, error) {
	doc, err := imp.fetcher.FetchDocument(ctx, job.SourceURL)
	if err != nil {
		return nil, 0, err
	}

	meta := doc.Metadata()
	pages, droppedIDs := doc.PhysicalPages()
	if len(pages) == 0 {
		return nil, 0, errors.Newf("document at %s has no resolvable pages", job.SourceURL)
	}
	for _, physID := range droppedIDs {
		imp.logger.Warnw("Dropping page without resolvable files",
			"job_id", job.ID,
			"physical_id", physID,
		)
	}

	probed, failed, err := imp.fetcher.FillDimensions(ctx, doc.Files(), imp.images.DimensionsByURL, nil)
	if err != nil {
		return nil, 0, err
	}
	imp.logger.Debugw("Resolved image dimensions",
		"job_id", job.ID,
		"probed", probed,
		"failed", failed,
	)

	manifestID, err := imp.manifestID(job.SourceURL, meta)
	if err != nil {
		return nil, 0, err
	}

	contents, images := buildPageContents(pages)
	for i := range images {
		info := iiif.MakeImageInfo(images[i].ID, imp.baseURL, sizesOf(pages[i]))
		data, err := json.Marshal(info)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to encode image info")
		}
		images[i].Info = data
	}

	manifest := iiif.MakeManifest(manifestID, imp.baseURL, job.SourceURL, meta, contents, doc.TocEntries())
	document, err := json.Marshal(manifest)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to encode manifest")
	}

	var identifiers []string
	for _, value := range meta.Identifiers {
		identifiers = append(identifiers, value)
	}

	stored := &storage.Manifest{
		ID:       manifestID,
		Origin:   job.SourceURL,
		Label:    manifest.Label,
		Document: document,
	}
	if err := imp.manifests.Save(stored, images, identifiers); err != nil {
		return nil, 0, err
	}

	return &ManifestRef{ID: manifest.ID}, len(droppedIDs), nil
}

// manifestID picks the identifier a manifest is stored and served under.
// A re-import of a known origin keeps its existing ID so published URLs
// stay stable; fresh imports prefer the document's URN, then any other
// identifier, then a random ID.
func (imp *ManifestImporter) manifestID(sourceURL string, meta mets.Metadata) (string, error) {
	existing, err := imp.manifests.ByOrigin(sourceURL)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	if urn, ok := meta.Identifiers["urn"]; ok {
		return slugify(urn), nil
	}
	var types []string
	for idType := range meta.Identifiers {
		types = append(types, idType)
	}
	if len(types) > 0 {
		// Deterministic pick among remaining identifier types
		minType := types[0]
		for _, t := range types[1:] {
			if t < minType {
				minType = t
			}
		}
		return slugify(meta.Identifiers[minType]), nil
	}
	return uuid.NewString(), nil
}

// slugify makes an identifier safe for use in URL paths
func slugify(identifier string) string {
	replacer := strings.NewReplacer("/", "_", "?", "_", "#", "_", "%", "_", " ", "_")
	return replacer.Replace(identifier)
}

// buildPageContents derives the per-page canvas inputs and the image
// rows to store. Canvas dimensions come from the largest file of a page,
// thumbnails from the smallest.
func buildPageContents(pages []*mets.Page) ([]iiif.PageContent, []storage.Image) {
	contents := make([]iiif.PageContent, 0, len(pages))
	images := make([]storage.Image, 0, len(pages))

	for _, page := range pages {
		imageID := uuid.NewString()
		content := iiif.PageContent{
			PhysicalID: page.ID,
			Label:      page.Label,
			ImageID:    imageID,
		}
		img := storage.Image{ID: imageID}

		for _, file := range page.Files {
			if file.Width > 0 && file.Width > content.Width {
				content.Width, content.Height = file.Width, file.Height
			}
			if file.Width > 0 && (content.ThumbWidth == 0 || file.Width < content.ThumbWidth) {
				content.ThumbWidth, content.ThumbHeight = file.Width, file.Height
			}
			img.Files = append(img.Files, storage.ImageFile{
				URL:    file.URL,
				Width:  file.Width,
				Height: file.Height,
				Format: formatOf(file.MIMEType),
			})
		}
		contents = append(contents, content)
		images = append(images, img)
	}
	return contents, images
}

// sizesOf lists the known pixel sizes of a page's files for its info.json
func sizesOf(page *mets.Page) []iiif.Size {
	var sizes []iiif.Size
	for _, file := range page.Files {
		if file.Width > 0 && file.Height > 0 {
			sizes = append(sizes, iiif.Size{Width: file.Width, Height: file.Height})
		}
	}
	return sizes
}

func formatOf(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/tiff":
		return "tif"
	default:
		if idx := strings.LastIndex(mimeType, "/"); idx >= 0 && idx < len(mimeType)-1 {
			return mimeType[idx+1:]
		}
		return mimeType
	}
}

// ManifestURL returns the public URL of a manifest by its storage ID
func (imp *ManifestImporter) ManifestURL(manifestID string) string {
	return fmt.Sprintf("%s/iiif/%s/manifest", imp.baseURL, manifestID)
}
