// Package iiif builds IIIF Presentation API 2.x and Image API 2 documents.
//
// Documents are built from typed structs rather than free-form maps so that
// identical inputs always encode to byte-identical JSON.
package iiif

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teranos/iiify/mets"
)

// JSON-LD contexts and type constants
const (
	PresentationContext = "http://iiif.io/api/presentation/2/context.json"
	ImageContext        = "http://iiif.io/api/image/2/context.json"
	ImageProtocol       = "http://iiif.io/api/image"
	ImageLevel0Profile  = "http://iiif.io/api/image/2/level0.json"
)

// Nominal canvas dimensions used when no pixel sizes could be determined.
// Canvases carrying them are flagged approximate.
const (
	NominalCanvasWidth  = 1000
	NominalCanvasHeight = 1400
)

// licenseMap translates METS license shorthands to their full URIs
var licenseMap = map[string]string{
	"pdm":         "http://creativecommons.org/licenses/publicdomain/",
	"cc0":         "https://creativecommons.org/publicdomain/zero/1.0/",
	"cc-by":       "http://creativecommons.org/licenses/by/4.0",
	"cc-by-sa":    "http://creativecommons.org/licenses/by-sa/4.0",
	"cc-by-nd":    "http://creativecommons.org/licenses/by-nd/4.0",
	"cc-by-nc":    "http://creativecommons.org/licenses/by-nc/4.0",
	"cc-by-nc-sa": "http://creativecommons.org/licenses/by-nc-sa/4.0",
	"cc-by-nc-nd": "http://creativecommons.org/licenses/by-nc-nd/4.0",
}

// metadataLabels holds localized display labels for known metadata keys
var metadataLabels = map[string]map[string]string{
	"title":     {"en": "Title", "de": "Titel"},
	"language":  {"en": "Language", "de": "Sprache"},
	"genre":     {"en": "Genre", "de": "Genre"},
	"creator":   {"en": "Creator", "de": "Urheber"},
	"publisher": {"en": "Publisher", "de": "Veröffentlicht von"},
	"pub_place": {"en": "Publication Place", "de": "Publikationsort"},
	"pub_date":  {"en": "Publication Date", "de": "Erscheinungsdatum"},
}

// Manifest is a IIIF Presentation 2.x manifest
type Manifest struct {
	Context     string          `json:"@context"`
	ID          string          `json:"@id"`
	Type        string          `json:"@type"`
	Label       string          `json:"label"`
	Metadata    []MetadataEntry `json:"metadata,omitempty"`
	Description string          `json:"description,omitempty"`
	License     string          `json:"license,omitempty"`
	Attribution string          `json:"attribution,omitempty"`
	Logo        string          `json:"logo,omitempty"`
	Related     string          `json:"related,omitempty"`
	SeeAlso     []SeeAlso       `json:"seeAlso,omitempty"`
	Thumbnail   *ImageRef       `json:"thumbnail,omitempty"`
	Sequences   []Sequence      `json:"sequences"`
	Structures  []Range         `json:"structures,omitempty"`
}

// MetadataEntry is one label/value pair of a manifest's metadata block.
// Label is either a plain string or a language map.
type MetadataEntry struct {
	Label any `json:"label"`
	Value any `json:"value"`
}

// SeeAlso points machine consumers at the source documents
type SeeAlso struct {
	ID      string `json:"@id"`
	Format  string `json:"format,omitempty"`
	Profile string `json:"profile,omitempty"`
}

// Sequence is the page order of a manifest
type Sequence struct {
	ID       string   `json:"@id"`
	Type     string   `json:"@type"`
	Label    string   `json:"label,omitempty"`
	Canvases []Canvas `json:"canvases"`
}

// Canvas is one page surface
type Canvas struct {
	ID          string       `json:"@id"`
	Type        string       `json:"@type"`
	Label       string       `json:"label"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Approximate bool         `json:"approximate,omitempty"`
	Thumbnail   *ImageRef    `json:"thumbnail,omitempty"`
	Images      []Annotation `json:"images"`
}

// Annotation paints an image onto a canvas
type Annotation struct {
	ID         string        `json:"@id"`
	Type       string        `json:"@type"`
	Motivation string        `json:"motivation"`
	Resource   ImageResource `json:"resource"`
	On         string        `json:"on"`
}

// ImageResource is the concrete image behind an annotation
type ImageResource struct {
	ID      string        `json:"@id"`
	Type    string        `json:"@type"`
	Format  string        `json:"format"`
	Width   int           `json:"width"`
	Height  int           `json:"height"`
	Service *ImageService `json:"service,omitempty"`
}

// ImageRef is a thumbnail-style image reference
type ImageRef struct {
	ID      string        `json:"@id"`
	Width   int           `json:"width,omitempty"`
	Height  int           `json:"height,omitempty"`
	Service *ImageService `json:"service,omitempty"`
}

// ImageService advertises the Image API endpoint for a resource
type ImageService struct {
	Context string `json:"@context"`
	ID      string `json:"@id"`
	Profile string `json:"profile"`
}

// Range is one node of the manifest's structural table of contents
type Range struct {
	ID       string   `json:"@id"`
	Type     string   `json:"@type"`
	Label    string   `json:"label"`
	Canvases []string `json:"canvases,omitempty"`
	Ranges   []string `json:"ranges,omitempty"`
}

// PageContent describes one resolved page for manifest building: the
// physical ID, display label, assigned image identifier and the known
// extreme dimensions of its backing files.
type PageContent struct {
	PhysicalID  string
	Label       string
	ImageID     string
	Width       int
	Height      int
	ThumbWidth  int
	ThumbHeight int
}

// MakeLabel derives the single-line display label for a document:
// "{creators}: {title} ({place}, {date})" with absent parts omitted.
func MakeLabel(meta mets.Metadata) string {
	label := meta.Title
	if label == "" {
		label = mets.UntitledLabel
	}
	if len(meta.Creators) > 0 {
		label = fmt.Sprintf("%s: %s", strings.Join(meta.Creators, "/"), label)
	}
	switch {
	case meta.PublicationPlace != "" && meta.PublicationDate != "":
		label = fmt.Sprintf("%s (%s, %s)", label, meta.PublicationPlace, meta.PublicationDate)
	case meta.PublicationDate != "":
		label = fmt.Sprintf("%s (%s)", label, meta.PublicationDate)
	case meta.PublicationPlace != "":
		label = fmt.Sprintf("%s (%s)", label, meta.PublicationPlace)
	}
	return label
}

// MakeAttribution renders the owning institution as an HTML link when a
// site URL is known, otherwise as plain text.
func MakeAttribution(attr mets.Attribution) string {
	if attr.Owner == "" {
		return ""
	}
	if attr.SiteURL == "" {
		return attr.Owner
	}
	return fmt.Sprintf("<a href='%s'>%s</a>", attr.SiteURL, attr.Owner)
}

// MakeManifest builds the full manifest for a document.
//
// originURL is the METS source (linked via seeAlso); pages must be in
// reading order. TOC entries without a label or without physical pages do
// not produce ranges.
func MakeManifest(manifestID, baseURL, originURL string, meta mets.Metadata, pages []PageContent, toc []mets.TocEntry) *Manifest {
	manifestBase := fmt.Sprintf("%s/iiif/%s", baseURL, manifestID)

	m := &Manifest{
		Context:     PresentationContext,
		ID:          manifestBase + "/manifest",
		Type:        "sc:Manifest",
		Label:       MakeLabel(meta),
		Metadata:    makeMetadata(meta),
		Description: meta.Description,
		License:     licenseMap[meta.License],
		Attribution: MakeAttribution(meta.Attribution),
		Logo:        meta.Attribution.Logo,
		Related:     meta.Related,
	}

	if originURL != "" {
		m.SeeAlso = append(m.SeeAlso, SeeAlso{
			ID:      originURL,
			Format:  "text/xml",
			Profile: mets.NamespaceMETS,
		})
	}
	if meta.PDFDownloadURL != "" {
		m.SeeAlso = append(m.SeeAlso, SeeAlso{
			ID:     meta.PDFDownloadURL,
			Format: "application/pdf",
		})
	}

	seq := Sequence{
		ID:    manifestBase + "/sequence/default.json",
		Type:  "sc:Sequence",
		Label: "Current page order",
	}
	canvasIDs := make(map[string]string, len(pages))
	for _, page := range pages {
		canvas := makeCanvas(manifestBase, baseURL, page)
		canvasIDs[page.PhysicalID] = canvas.ID
		seq.Canvases = append(seq.Canvases, canvas)
	}
	m.Sequences = []Sequence{seq}

	if len(seq.Canvases) > 0 {
		m.Thumbnail = seq.Canvases[0].Thumbnail
	}

	m.Structures = makeRanges(manifestBase, toc, canvasIDs)
	return m
}

func makeCanvas(manifestBase, baseURL string, page PageContent) Canvas {
	width, height := page.Width, page.Height
	approximate := false
	if width == 0 || height == 0 {
		width, height = NominalCanvasWidth, NominalCanvasHeight
		approximate = true
	}

	imageBase := fmt.Sprintf("%s/iiif/image/%s", baseURL, page.ImageID)
	service := &ImageService{
		Context: ImageContext,
		ID:      imageBase,
		Profile: ImageLevel0Profile,
	}

	canvas := Canvas{
		ID:          fmt.Sprintf("%s/canvas/%s.json", manifestBase, page.PhysicalID),
		Type:        "sc:Canvas",
		Label:       page.Label,
		Width:       width,
		Height:      height,
		Approximate: approximate,
	}
	if canvas.Label == "" {
		canvas.Label = "?"
	}

	if page.ThumbWidth > 0 && page.ThumbHeight > 0 {
		canvas.Thumbnail = &ImageRef{
			ID:      fmt.Sprintf("%s/full/%d,%d/0/default.jpg", imageBase, page.ThumbWidth, page.ThumbHeight),
			Width:   page.ThumbWidth,
			Height:  page.ThumbHeight,
			Service: service,
		}
	}

	canvas.Images = []Annotation{{
		ID:         fmt.Sprintf("%s/annotation/%s.json", manifestBase, page.PhysicalID),
		Type:       "oa:Annotation",
		Motivation: "sc:painting",
		Resource: ImageResource{
			ID:      imageBase + "/full/full/0/default.jpg",
			Type:    "dctypes:Image",
			Format:  "image/jpeg",
			Width:   width,
			Height:  height,
			Service: service,
		},
		On: canvas.ID,
	}}
	return canvas
}

// makeRanges flattens the TOC tree into the manifest's structures list.
// Children are linked by range ID, so the tree shape survives flattening.
func makeRanges(manifestBase string, entries []mets.TocEntry, canvasIDs map[string]string) []Range {
	var ranges []Range
	for _, entry := range entries {
		ranges = append(ranges, rangesForEntry(manifestBase, entry, canvasIDs)...)
	}
	return ranges
}

func rangesForEntry(manifestBase string, entry mets.TocEntry, canvasIDs map[string]string) []Range {
	var ranges []Range
	if entry.Label != "" && len(collectCanvases(entry, canvasIDs)) > 0 {
		r := Range{
			ID:       fmt.Sprintf("%s/range/%s.json", manifestBase, entry.LogicalID),
			Type:     "sc:Range",
			Label:    entry.Label,
			Canvases: collectCanvases(entry, canvasIDs),
		}
		for _, child := range entry.Children {
			if child.Label == "" || len(collectCanvases(child, canvasIDs)) == 0 {
				continue
			}
			r.Ranges = append(r.Ranges, fmt.Sprintf("%s/range/%s.json", manifestBase, child.LogicalID))
		}
		ranges = append(ranges, r)
	}
	for _, child := range entry.Children {
		ranges = append(ranges, rangesForEntry(manifestBase, child, canvasIDs)...)
	}
	return ranges
}

// collectCanvases resolves an entry's physical IDs (and its descendants')
// to canvas IDs, skipping pages that were dropped during import.
func collectCanvases(entry mets.TocEntry, canvasIDs map[string]string) []string {
	var canvases []string
	for _, physID := range entry.PhysicalIDs {
		if id, ok := canvasIDs[physID]; ok {
			canvases = append(canvases, id)
		}
	}
	for _, child := range entry.Children {
		canvases = append(canvases, collectCanvases(child, canvasIDs)...)
	}
	return canvases
}

func makeMetadata(meta mets.Metadata) []MetadataEntry {
	var entries []MetadataEntry
	add := func(key string, value any) {
		entries = append(entries, MetadataEntry{Label: metadataLabels[key], Value: value})
	}

	if meta.Title != "" {
		add("title", meta.Title)
	}
	if len(meta.Creators) > 0 {
		add("creator", strings.Join(meta.Creators, "/"))
	}
	if meta.Publisher != "" {
		add("publisher", meta.Publisher)
	}
	if meta.PublicationPlace != "" {
		add("pub_place", meta.PublicationPlace)
	}
	if meta.PublicationDate != "" {
		add("pub_date", meta.PublicationDate)
	}
	if meta.Language != "" {
		add("language", meta.Language)
	}
	if meta.Genre != "" {
		add("genre", meta.Genre)
	}

	// Identifier keys sorted for deterministic output
	var idTypes []string
	for idType := range meta.Identifiers {
		idTypes = append(idTypes, idType)
	}
	sort.Strings(idTypes)
	for _, idType := range idTypes {
		entries = append(entries, MetadataEntry{
			Label: fmt.Sprintf("Identifier (%s)", idType),
			Value: meta.Identifiers[idType],
		})
	}
	return entries
}
