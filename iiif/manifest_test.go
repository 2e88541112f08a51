package iiif

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/iiify/mets"
)

func sampleMetadata() mets.Metadata {
	return mets.Metadata{
		Title:            "Die Leiden des jungen Werthers",
		Creators:         []string{"Goethe, Johann Wolfgang von"},
		PublicationPlace: "Leipzig",
		PublicationDate:  "1774",
		Publisher:        "Weygand",
		Language:         "ger",
		License:          "pdm",
		Attribution: mets.Attribution{
			Owner:   "Herzog August Bibliothek",
			SiteURL: "http://hab.example.com",
			Logo:    "http://hab.example.com/logo.png",
		},
		Related:        "http://viewer.example.com/werther",
		PDFDownloadURL: "http://hab.example.com/werther.pdf",
		Identifiers:    map[string]string{"urn": "urn:nbn:de:test-123", "purl": "http://purl.example.com/123"},
	}
}

func samplePages() []PageContent {
	return []PageContent{
		{PhysicalID: "PHYS_0001", Label: "Titelblatt", ImageID: "img-1", Width: 1200, Height: 1600, ThumbWidth: 150, ThumbHeight: 200},
		{PhysicalID: "PHYS_0002", Label: "2", ImageID: "img-2"},
	}
}

func TestMakeLabel(t *testing.T) {
	assert.Equal(t,
		"Goethe, Johann Wolfgang von: Die Leiden des jungen Werthers (Leipzig, 1774)",
		MakeLabel(sampleMetadata()))

	assert.Equal(t, "Untitled document", MakeLabel(mets.Metadata{}))
	assert.Equal(t, "Chronik (1874)", MakeLabel(mets.Metadata{Title: "Chronik", PublicationDate: "1874"}))
	assert.Equal(t, "Chronik (Berlin)", MakeLabel(mets.Metadata{Title: "Chronik", PublicationPlace: "Berlin"}))
	assert.Equal(t, "A/B: Chronik",
		MakeLabel(mets.Metadata{Title: "Chronik", Creators: []string{"A", "B"}}))
}

func TestMakeAttribution(t *testing.T) {
	assert.Equal(t, "", MakeAttribution(mets.Attribution{}))
	assert.Equal(t, "HAB", MakeAttribution(mets.Attribution{Owner: "HAB"}))
	assert.Equal(t, "<a href='http://hab.example.com'>HAB</a>",
		MakeAttribution(mets.Attribution{Owner: "HAB", SiteURL: "http://hab.example.com"}))
}

func TestMakeManifest(t *testing.T) {
	m := MakeManifest("werther", "http://iiify.example.com", "http://hab.example.com/mets.xml",
		sampleMetadata(), samplePages(), nil)

	assert.Equal(t, PresentationContext, m.Context)
	assert.Equal(t, "http://iiify.example.com/iiif/werther/manifest", m.ID)
	assert.Equal(t, "sc:Manifest", m.Type)
	assert.Equal(t, "http://creativecommons.org/licenses/publicdomain/", m.License)
	assert.Equal(t, "<a href='http://hab.example.com'>Herzog August Bibliothek</a>", m.Attribution)
	assert.Equal(t, "http://hab.example.com/logo.png", m.Logo)
	assert.Equal(t, "http://viewer.example.com/werther", m.Related)

	require.Len(t, m.SeeAlso, 2)
	assert.Equal(t, "http://hab.example.com/mets.xml", m.SeeAlso[0].ID)
	assert.Equal(t, "text/xml", m.SeeAlso[0].Format)
	assert.Equal(t, "application/pdf", m.SeeAlso[1].Format)

	require.Len(t, m.Sequences, 1)
	seq := m.Sequences[0]
	assert.Equal(t, "http://iiify.example.com/iiif/werther/sequence/default.json", seq.ID)
	require.Len(t, seq.Canvases, 2)

	first := seq.Canvases[0]
	assert.Equal(t, "http://iiify.example.com/iiif/werther/canvas/PHYS_0001.json", first.ID)
	assert.Equal(t, "Titelblatt", first.Label)
	assert.Equal(t, 1200, first.Width)
	assert.Equal(t, 1600, first.Height)
	assert.False(t, first.Approximate)
	require.Len(t, first.Images, 1)
	anno := first.Images[0]
	assert.Equal(t, "sc:painting", anno.Motivation)
	assert.Equal(t, first.ID, anno.On)
	assert.Equal(t, "http://iiify.example.com/iiif/image/img-1/full/full/0/default.jpg", anno.Resource.ID)
	require.NotNil(t, anno.Resource.Service)
	assert.Equal(t, "http://iiify.example.com/iiif/image/img-1", anno.Resource.Service.ID)
	assert.Equal(t, ImageLevel0Profile, anno.Resource.Service.Profile)

	require.NotNil(t, first.Thumbnail)
	assert.Equal(t, "http://iiify.example.com/iiif/image/img-1/full/150,200/0/default.jpg", first.Thumbnail.ID)
	assert.Equal(t, m.Thumbnail, first.Thumbnail, "manifest thumbnail is the first canvas thumbnail")

	second := seq.Canvases[1]
	assert.Equal(t, NominalCanvasWidth, second.Width)
	assert.Equal(t, NominalCanvasHeight, second.Height)
	assert.True(t, second.Approximate, "unknown dimensions fall back to nominal size")
	assert.Nil(t, second.Thumbnail)
}

func TestMakeManifestMetadataOrder(t *testing.T) {
	m := MakeManifest("x", "http://base", "", sampleMetadata(), nil, nil)

	var values []any
	for _, entry := range m.Metadata {
		values = append(values, entry.Value)
	}
	assert.Equal(t, []any{
		"Die Leiden des jungen Werthers",
		"Goethe, Johann Wolfgang von",
		"Weygand",
		"Leipzig",
		"1774",
		"ger",
		"http://purl.example.com/123",
		"urn:nbn:de:test-123",
	}, values)

	assert.Equal(t, "Identifier (purl)", m.Metadata[6].Label)
	assert.Equal(t, "Identifier (urn)", m.Metadata[7].Label)
}

func TestMakeManifestRanges(t *testing.T) {
	toc := []mets.TocEntry{{
		LogicalID: "LOG_0000",
		Label:     "Gesamtwerk",
		Children: []mets.TocEntry{
			{LogicalID: "LOG_0001", Label: "Titelblatt", PhysicalIDs: []string{"PHYS_0001"}},
			{LogicalID: "LOG_0002", Label: "", PhysicalIDs: []string{"PHYS_0002"}},
			{LogicalID: "LOG_0003", Label: "Anhang", PhysicalIDs: []string{"PHYS_MISSING"}},
		},
	}}

	m := MakeManifest("x", "http://base", "", mets.Metadata{Title: "T"}, samplePages(), toc)

	require.Len(t, m.Structures, 2, "unlabeled and unresolvable entries are skipped")
	root := m.Structures[0]
	assert.Equal(t, "http://base/iiif/x/range/LOG_0000.json", root.ID)
	assert.Equal(t, "Gesamtwerk", root.Label)
	assert.Equal(t, []string{
		"http://base/iiif/x/canvas/PHYS_0001.json",
		"http://base/iiif/x/canvas/PHYS_0002.json",
	}, root.Canvases, "canvases are gathered from descendants")
	assert.Equal(t, []string{"http://base/iiif/x/range/LOG_0001.json"}, root.Ranges)

	assert.Equal(t, "Titelblatt", m.Structures[1].Label)
}

func TestMakeManifestDeterministic(t *testing.T) {
	build := func() []byte {
		m := MakeManifest("werther", "http://base", "http://src/mets.xml",
			sampleMetadata(), samplePages(), nil)
		data, err := json.Marshal(m)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, build(), build())
}

func TestMakeImageInfo(t *testing.T) {
	info := MakeImageInfo("img-1", "http://base", []Size{
		{Width: 150, Height: 200},
		{Width: 1200, Height: 1600},
	})
	assert.Equal(t, "http://base/iiif/image/img-1", info.ID)
	assert.Equal(t, 1200, info.Width)
	assert.Equal(t, 1600, info.Height)
	assert.Equal(t, []string{ImageLevel0Profile}, info.Profile)
	assert.Len(t, info.Sizes, 2)
}

func TestMakeCollectionTop(t *testing.T) {
	coll := MakeCollection("index", "Recently imported documents", "http://base", nil, 42, 0, 5, 10)
	assert.Equal(t, "http://base/iiif/collection/index", coll.ID)
	assert.Equal(t, 42, coll.Total)
	assert.Equal(t, "http://base/iiif/collection/index/p1", coll.First)
	assert.Equal(t, "http://base/iiif/collection/index/p5", coll.Last)
	assert.Nil(t, coll.StartIndex)
	assert.Empty(t, coll.Manifests)
}

func TestMakeCollectionPage(t *testing.T) {
	manifests := []CollectionManifest{{ID: "http://base/iiif/a/manifest", Type: "sc:Manifest", Label: "A"}}

	middle := MakeCollection("index", "Recent", "http://base", manifests, 42, 3, 5, 10)
	assert.Equal(t, "http://base/iiif/collection/index/p3", middle.ID)
	assert.Equal(t, "http://base/iiif/collection/index", middle.Within)
	require.NotNil(t, middle.StartIndex)
	assert.Equal(t, 20, *middle.StartIndex)
	assert.Equal(t, "http://base/iiif/collection/index/p4", middle.Next)
	assert.Equal(t, "http://base/iiif/collection/index/p2", middle.Prev)

	first := MakeCollection("index", "Recent", "http://base", manifests, 42, 1, 5, 10)
	assert.Empty(t, first.Prev)
	assert.NotEmpty(t, first.Next)

	last := MakeCollection("index", "Recent", "http://base", manifests, 42, 5, 5, 10)
	assert.Empty(t, last.Next)
	assert.NotEmpty(t, last.Prev)
}
