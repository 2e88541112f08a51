package storage

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/internal/testdb"
)

func sampleManifest(id, origin string) *Manifest {
	doc := fmt.Sprintf(`{
		"@id": "http://base/iiif/%[1]s/manifest",
		"@type": "sc:Manifest",
		"label": "Test document",
		"sequences": [{
			"@id": "http://base/iiif/%[1]s/sequence/default.json",
			"@type": "sc:Sequence",
			"canvases": [{
				"@id": "http://base/iiif/%[1]s/canvas/PHYS_0001.json",
				"@type": "sc:Canvas",
				"images": [{
					"@id": "http://base/iiif/%[1]s/annotation/PHYS_0001.json",
					"@type": "oa:Annotation"
				}]
			}]
		}],
		"structures": [{
			"@id": "http://base/iiif/%[1]s/range/LOG_0001.json",
			"@type": "sc:Range"
		}]
	}`, id)
	return &Manifest{ID: id, Origin: origin, Label: "Test document", Document: json.RawMessage(doc)}
}

func TestManifestSaveAndGet(t *testing.T) {
	store := NewManifestStore(testdb.Create(t))

	require.NoError(t, store.Save(sampleManifest("doc1", "http://src/1.xml"), nil, nil))

	got, err := store.Get("doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1", got.ID)
	assert.Equal(t, "http://src/1.xml", got.Origin)
	assert.Equal(t, "Test document", got.Label)
	assert.JSONEq(t, string(sampleManifest("doc1", "").Document), string(got.Document))

	_, err = store.Get("missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestManifestSaveReplacesEverything(t *testing.T) {
	db := testdb.Create(t)
	store := NewManifestStore(db)
	images := NewImageStore(db)

	img := Image{
		ID:   "img-1",
		Info: json.RawMessage(`{"@id":"http://base/iiif/image/img-1"}`),
		Files: []ImageFile{
			{URL: "http://files/1-big.jpg", Width: 1000, Height: 1400, Format: "jpg"},
			{URL: "http://files/1-thumb.jpg", Width: 100, Height: 140, Format: "jpg"},
		},
	}
	require.NoError(t, store.Save(sampleManifest("doc1", "http://src/1.xml"), []Image{img}, []string{"urn:a"}))

	_, err := images.GetInfo("img-1")
	require.NoError(t, err)

	// Re-import with a different image set; the old image must vanish
	img2 := Image{ID: "img-2", Info: json.RawMessage(`{}`), Files: []ImageFile{
		{URL: "http://files/2.jpg", Width: 500, Height: 700, Format: "jpg"},
	}}
	require.NoError(t, store.Save(sampleManifest("doc1", "http://src/1.xml"), []Image{img2}, []string{"urn:b"}))

	_, err = images.GetInfo("img-1")
	assert.True(t, errors.IsNotFoundError(err), "replaced image rows are gone")
	_, err = images.GetInfo("img-2")
	assert.NoError(t, err)

	ids := NewIdentifierStore(db)
	_, err = ids.Resolve("urn:a")
	assert.True(t, errors.IsNotFoundError(err))
	mid, err := ids.Resolve("urn:b")
	require.NoError(t, err)
	assert.Equal(t, "doc1", mid)
}

func TestManifestByOrigin(t *testing.T) {
	store := NewManifestStore(testdb.Create(t))
	require.NoError(t, store.Save(sampleManifest("doc1", "http://src/1.xml"), nil, nil))

	got, err := store.ByOrigin("http://src/1.xml")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "doc1", got.ID)

	got, err = store.ByOrigin("http://src/other.xml")
	require.NoError(t, err)
	assert.Nil(t, got, "unknown origin is not an error")
}

func TestManifestRecent(t *testing.T) {
	store := NewManifestStore(testdb.Create(t))
	for i := 1; i <= 5; i++ {
		m := sampleManifest(fmt.Sprintf("doc%d", i), fmt.Sprintf("http://src/%d.xml", i))
		require.NoError(t, store.Save(m, nil, nil))
	}

	page, total, err := store.Recent(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	last, _, err := store.Recent(3, 2)
	require.NoError(t, err)
	assert.Len(t, last, 1)

	empty, _, err := store.Recent(4, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestManifestRecentKeepsCreationOrderAcrossReimports(t *testing.T) {
	store := NewManifestStore(testdb.Create(t))
	for i := 1; i <= 3; i++ {
		m := sampleManifest(fmt.Sprintf("doc%d", i), fmt.Sprintf("http://src/%d.xml", i))
		require.NoError(t, store.Save(m, nil, nil))
		time.Sleep(5 * time.Millisecond)
	}

	// Re-importing the oldest document bumps updated_at only; the listing
	// stays in creation order
	require.NoError(t, store.Save(sampleManifest("doc1", "http://src/1.xml"), nil, nil))

	page, total, err := store.Recent(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 3)
	assert.Equal(t, "doc3", page[0].ID)
	assert.Equal(t, "doc2", page[1].ID)
	assert.Equal(t, "doc1", page[2].ID)
	assert.True(t, page[2].UpdatedAt.After(page[2].CreatedAt))
}

func TestManifestSubResource(t *testing.T) {
	store := NewManifestStore(testdb.Create(t))
	require.NoError(t, store.Save(sampleManifest("doc1", "http://src/1.xml"), nil, nil))

	seq, err := store.SubResource("doc1", "sequence", "default")
	require.NoError(t, err)
	assert.Contains(t, string(seq), "sc:Sequence")

	canvas, err := store.SubResource("doc1", "canvas", "PHYS_0001")
	require.NoError(t, err)
	assert.Contains(t, string(canvas), "sc:Canvas")

	anno, err := store.SubResource("doc1", "annotation", "PHYS_0001")
	require.NoError(t, err)
	assert.Contains(t, string(anno), "oa:Annotation")

	rng, err := store.SubResource("doc1", "range", "LOG_0001")
	require.NoError(t, err)
	assert.Contains(t, string(rng), "sc:Range")

	_, err = store.SubResource("doc1", "canvas", "PHYS_9999")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestManifestDeleteCascades(t *testing.T) {
	db := testdb.Create(t)
	store := NewManifestStore(db)

	img := Image{ID: "img-1", Info: json.RawMessage(`{}`), Files: []ImageFile{
		{URL: "http://files/1.jpg", Width: 10, Height: 10, Format: "jpg"},
	}}
	require.NoError(t, store.Save(sampleManifest("doc1", "http://src/1.xml"), []Image{img}, []string{"urn:a"}))
	require.NoError(t, store.Delete("doc1"))

	_, err := NewImageStore(db).GetInfo("img-1")
	assert.True(t, errors.IsNotFoundError(err))
	_, err = NewIdentifierStore(db).Resolve("urn:a")
	assert.True(t, errors.IsNotFoundError(err))

	assert.True(t, errors.IsNotFoundError(store.Delete("doc1")))
}
