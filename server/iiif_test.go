package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/iiify/iiif"
)

func TestManifestServed(t *testing.T) {
	env := newTestEnv(t)
	storeTestManifest(t, env, "doc1")

	for _, path := range []string{"/iiif/doc1/manifest", "/iiif/doc1/manifest.json"} {
		resp, body := env.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Contains(t, string(body), "Stored document doc1")
	}

	resp, _ := env.get(t, "/iiif/missing/manifest")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManifestSubResources(t *testing.T) {
	env := newTestEnv(t)
	storeTestManifest(t, env, "doc1")

	resp, body := env.get(t, "/iiif/doc1/sequence/default.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sc:Sequence")

	resp, body = env.get(t, "/iiif/doc1/canvas/PHYS_0001.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sc:Canvas")

	resp, _ = env.get(t, "/iiif/doc1/canvas/PHYS_0001")
	assert.Equal(t, http.StatusOK, resp.StatusCode, ".json suffix is optional")

	resp, _ = env.get(t, "/iiif/doc1/canvas/PHYS_9999.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.get(t, "/iiif/doc1/banana/PHYS_0001.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCollection(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"doc1", "doc2", "doc3"} {
		storeTestManifest(t, env, id)
	}

	resp, body := env.get(t, "/iiif/collection/index")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var top iiif.Collection
	require.NoError(t, json.Unmarshal(body, &top))
	assert.Equal(t, "http://iiify.test/iiif/collection/index", top.ID)
	assert.Equal(t, 3, top.Total)
	assert.Equal(t, "http://iiify.test/iiif/collection/index/p1", top.First)
	assert.Empty(t, top.Manifests)

	resp, body = env.get(t, "/iiif/collection/index/p1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page iiif.Collection
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Manifests, 3)
	assert.Equal(t, "http://iiify.test/iiif/collection/index", page.Within)
	assert.Empty(t, page.Next, "single page has no next")

	resp, _ = env.get(t, "/iiif/collection/index/p9")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.get(t, "/iiif/collection/other")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImageInfo(t *testing.T) {
	env := newTestEnv(t)
	storeTestManifest(t, env, "doc1")

	resp, body := env.get(t, "/iiif/image/img-doc1/info.json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "img-doc1")

	resp, _ = env.get(t, "/iiif/image/missing/info.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImageRequestRedirects(t *testing.T) {
	env := newTestEnv(t)
	storeTestManifest(t, env, "doc1")

	tests := []struct {
		path     string
		location string
	}{
		{"/iiif/image/img-doc1/full/full/0/default.jpg", "http://files.test/doc1-big.jpg"},
		{"/iiif/image/img-doc1/full/max/0/native.jpg", "http://files.test/doc1-big.jpg"},
		{"/iiif/image/img-doc1/full/100,/0/default.jpg", "http://files.test/doc1-thumb.jpg"},
		{"/iiif/image/img-doc1/full/,1400/0/default.jpg", "http://files.test/doc1-big.jpg"},
		{"/iiif/image/img-doc1/full/100,140/0/default.jpg", "http://files.test/doc1-thumb.jpg"},
	}
	for _, tt := range tests {
		resp, err := noRedirectClient.Get(env.api.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, tt.path)
		assert.Equal(t, tt.location, resp.Header.Get("Location"), tt.path)
	}
}

func TestImageRequestUnsupportedFeatures(t *testing.T) {
	env := newTestEnv(t)
	storeTestManifest(t, env, "doc1")

	for _, path := range []string{
		"/iiif/image/img-doc1/100,100,50,50/full/0/default.jpg", // region
		"/iiif/image/img-doc1/full/full/90/default.jpg",         // rotation
		"/iiif/image/img-doc1/full/full/0/bitonal.jpg",          // quality
		"/iiif/image/img-doc1/full/123,/0/default.jpg",          // no stored rendition
	} {
		resp, _ := env.get(t, path)
		assert.Equal(t, http.StatusNotImplemented, resp.StatusCode, path)
	}
}

func TestImageRequestBadSize(t *testing.T) {
	env := newTestEnv(t)
	storeTestManifest(t, env, "doc1")

	for _, path := range []string{
		"/iiif/image/img-doc1/full/banana/0/default.jpg",
		"/iiif/image/img-doc1/full/,/0/default.jpg",
		"/iiif/image/img-doc1/full/-5,/0/default.jpg",
	} {
		resp, _ := env.get(t, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}
