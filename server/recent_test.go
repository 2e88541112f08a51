package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentListing(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/api/recent")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"next_page": null, "manifests": []}`, string(body))

	for i := 1; i <= 12; i++ {
		storeTestManifest(t, env, fmt.Sprintf("doc%02d", i))
	}

	var listing struct {
		NextPage  *int             `json:"next_page"`
		Manifests []recentManifest `json:"manifests"`
	}
	_, body = env.get(t, "/api/recent")
	require.NoError(t, json.Unmarshal(body, &listing))
	require.Len(t, listing.Manifests, recentPerPage)
	require.NotNil(t, listing.NextPage)
	assert.Equal(t, 2, *listing.NextPage)

	entry := listing.Manifests[0]
	assert.NotEmpty(t, entry.ID)
	assert.NotEmpty(t, entry.Label)
	assert.NotEmpty(t, entry.MetsURL)
	assert.Contains(t, entry.Attribution, "Library")
	assert.Equal(t, "http://lib.test/logo.png", entry.AttributionLogo)
	assert.NotEmpty(t, entry.Thumbnail)

	_, body = env.get(t, "/api/recent?page=2")
	require.NoError(t, json.Unmarshal(body, &listing))
	assert.Len(t, listing.Manifests, 2)
	assert.Nil(t, listing.NextPage)

	resp, _ = env.get(t, "/api/recent?page=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResolveIdentifier(t *testing.T) {
	env := newTestEnv(t)
	storeTestManifest(t, env, "doc1")

	resp, err := noRedirectClient.Get(env.api.URL + "/api/resolve/urn:test:doc1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "http://iiify.test/iiif/doc1/manifest", resp.Header.Get("Location"))

	resp, _ = env.get(t, "/api/resolve/urn:test:unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
