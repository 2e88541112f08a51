package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/iiify/ingest"
)

func TestNotifyValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.postJSON(t, "/api/tasks/notify", map[string]interface{}{
		"recipient": "not-an-email",
		"jobs":      []string{"x"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.postJSON(t, "/api/tasks/notify", map[string]interface{}{
		"recipient": "reader@example.com",
		"jobs":      []string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.postJSON(t, "/api/tasks/notify", map[string]interface{}{
		"recipient": "reader@example.com",
		"jobs":      []string{"no-such-job"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotifyAccumulatesSubscriptions(t *testing.T) {
	env := newTestEnv(t)

	_, first := env.postJSON(t, "/api/import", map[string]string{"url": env.metsURL()})
	var jobA ingest.StatusView
	require.NoError(t, json.Unmarshal(first, &jobA))

	_, second := env.postJSON(t, "/api/import", map[string]string{"url": env.upstream.URL + "/mets.xml?copy=2"})
	var jobB ingest.StatusView
	require.NoError(t, json.Unmarshal(second, &jobB))
	require.NotEqual(t, jobA.ID, jobB.ID)

	resp, body := env.postJSON(t, "/api/tasks/notify", map[string]interface{}{
		"recipient": "reader@example.com",
		"jobs":      []string{jobA.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// Second call adds a job and repeats the first; the response carries
	// the full accumulated set
	resp, body = env.postJSON(t, "/api/tasks/notify", map[string]interface{}{
		"recipient": "reader@example.com",
		"jobs":      []string{jobA.ID, jobB.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Recipient string              `json:"recipient"`
		Jobs      []ingest.StatusView `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "reader@example.com", result.Recipient)
	require.Len(t, result.Jobs, 2)
}
