package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/iiify/internal/testdb"
)

func TestSubscribeSetSemantics(t *testing.T) {
	store := NewSubscriptionStore(testdb.Create(t))

	require.NoError(t, store.Subscribe("reader@example.com", []string{"job-1", "job-2"}))
	require.NoError(t, store.Subscribe("reader@example.com", []string{"job-2", "job-3"}))

	jobs, err := store.JobsFor("reader@example.com")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"job-1", "job-2", "job-3"}, jobs)
}

func TestRecipientsFor(t *testing.T) {
	store := NewSubscriptionStore(testdb.Create(t))

	require.NoError(t, store.Subscribe("a@example.com", []string{"job-1"}))
	require.NoError(t, store.Subscribe("b@example.com", []string{"job-1", "job-2"}))

	recipients, err := store.RecipientsFor("job-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, recipients)

	recipients, err = store.RecipientsFor("job-9")
	require.NoError(t, err)
	assert.Empty(t, recipients)
}
