package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/internal/testdb"
)

type fakeImporter struct {
	fail map[string]error
}

func (f *fakeImporter) Import(ctx context.Context, job *Job) (*ManifestRef, int, error) {
	if err, ok := f.fail[job.SourceURL]; ok {
		return nil, 0, err
	}
	return &ManifestRef{ID: "http://base/iiif/doc/manifest"}, 1, nil
}

func waitForTerminal(t *testing.T, queue *Queue, jobID string) *Job {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		job, err := queue.GetJob(jobID)
		require.NoError(t, err)
		if job.IsTerminal() {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s never reached a terminal status (still %s)", jobID, job.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func testPool(t *testing.T, queue *Queue, imp Importer) *WorkerPool {
	t.Helper()
	pool := NewWorkerPool(context.Background(), queue, imp, WorkerPoolConfig{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop().Sugar())
	t.Cleanup(pool.Stop)
	return pool
}

func TestWorkerProcessesJob(t *testing.T) {
	queue := NewQueue(testdb.Create(t))
	job := NewJob("http://src/ok.xml", Meta{})
	require.NoError(t, queue.Enqueue(job))

	testPool(t, queue, &fakeImporter{}).Start()

	done := waitForTerminal(t, queue, job.ID)
	assert.Equal(t, StatusFinished, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, "http://base/iiif/doc/manifest", done.Result.ID)
	assert.Equal(t, 1, done.PagesDropped)
}

func TestWorkerFailsJobOnImportError(t *testing.T) {
	queue := NewQueue(testdb.Create(t))
	job := NewJob("http://src/bad.xml", Meta{})
	require.NoError(t, queue.Enqueue(job))

	imp := &fakeImporter{fail: map[string]error{
		"http://src/bad.xml": errors.Wrap(errors.ErrMalformedDocument, "not METS"),
	}}
	testPool(t, queue, imp).Start()

	done := waitForTerminal(t, queue, job.ID)
	assert.Equal(t, StatusFailed, done.Status)
	require.NotNil(t, done.Failure)
	assert.Equal(t, "malformed_document", done.Failure.Type)
	assert.NotEmpty(t, done.Failure.Trace)
}

func TestWorkerRecoversOrphanedJobs(t *testing.T) {
	db := testdb.Create(t)
	queue := NewQueue(db)

	// Simulate a crash: a job left in started state with no worker
	orphan := NewJob("http://src/orphan.xml", Meta{})
	require.NoError(t, orphan.Start())
	require.NoError(t, NewStore(db).CreateJob(orphan))

	testPool(t, queue, &fakeImporter{}).Start()

	done := waitForTerminal(t, queue, orphan.ID)
	assert.Equal(t, StatusFinished, done.Status)
}

func TestDescribeFailure(t *testing.T) {
	tests := []struct {
		err      error
		wantType string
	}{
		{errors.Wrap(errors.ErrUnreachableSource, "no answer"), "source_unreachable"},
		{errors.Wrap(errors.ErrMalformedDocument, "bad xml"), "malformed_document"},
		{errors.Wrap(errors.ErrInvalidRequest, "bad url"), "invalid_source"},
		{errors.New("disk full"), "import_error"},
	}
	for _, tt := range tests {
		failure := describeFailure(tt.err)
		assert.Equal(t, tt.wantType, failure.Type)
		assert.NotEmpty(t, failure.Message)
		assert.NotEmpty(t, failure.Trace)
	}
}
