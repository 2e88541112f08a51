package mets

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/internal/httpclient"
)

func testFetcher(t *testing.T, srv *httptest.Server) *Fetcher {
	t.Helper()
	return NewFetcher(httpclient.WrapClient(srv.Client()), 1000, zap.NewNop().Sugar())
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestFetchDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleMETS))
	}))
	defer srv.Close()

	doc, err := testFetcher(t, srv).FetchDocument(context.Background(), srv.URL+"/mets.xml")
	require.NoError(t, err)
	assert.Len(t, doc.Files(), 3)
}

func TestFetchDocumentBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := testFetcher(t, srv).FetchDocument(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetchDocumentMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>definitely not mets</html>`))
	}))
	defer srv.Close()

	_, err := testFetcher(t, srv).FetchDocument(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedDocument))
}

func TestProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := testFetcher(t, srv).Probe(context.Background(), srv.URL, 5*time.Second)
	assert.NoError(t, err)
}

func TestProbeTimeoutIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	err := testFetcher(t, srv).Probe(context.Background(), srv.URL, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnreachableSource))
}

func TestProbeErrorStatusStillReachable(t *testing.T) {
	// Some servers reject HEAD but serve GET; an HTTP answer is enough
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no HEAD here", http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	assert.NoError(t, testFetcher(t, srv).Probe(context.Background(), srv.URL, time.Second))
}

func TestFillDimensions(t *testing.T) {
	jpegData := encodeJPEG(t, 640, 480)
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(jpegData)
	}))
	defer srv.Close()

	files := []*File{
		{ID: "f1", URL: srv.URL + "/1.jpg", MIMEType: "image/jpeg"},
		{ID: "f2", URL: srv.URL + "/2.jpg", MIMEType: "image/jpeg", Width: 100, Height: 200},
		{ID: "f3", URL: srv.URL + "/known.jpg", MIMEType: "image/jpeg"},
		{ID: "f4", URL: srv.URL + "/skip.tif", MIMEType: "image/tiff"},
	}
	known := func(url string) (int, int, bool) {
		if url == srv.URL+"/known.jpg" {
			return 300, 400, true
		}
		return 0, 0, false
	}

	var progressCalls int
	probed, failed, err := testFetcher(t, srv).FillDimensions(
		context.Background(), files, known,
		func(current, total int) { progressCalls++ },
	)
	require.NoError(t, err)

	assert.Equal(t, 1, probed, "only f1 needs a remote probe")
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, requests)
	assert.Equal(t, 1, progressCalls)
	assert.Equal(t, 640, files[0].Width)
	assert.Equal(t, 480, files[0].Height)
	assert.Equal(t, 100, files[1].Width, "already known dimensions untouched")
	assert.Equal(t, 300, files[2].Width, "lookup result reused without network traffic")
	assert.Equal(t, 0, files[3].Width, "non-JPEG files are not probed")
}

func TestFillDimensionsFailureKeepsGoing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.jpg" {
			w.Write([]byte("not an image"))
			return
		}
		w.Write(encodeJPEG(t, 10, 20))
	}))
	defer srv.Close()

	files := []*File{
		{ID: "f1", URL: srv.URL + "/bad.jpg", MIMEType: "image/jpeg"},
		{ID: "f2", URL: srv.URL + "/good.jpg", MIMEType: "image/jpeg"},
	}
	probed, failed, err := testFetcher(t, srv).FillDimensions(context.Background(), files, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, probed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 10, files[1].Width)
}
