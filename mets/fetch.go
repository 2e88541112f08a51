package mets

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/iiify/errors"
	"github.com/teranos/iiify/internal/httpclient"
)

// maxDocumentBytes caps METS downloads; library METS files run to a few
// megabytes, anything beyond this is not a METS document.
const maxDocumentBytes = 64 << 20

// probeMIMETypes are the file types whose dimensions we probe remotely.
var probeMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
}

// DimensionLookup resolves already-known pixel dimensions for a file URL,
// typically backed by the image store, so repeat imports skip the probe.
type DimensionLookup func(url string) (width, height int, ok bool)

// ProgressFunc reports dimension probing progress (current of total files).
type ProgressFunc func(current, total int)

// Fetcher downloads METS documents and probes remote images for their
// pixel dimensions. Remote probes are rate limited out of politeness
// toward the hosting institutions.
type Fetcher struct {
	client  *httpclient.SaferClient
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewFetcher creates a Fetcher with the given outbound client.
func NewFetcher(client *httpclient.SaferClient, probesPerSecond float64, logger *zap.SugaredLogger) *Fetcher {
	if probesPerSecond <= 0 {
		probesPerSecond = 4
	}
	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(probesPerSecond), 1),
		logger:  logger.Named("mets"),
	}
}

// FetchDocument downloads and parses the METS document at url.
func (f *Fetcher) FetchDocument(ctx context.Context, url string) (*Document, error) {
	resp, err := f.client.GetContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch METS from %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("fetch METS from %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "read METS body from %s", url)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}

	f.logger.Debugw("Fetched METS document",
		"url", url,
		"bytes", len(data),
		"files", len(doc.Files()),
	)
	return doc, nil
}

// Probe performs a bounded HEAD request against url and reports whether
// anything answered. Used as the reachability gate before accepting a job.
func (f *Fetcher) Probe(ctx context.Context, url string, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := f.client.Head(probeCtx, url)
	if err != nil {
		return errors.Wrap(errors.ErrUnreachableSource, err.Error())
	}
	resp.Body.Close()
	// Any answer counts as reachable; some servers reject HEAD with 4xx/5xx
	// but still serve the document on GET
	return nil
}

// FillDimensions fills in missing pixel dimensions for the given files.
// Dimensions already known to the lookup are reused without network
// traffic; only JPEG files are probed remotely. Files that cannot be
// probed keep zero dimensions and are reported in the failed count.
func (f *Fetcher) FillDimensions(ctx context.Context, files []*File, known DimensionLookup, progress ProgressFunc) (probed, failed int, err error) {
	var pending []*File
	for _, file := range files {
		if file.Width > 0 && file.Height > 0 {
			continue
		}
		if known != nil {
			if w, h, ok := known(file.URL); ok {
				file.Width, file.Height = w, h
				continue
			}
		}
		if probeMIMETypes[file.MIMEType] {
			pending = append(pending, file)
		}
	}

	for i, file := range pending {
		if err := f.limiter.Wait(ctx); err != nil {
			return probed, failed, errors.Wrap(err, "rate limit wait")
		}

		w, h, err := f.probeDimensions(ctx, file.URL)
		if err != nil {
			failed++
			f.logger.Warnw("Failed to probe image dimensions",
				"url", file.URL,
				"error", err,
			)
		} else {
			file.Width, file.Height = w, h
			probed++
		}
		if progress != nil {
			progress(i+1, len(pending))
		}
	}
	return probed, failed, nil
}

// probeDimensions downloads just enough of the image to decode its header.
func (f *Fetcher) probeDimensions(ctx context.Context, url string) (int, int, error) {
	resp, err := f.client.GetContext(ctx, url)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, errors.Newf("unexpected status %d", resp.StatusCode)
	}

	cfg, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return 0, 0, errors.Wrap(err, "decode image header")
	}
	return cfg.Width, cfg.Height, nil
}
