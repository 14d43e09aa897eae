// Package web downloads city CSV exports to the local data directory
package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"crimetrends/internal/core/sources"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/platform/metrics"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// ChunkSize is the read size used while streaming a body to disk
	ChunkSize = 8192

	mb            = 1024 * 1024
	progressEvery = 5 // MB
)

// Downloader streams URLs into {dir}/{city}/{csvName}
type Downloader struct {
	dir    string
	client *http.Client
}

// Option configures a Downloader
type Option func(*Downloader)

// WithClient replaces the HTTP client
func WithClient(c *http.Client) Option {
	return func(d *Downloader) {
		if c != nil {
			d.client = c
		}
	}
}

// WithTimeout sets a whole-request timeout on the default client; zero disables it
func WithTimeout(to time.Duration) Option {
	return func(d *Downloader) { d.client.Timeout = to }
}

// New returns a Downloader rooted at dir ("data" when empty)
func New(dir string, opts ...Option) *Downloader {
	if dir == "" {
		dir = "data"
	}
	d := &Downloader{
		dir:    dir,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// PathFor returns where csvName is stored
func (d *Downloader) PathFor(csvName string) string {
	return filepath.Join(d.dir, string(sources.CityOf(csvName)), csvName)
}

// Download fetches url into PathFor(csvName) and returns that path. On a
// non-200 status nothing is written and the status error is returned
func (d *Downloader) Download(ctx context.Context, url, csvName string) (string, error) {
	log := logger.C(ctx).With().Str("url", url).Str("csv_name", csvName).Logger()
	path := d.PathFor(csvName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "build request for %s", url)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", perr.FromRemote(err, "download "+csvName)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("Error downloading the file.")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return "", perr.FromStatus(resp.StatusCode, url)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "create %s", filepath.Dir(path))
	}
	n, err := writeAtomic(path, resp.Body, func(total int64) {
		log.Info().Int64("mb", total/mb).Msgf("Downloaded size: %d MB", total/mb)
	})
	metrics.DownloadedBytes.WithLabelValues(string(sources.CityOf(csvName))).Add(float64(n))
	if err != nil {
		return "", perr.WithOp(err, "download "+csvName)
	}

	size := float64(n) / mb
	log.Info().Str("path", path).Int64("bytes", n).
		Msgf("File %s downloaded successfully. Full size is %.2f MB", csvName, size)
	return path, nil
}

// writeAtomic streams r into path+".part" in ChunkSize reads, then renames
// it over path. progress fires each time the size crosses a new 5 MB mark.
// The .part file never survives a failure. Read errors are classified as
// remote failures, local file errors as Unknown
func writeAtomic(path string, r io.Reader, progress func(total int64)) (n int64, err error) {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnknown, "create %s", tmp)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	buf := make([]byte, ChunkSize)
	lastMark := int64(0)
	for {
		k, rerr := r.Read(buf)
		if k > 0 {
			if _, werr := f.Write(buf[:k]); werr != nil {
				return n, perr.Wrapf(werr, perr.ErrorCodeUnknown, "write %s", tmp)
			}
			n += int64(k)
			if mark := n / mb; mark%progressEvery == 0 && mark != lastMark {
				lastMark = mark
				if progress != nil {
					progress(n)
				}
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return n, perr.FromRemote(rerr, "read body")
		}
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return n, perr.Wrapf(err, perr.ErrorCodeUnknown, "close %s", tmp)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return n, perr.Wrapf(err, perr.ErrorCodeUnknown, "rename %s", tmp)
	}
	return n, nil
}
