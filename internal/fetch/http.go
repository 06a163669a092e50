// Package fetch pulls client export bundles from remote drops, over
// HTTP or FTP, and classifies the files into audit source slots.
package fetch

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP downloader.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // requests per second, 0 means default
}

// HTTPDownloader fetches export files over HTTP with retry and rate
// limiting.
type HTTPDownloader struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPDownloader creates a downloader with the given options.
func NewHTTPDownloader(opts HTTPOptions) *HTTPDownloader {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "audit-cli/1.0"
	}
	rps := opts.RateLimit
	if rps <= 0 {
		rps = 5
	}
	return &HTTPDownloader{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(rps), max(int(rps), 1)),
	}
}

// Download fetches the URL and returns the response body. The caller
// closes it.
func (d *HTTPDownloader) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", d.opts.UserAgent)

	resp, err := d.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into destDir, keeping the URL's base
// name, and returns the local path.
func (d *HTTPDownloader) DownloadToFile(ctx context.Context, rawURL, destDir string) (string, error) {
	body, err := d.Download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	path := filepath.Join(destDir, filepath.Base(rawURL))
	file, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "fetch: create file")
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(file, body); err != nil {
		return "", eris.Wrap(err, "fetch: write file")
	}
	return path, nil
}

func (d *HTTPDownloader) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := range d.opts.MaxRetries {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		resp, err := d.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("fetch failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			zap.L().Warn("fetch got retryable status",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			backoff(ctx, attempt)
			continue
		}

		return resp, nil
	}
	return nil, eris.Wrap(lastErr, "fetch: all retries exhausted")
}

func backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int64N(int64(d) / 2))

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
