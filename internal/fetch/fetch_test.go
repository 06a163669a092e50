package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDownloader(t *testing.T) {
	t.Parallel()

	t.Run("download", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Address,Title\nhttps://acme.se/,Acme\n"))
		}))
		defer srv.Close()

		d := NewHTTPDownloader(HTTPOptions{RateLimit: 100})
		body, err := d.Download(context.Background(), srv.URL+"/internal_all.csv")
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Contains(t, string(data), "acme.se")
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte("ok"))
		}))
		defer srv.Close()

		d := NewHTTPDownloader(HTTPOptions{MaxRetries: 3, RateLimit: 100})
		body, err := d.Download(context.Background(), srv.URL)
		require.NoError(t, err)
		body.Close()
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("non-retryable status fails immediately", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		d := NewHTTPDownloader(HTTPOptions{MaxRetries: 3, RateLimit: 100})
		_, err := d.Download(context.Background(), srv.URL)
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("download to file keeps base name", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("data"))
		}))
		defer srv.Close()

		d := NewHTTPDownloader(HTTPOptions{RateLimit: 100})
		dir := t.TempDir()
		path, err := d.DownloadToFile(context.Background(), srv.URL+"/ga4_export.json", dir)
		require.NoError(t, err)
		assert.Contains(t, path, "ga4_export.json")
		data, err := io.ReadAll(mustOpen(t, path))
		require.NoError(t, err)
		assert.Equal(t, "data", string(data))
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	src, unknown := Classify([]string{
		"/tmp/drop/internal_all.csv",
		"/tmp/drop/acme-organic-keywords.csv",
		"/tmp/drop/ga4_channels.csv",
		"/tmp/drop/GTM-ABC123_workspace.json",
		"/tmp/drop/homepage.png",
		"/tmp/drop/checkout.jpg",
		"/tmp/drop/notes.txt",
	})

	assert.Equal(t, "/tmp/drop/internal_all.csv", src.Crawl)
	assert.Equal(t, "/tmp/drop/acme-organic-keywords.csv", src.Keywords)
	assert.Equal(t, "/tmp/drop/ga4_channels.csv", src.Analytics)
	assert.Equal(t, "/tmp/drop/GTM-ABC123_workspace.json", src.TagManager)
	assert.Equal(t, []string{"/tmp/drop/homepage.png", "/tmp/drop/checkout.jpg"}, src.Screenshots)
	assert.Equal(t, []string{"/tmp/drop/notes.txt"}, unknown)
}

func TestClassifyDuplicateSlot(t *testing.T) {
	t.Parallel()

	src, unknown := Classify([]string{
		"/tmp/a/crawl_march.csv",
		"/tmp/a/crawl_april.csv",
	})
	assert.Equal(t, "/tmp/a/crawl_march.csv", src.Crawl)
	assert.Equal(t, []string{"/tmp/a/crawl_april.csv"}, unknown)
}

func mustOpen(t *testing.T, path string) io.Reader {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}
