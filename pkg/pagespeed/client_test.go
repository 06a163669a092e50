package pagespeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
	"lighthouseResult": {
		"categories": {"performance": {"score": 0.42}},
		"audits": {
			"largest-contentful-paint": {"numericValue": 4820.5},
			"cumulative-layout-shift": {"numericValue": 0.31},
			"total-blocking-time": {"numericValue": 890}
		}
	}
}`

func TestAnalyze(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runPagespeed", r.URL.Path)
		assert.Equal(t, "https://acme.se/", r.URL.Query().Get("url"))
		assert.Equal(t, "mobile", r.URL.Query().Get("strategy"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	result, err := c.Analyze(context.Background(), "https://acme.se/", StrategyMobile)
	require.NoError(t, err)

	assert.InDelta(t, 42.0, result.PerformanceScore, 0.001)
	assert.InDelta(t, 4820.5, result.LCPMillis, 0.001)
	assert.InDelta(t, 0.31, result.CLS, 0.001)
	assert.InDelta(t, 890.0, result.TBTMillis, 0.001)
	assert.Equal(t, StrategyMobile, result.Strategy)
}

func TestAnalyzeDefaultsToMobile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mobile", r.URL.Query().Get("strategy"))
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.Analyze(context.Background(), "https://acme.se/", "")
	require.NoError(t, err)
}

func TestAnalyzeRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.Analyze(context.Background(), "https://acme.se/", StrategyDesktop)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnalyzeBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.Analyze(context.Background(), "https://acme.se/", StrategyMobile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
