// Package pagespeed provides a client for the Google PageSpeed Insights API.
package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Strategy selects the device profile for an analysis.
type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

// Client defines the PageSpeed Insights operations.
type Client interface {
	// Analyze runs Lighthouse for the URL and returns the core results.
	Analyze(ctx context.Context, targetURL string, strategy Strategy) (*Result, error)
}

// Result holds the Lighthouse scores and lab metrics an audit cares about.
type Result struct {
	URL              string  `json:"url"`
	Strategy         Strategy `json:"strategy"`
	PerformanceScore float64 `json:"performance_score"` // 0-100
	LCPMillis        float64 `json:"lcp_ms"`
	CLS              float64 `json:"cls"`
	TBTMillis        float64 `json:"tbt_ms"`
}

// Option configures the PageSpeed client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a PageSpeed Insights client. The API works without
// a key at very low volume; production use needs one.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://www.googleapis.com/pagespeedonline/v5",
		http: &http.Client{
			// Lighthouse runs take a while; the API can hold the
			// connection close to a minute.
			Timeout: 90 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse mirrors the slice of the v5 response we read.
type apiResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score float64 `json:"score"` // 0-1
			} `json:"performance"`
		} `json:"categories"`
		Audits map[string]struct {
			NumericValue float64 `json:"numericValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

func (c *httpClient) Analyze(ctx context.Context, targetURL string, strategy Strategy) (*Result, error) {
	if strategy == "" {
		strategy = StrategyMobile
	}

	q := url.Values{}
	q.Set("url", targetURL)
	q.Set("strategy", string(strategy))
	q.Set("category", "performance")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	reqURL := fmt.Sprintf("%s/runPagespeed?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "pagespeed: create request")
	}
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "pagespeed: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("pagespeed: unexpected status %d: %s", statusCode, string(body))
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "pagespeed: unmarshal response")
	}

	result := &Result{
		URL:              targetURL,
		Strategy:         strategy,
		PerformanceScore: resp.LighthouseResult.Categories.Performance.Score * 100,
	}
	if a, ok := resp.LighthouseResult.Audits["largest-contentful-paint"]; ok {
		result.LCPMillis = a.NumericValue
	}
	if a, ok := resp.LighthouseResult.Audits["cumulative-layout-shift"]; ok {
		result.CLS = a.NumericValue
	}
	if a, ok := resp.LighthouseResult.Audits["total-blocking-time"]; ok {
		result.TBTMillis = a.NumericValue
	}
	return result, nil
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a request with exponential backoff on transient
// failures and returns the body and status code.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "pagespeed: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("pagespeed: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}
