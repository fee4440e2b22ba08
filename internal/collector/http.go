package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/astrafabric/monitor/internal/database"
)

// DefaultTimeout bounds a single website or api probe
const DefaultTimeout = 10 * time.Second

// Options configures the HTTP-based collectors
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// HTTPCollector probes a URL with a single GET and records latency, status
// code and body size. Any status code yields a valid sample.
type HTTPCollector struct {
	httpClient *http.Client
	withAPIKey bool
	now        func() time.Time
}

// NewWebsiteCollector creates the collector for website resources
func NewWebsiteCollector(opts Options) *HTTPCollector {
	return &HTTPCollector{httpClient: opts.client(), now: time.Now}
}

// NewAPICollector creates the collector for api resources; requests carry
// the resource's api key as a bearer token.
func NewAPICollector(opts Options) *HTTPCollector {
	return &HTTPCollector{httpClient: opts.client(), withAPIKey: true, now: time.Now}
}

// Collect implements Collector
func (c *HTTPCollector) Collect(ctx context.Context, resource database.Resource) (*database.MetricsSample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resource.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.withAPIKey {
		req.Header.Set("Authorization", "Bearer "+resource.Credentials.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	size, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	status := resp.StatusCode
	return &database.MetricsSample{
		ResponseTime: &elapsed,
		StatusCode:   &status,
		Size:         &size,
		Timestamp:    c.now().UTC(),
	}, nil
}
