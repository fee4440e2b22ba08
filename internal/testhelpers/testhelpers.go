// Package testhelpers provides reusable testing utilities for the monitor.
//
// This package contains:
// - HTTP test helpers (requests, assertions on responses)
// - A SQLite-backed store for tests
// - Fake collectors, senders and broadcasters
// - Assertion helpers
package testhelpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm/logger"

	"github.com/astrafabric/monitor/internal/database"
)

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	header := ctx.Request.Header.Clone()
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header = header
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// ExecuteFunc runs the handler func and returns the response
func (ctx *HTTPTestContext) ExecuteFunc(handler http.HandlerFunc) *HTTPTestContext {
	handler(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !strings.Contains(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// AssertBodyNotContains checks that the response body lacks substring
func (ctx *HTTPTestContext) AssertBodyNotContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if strings.Contains(body, substr) {
		ctx.T.Errorf("expected body not to contain %q, got: %s", substr, body)
	}
	return ctx
}

// AssertHeader checks response header value
func (ctx *HTTPTestContext) AssertHeader(key, expected string) *HTTPTestContext {
	ctx.T.Helper()
	got := ctx.Recorder.Header().Get(key)
	if got != expected {
		ctx.T.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Store
// ========================================

// NewTestStore opens a migrated SQLite store in a temporary directory.
// The connection is closed when the test ends.
func NewTestStore(t *testing.T) *database.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "monitor.db") + "?_busy_timeout=5000&_sync=OFF&_journal_mode=MEMORY"
	db, err := database.Connect(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return database.NewStore(db)
}

// ========================================
// Fakes
// ========================================

// FakeCollector returns scripted samples or errors, in order. The last
// entry repeats once the script is exhausted.
type FakeCollector struct {
	mu      sync.Mutex
	results []CollectResult
	calls   int
}

// CollectResult is one scripted FakeCollector outcome
type CollectResult struct {
	Sample *database.MetricsSample
	Err    error
}

// NewFakeCollector creates a collector returning results in order
func NewFakeCollector(results ...CollectResult) *FakeCollector {
	return &FakeCollector{results: results}
}

// Collect implements the collector interface
func (f *FakeCollector) Collect(ctx context.Context, resource database.Resource) (*database.MetricsSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return &database.MetricsSample{Timestamp: time.Now().UTC()}, nil
	}
	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	sample := *r.Sample
	return &sample, nil
}

// Calls returns how many times Collect ran
func (f *FakeCollector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// RecordingSender records every alert it is asked to deliver
type RecordingSender struct {
	mu    sync.Mutex
	sent  []SentNotification
	Error error
}

// SentNotification is one recorded delivery
type SentNotification struct {
	Channel database.NotificationChannel
	Alert   database.ActiveAlert
}

// Send implements notifier.Sender
func (r *RecordingSender) Send(ctx context.Context, channel database.NotificationChannel, alert database.ActiveAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentNotification{Channel: channel, Alert: alert})
	return r.Error
}

// Sent returns a copy of the recorded deliveries
func (r *RecordingSender) Sent() []SentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentNotification(nil), r.sent...)
}

// RecordingBroadcaster records live updates
type RecordingBroadcaster struct {
	mu        sync.Mutex
	metrics   []string
	alerts    []database.ActiveAlert
	customers []string
}

// PublishMetrics implements events.Broadcaster
func (r *RecordingBroadcaster) PublishMetrics(customerID, resourceID string, sample database.MetricsSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, resourceID)
	r.customers = append(r.customers, customerID)
}

// PublishAlert implements events.Broadcaster
func (r *RecordingBroadcaster) PublishAlert(customerID string, alert database.ActiveAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	r.customers = append(r.customers, customerID)
}

// MetricsUpdates returns the resource IDs of published samples
func (r *RecordingBroadcaster) MetricsUpdates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.metrics...)
}

// Customers returns the customer of every published update in order
func (r *RecordingBroadcaster) Customers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.customers...)
}

// Alerts returns the published alerts
func (r *RecordingBroadcaster) Alerts() []database.ActiveAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]database.ActiveAlert(nil), r.alerts...)
}

// ========================================
// Assertion Helpers
// ========================================

// AssertEqual checks equality with a helpful error message
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertError checks that an error occurred
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertNoError checks that no error occurred
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// ========================================
// Timing Helpers
// ========================================

// MustCompleteWithin fails the test if the function takes longer than the timeout
func MustCompleteWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		t.Fatalf("function did not complete within %v", timeout)
	}
}

// Eventually polls cond until it holds or the timeout elapses
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("%s: condition not met within %v", msg, timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
