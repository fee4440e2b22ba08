package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/astrafabric/monitor/internal/alerting"
	"github.com/astrafabric/monitor/internal/collector"
	"github.com/astrafabric/monitor/internal/config"
	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/notifier"
	"github.com/astrafabric/monitor/internal/scheduler"
	"github.com/astrafabric/monitor/internal/testhelpers"
)

// fakeMonitor records timer operations instead of polling
type fakeMonitor struct {
	mu      sync.Mutex
	started []database.Resource
	stopped []string

	// hooks run after the operation is recorded
	onStart func(database.Resource)
	onStop  func(string)
}

func (f *fakeMonitor) StartMonitoring(r database.Resource) {
	f.mu.Lock()
	f.started = append(f.started, r)
	hook := f.onStart
	f.mu.Unlock()
	if hook != nil {
		hook(r)
	}
}

func (f *fakeMonitor) StopMonitoring(id string) bool {
	f.mu.Lock()
	f.stopped = append(f.stopped, id)
	hook := f.onStop
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return true
}

func (f *fakeMonitor) Monitors() []scheduler.MonitorInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos := make([]scheduler.MonitorInfo, 0, len(f.started))
	for _, r := range f.started {
		infos = append(infos, scheduler.MonitorInfo{ResourceID: r.ID, ResourceType: r.Type, PollIntervalMs: r.PollIntervalMs})
	}
	return infos
}

// onlySupports accepts a fixed set of channel types
type onlySupports []database.ChannelType

func (o onlySupports) Supports(t database.ChannelType) bool {
	for _, ct := range o {
		if ct == t {
			return true
		}
	}
	return false
}

type serviceEnv struct {
	store   *database.Store
	tracker *alerting.Tracker
	monitor *fakeMonitor
	service *MonitorService
	now     time.Time
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	env := &serviceEnv{
		store:   testhelpers.NewTestStore(t),
		monitor: &fakeMonitor{},
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }
	env.store.SetClock(clock)
	env.tracker = alerting.NewTracker(env.store)
	env.tracker.SetClock(clock)
	env.service = NewMonitorService(env.store, env.monitor, env.tracker, nil)
	env.service.SetClock(clock)
	return env
}

func (e *serviceEnv) addWebsite(t *testing.T, customerID string) string {
	t.Helper()
	id, err := e.service.AddResource(context.Background(), ResourceRequest{
		Type:       database.ResourceTypeWebsite,
		Endpoint:   "https://example.com",
		CustomerID: customerID,
	})
	if err != nil {
		t.Fatalf("AddResource() error = %v", err)
	}
	return id
}

func (e *serviceEnv) appendSample(t *testing.T, resourceID string, b *testhelpers.SampleBuilder) {
	t.Helper()
	if err := e.store.AppendSample(context.Background(), resourceID, b.Build()); err != nil {
		t.Fatalf("AppendSample() error = %v", err)
	}
}

func TestValidateResource(t *testing.T) {
	tests := []struct {
		name      string
		req       ResourceRequest
		wantField string
	}{
		{
			name:      "server without ssh key",
			req:       ResourceRequest{Type: database.ResourceTypeServer, Endpoint: "10.0.0.1"},
			wantField: "credentials.ssh_key",
		},
		{
			name:      "database without password",
			req:       ResourceRequest{Type: database.ResourceTypeDatabase, Endpoint: "db:5432", Credentials: database.Credentials{Username: "u"}},
			wantField: "credentials.password",
		},
		{
			name:      "database without username",
			req:       ResourceRequest{Type: database.ResourceTypeDatabase, Endpoint: "db:5432", Credentials: database.Credentials{Password: "p"}},
			wantField: "credentials.username",
		},
		{
			name:      "website with ftp scheme",
			req:       ResourceRequest{Type: database.ResourceTypeWebsite, Endpoint: "ftp://example.com"},
			wantField: "endpoint",
		},
		{
			name:      "website without scheme",
			req:       ResourceRequest{Type: database.ResourceTypeWebsite, Endpoint: "example.com"},
			wantField: "endpoint",
		},
		{
			name:      "api without key",
			req:       ResourceRequest{Type: database.ResourceTypeAPI, Endpoint: "https://api.example.com"},
			wantField: "credentials.api_key",
		},
		{
			name:      "missing endpoint",
			req:       ResourceRequest{Type: database.ResourceTypeAPI, Credentials: database.Credentials{APIKey: "k"}},
			wantField: "endpoint",
		},
		{
			name:      "unknown type",
			req:       ResourceRequest{Type: "printer", Endpoint: "https://example.com"},
			wantField: "type",
		},
		{
			name:      "negative interval",
			req:       ResourceRequest{Type: database.ResourceTypeWebsite, Endpoint: "https://example.com", PollIntervalMs: -5},
			wantField: "poll_interval_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResource(tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.wantField]; !ok {
				t.Errorf("expected field %q in %v", tt.wantField, verr.Fields)
			}
		})
	}
}

func TestValidateResource_Valid(t *testing.T) {
	valid := []ResourceRequest{
		{Type: database.ResourceTypeServer, Endpoint: "10.0.0.1", Credentials: database.Credentials{SSHKey: "key"}},
		{Type: database.ResourceTypeDatabase, Endpoint: "db:5432", Credentials: database.Credentials{Username: "u", Password: "p"}},
		{Type: database.ResourceTypeWebsite, Endpoint: "http://example.com"},
		{Type: database.ResourceTypeWebsite, Endpoint: "https://example.com/health"},
		{Type: database.ResourceTypeAPI, Endpoint: "https://api.example.com", Credentials: database.Credentials{APIKey: "k"}},
	}
	for _, req := range valid {
		if err := ValidateResource(req); err != nil {
			t.Errorf("ValidateResource(%s) error = %v", req.Type, err)
		}
	}
}

func TestAddResource_PersistsAndStartsMonitoring(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	id, err := env.service.AddResource(ctx, ResourceRequest{
		Type:        database.ResourceTypeAPI,
		Name:        "orders",
		Endpoint:    "https://api.example.com",
		Credentials: database.Credentials{APIKey: "secret"},
		CustomerID:  "cust-1",
	})
	if err != nil {
		t.Fatalf("AddResource() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	stored, err := env.service.GetResource(ctx, id)
	if err != nil {
		t.Fatalf("GetResource() error = %v", err)
	}
	if stored.PollIntervalMs != database.DefaultPollIntervalMs {
		t.Errorf("PollIntervalMs = %d, want default", stored.PollIntervalMs)
	}
	if stored.Credentials.APIKey != "secret" {
		t.Error("credentials not persisted")
	}
	if len(env.monitor.started) != 1 || env.monitor.started[0].ID != id {
		t.Errorf("expected monitoring to start for %s, got %+v", id, env.monitor.started)
	}
}

func TestAddResource_InvalidNotPersisted(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.service.AddResource(ctx, ResourceRequest{Type: database.ResourceTypeServer, Endpoint: "host", CustomerID: "cust-1"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	resources, _ := env.service.GetCustomerResources(ctx, "cust-1")
	if len(resources) != 0 {
		t.Errorf("invalid resource was persisted: %+v", resources)
	}
	if len(env.monitor.started) != 0 {
		t.Error("invalid resource must not be monitored")
	}
}

func TestAddResource_DefaultInterval(t *testing.T) {
	env := newServiceEnv(t)
	env.service.SetDefaultPollInterval(15000)
	id := env.addWebsite(t, "cust-1")

	r, _ := env.service.GetResource(context.Background(), id)
	if r.PollIntervalMs != 15000 {
		t.Errorf("PollIntervalMs = %d, want 15000", r.PollIntervalMs)
	}
}

func TestAddResource_Concurrent(t *testing.T) {
	env := newServiceEnv(t)
	const workers = 8

	testhelpers.RunConcurrently(t, 10*time.Second, workers, func(int) {
		_, err := env.service.AddResource(context.Background(), ResourceRequest{
			Type:       database.ResourceTypeWebsite,
			Endpoint:   "https://example.com",
			CustomerID: "cust-1",
		})
		if err != nil {
			t.Errorf("AddResource() error = %v", err)
		}
	})

	views, err := env.service.GetCustomerResources(context.Background(), "cust-1")
	testhelpers.AssertNoError(t, err, "list resources")
	testhelpers.AssertEqual(t, workers, len(views), "resources")
	testhelpers.AssertEqual(t, workers, len(env.monitor.Monitors()), "monitors")
}

func TestGetCustomerResources(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	first := env.addWebsite(t, "cust-1")
	env.now = env.now.Add(time.Second)
	second := env.addWebsite(t, "cust-1")
	env.addWebsite(t, "cust-2")

	env.appendSample(t, second, testhelpers.NewSampleBuilder().WithStatusCode(200).At(env.now.Add(-2*time.Hour)))
	env.appendSample(t, second, testhelpers.NewSampleBuilder().WithStatusCode(200).At(env.now.Add(-time.Minute)))

	views, err := env.service.GetCustomerResources(ctx, "cust-1")
	if err != nil {
		t.Fatalf("GetCustomerResources() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(views))
	}
	if views[0].ID != second || views[1].ID != first {
		t.Errorf("expected newest first, got %s, %s", views[0].ID, views[1].ID)
	}
	if len(views[0].Metrics) != 1 {
		t.Errorf("expected only the last hour of metrics, got %d", len(views[0].Metrics))
	}
	if views[0].Status != alerting.StatusOnline {
		t.Errorf("status = %q, want online", views[0].Status)
	}
	if views[1].Status != alerting.StatusUnknown || len(views[1].Metrics) != 0 {
		t.Errorf("unexpected view for resource without samples: %+v", views[1])
	}

	empty, err := env.service.GetCustomerResources(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty list, got %v, %v", empty, err)
	}
}

func TestGetResourceMetrics_Ranges(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	id := env.addWebsite(t, "cust-1")

	for _, age := range []time.Duration{3 * 24 * time.Hour, 5 * time.Hour, 30 * time.Minute} {
		env.appendSample(t, id, testhelpers.NewSampleBuilder().WithStatusCode(200).At(env.now.Add(-age)))
	}

	tests := []struct {
		timeRange string
		want      int
	}{
		{"1h", 1},
		{"24h", 2},
		{"7d", 3},
		{"", 1},
		{"bogus", 1},
	}
	for _, tt := range tests {
		t.Run(tt.timeRange, func(t *testing.T) {
			samples, err := env.service.GetResourceMetrics(ctx, id, tt.timeRange)
			if err != nil {
				t.Fatalf("GetResourceMetrics() error = %v", err)
			}
			if len(samples) != tt.want {
				t.Errorf("got %d samples, want %d", len(samples), tt.want)
			}
		})
	}
}

func TestGetAggregatedMetrics(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	online := env.addWebsite(t, "cust-1")
	critical := env.addWebsite(t, "cust-1")
	offline := env.addWebsite(t, "cust-1")
	env.addWebsite(t, "cust-1") // unknown, never sampled
	env.addWebsite(t, "cust-other")

	env.appendSample(t, online, testhelpers.NewSampleBuilder().WithCPU(2).WithMemory(40).WithResponseTime(100).At(env.now))
	env.appendSample(t, critical, testhelpers.NewSampleBuilder().WithMemory(60).WithResponseTime(300).At(env.now))
	env.appendSample(t, offline, testhelpers.NewSampleBuilder().WithCPU(4).At(env.now.Add(-10*time.Minute)))

	if err := env.tracker.StoreActiveAlert(ctx, database.ActiveAlert{
		ResourceID: critical,
		Metric:     "memory",
		Condition:  database.ConditionGreaterThan,
		Value:      database.NumericValue(60),
		Threshold:  database.NumericValue(50),
		Severity:   database.SeverityCritical,
		Timestamp:  env.now,
	}); err != nil {
		t.Fatalf("StoreActiveAlert() error = %v", err)
	}

	agg, err := env.service.GetAggregatedMetrics(ctx, "cust-1")
	if err != nil {
		t.Fatalf("GetAggregatedMetrics() error = %v", err)
	}

	testhelpers.AssertEqual(t, 4, agg.TotalResources, "total")
	testhelpers.AssertEqual(t, 1, agg.OnlineResources, "online")
	testhelpers.AssertEqual(t, 1, agg.CriticalResources, "critical")
	testhelpers.AssertEqual(t, 1, agg.OfflineResources, "offline")
	testhelpers.AssertEqual(t, 1, agg.UnknownResources, "unknown")
	testhelpers.AssertEqual(t, 0, agg.WarningResources, "warning")
	testhelpers.AssertEqual(t, 3.0, agg.CPUAverage, "cpu average")
	testhelpers.AssertEqual(t, 50.0, agg.MemoryAverage, "memory average")
	testhelpers.AssertEqual(t, 0.0, agg.DiskAverage, "disk average")
	testhelpers.AssertEqual(t, 200.0, agg.ResponseTimeAverage, "response time average")
	if len(agg.Alerts) != 1 || agg.Alerts[0].ResourceID != critical {
		t.Errorf("unexpected alerts: %+v", agg.Alerts)
	}
}

func TestGetAggregatedMetrics_Empty(t *testing.T) {
	env := newServiceEnv(t)
	agg, err := env.service.GetAggregatedMetrics(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetAggregatedMetrics() error = %v", err)
	}
	if agg.TotalResources != 0 || agg.Alerts == nil || len(agg.Alerts) != 0 {
		t.Errorf("unexpected aggregate: %+v", agg)
	}
}

func TestGetGlobalAlerts_Limit(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	id := env.addWebsite(t, "cust-1")

	for i := 0; i < 60; i++ {
		if err := env.tracker.StoreActiveAlert(ctx, database.ActiveAlert{
			ResourceID: id,
			Metric:     "responseTime",
			Condition:  database.ConditionGreaterThan,
			Value:      database.NumericValue(float64(i)),
			Threshold:  database.NumericValue(0),
			Severity:   database.SeverityWarning,
			Timestamp:  env.now,
		}); err != nil {
			t.Fatalf("StoreActiveAlert() error = %v", err)
		}
	}

	alerts, err := env.service.GetGlobalAlerts(ctx, 0)
	if err != nil {
		t.Fatalf("GetGlobalAlerts() error = %v", err)
	}
	if len(alerts) != DefaultGlobalAlertLimit {
		t.Errorf("got %d alerts, want %d", len(alerts), DefaultGlobalAlertLimit)
	}
	if alerts[0].Value != database.NumericValue(59) {
		t.Errorf("expected most recent first, got %v", alerts[0].Value)
	}

	few, _ := env.service.GetGlobalAlerts(ctx, 5)
	if len(few) != 5 {
		t.Errorf("got %d alerts, want 5", len(few))
	}

	active, _ := env.service.GetActiveAlerts(ctx, id)
	if len(active) != 1 {
		t.Errorf("repeated alerts should replace in place, got %d", len(active))
	}
}

func TestAlertRules(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	id := env.addWebsite(t, "cust-1")

	t.Run("invalid", func(t *testing.T) {
		_, err := env.service.AddAlertRule(ctx, id, AlertRuleRequest{Metric: "temperature", Condition: "between", Severity: "fatal"})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"metric", "condition", "severity"} {
			if _, ok := verr.Fields[field]; !ok {
				t.Errorf("expected field %q in %v", field, verr.Fields)
			}
		}
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := env.service.AddAlertRule(ctx, "missing", AlertRuleRequest{
			Metric: "cpu", Condition: database.ConditionGreaterThan, Severity: database.SeverityWarning,
		})
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	disabled := false
	first, err := env.service.AddAlertRule(ctx, id, AlertRuleRequest{
		Metric: "statusCode", Condition: database.ConditionGreaterThan, Threshold: 499, Severity: database.SeverityCritical,
	})
	if err != nil {
		t.Fatalf("AddAlertRule() error = %v", err)
	}
	second, err := env.service.AddAlertRule(ctx, id, AlertRuleRequest{
		Metric: "responseTime", Condition: database.ConditionGreaterThan, Threshold: 2000, Severity: database.SeverityWarning, Enabled: &disabled,
	})
	if err != nil {
		t.Fatalf("AddAlertRule() error = %v", err)
	}
	if !first.Enabled || second.Enabled {
		t.Errorf("unexpected enabled flags: %v, %v", first.Enabled, second.Enabled)
	}

	rules, _ := env.service.ListAlertRules(ctx, id)
	if len(rules) != 2 || rules[0].ID != first.ID || rules[1].ID != second.ID {
		t.Fatalf("unexpected rule order: %+v", rules)
	}

	if err := env.service.DeleteAlertRule(ctx, id, first.ID); err != nil {
		t.Fatalf("DeleteAlertRule() error = %v", err)
	}
	if err := env.service.DeleteAlertRule(ctx, id, first.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	rules, _ = env.service.ListAlertRules(ctx, id)
	if len(rules) != 1 {
		t.Errorf("expected 1 rule left, got %d", len(rules))
	}
}

func TestValidateChannel(t *testing.T) {
	tests := []struct {
		name      string
		req       ChannelRequest
		wantField string
	}{
		{"email without address", ChannelRequest{Type: database.ChannelTypeEmail}, "address"},
		{"sms without phone", ChannelRequest{Type: database.ChannelTypeSMS}, "phone"},
		{"webhook without url", ChannelRequest{Type: database.ChannelTypeWebhook}, "url"},
		{"webhook with bad url", ChannelRequest{Type: database.ChannelTypeWebhook, URL: "hooks.example.com"}, "url"},
		{"slack without destination", ChannelRequest{Type: database.ChannelTypeSlack}, "webhook_url"},
		{"unknown type", ChannelRequest{Type: "pager"}, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *ValidationError
			if !errors.As(ValidateChannel(tt.req), &verr) {
				t.Fatal("expected ValidationError")
			}
			if _, ok := verr.Fields[tt.wantField]; !ok {
				t.Errorf("expected field %q in %v", tt.wantField, verr.Fields)
			}
		})
	}

	if err := ValidateChannel(ChannelRequest{Type: database.ChannelTypeSlack, Channel: "#ops"}); err != nil {
		t.Errorf("slack with channel should be valid: %v", err)
	}
}

func TestNotificationChannels(t *testing.T) {
	env := newServiceEnv(t)
	env.service = NewMonitorService(env.store, env.monitor, env.tracker, onlySupports{database.ChannelTypeWebhook, database.ChannelTypeEmail})
	ctx := context.Background()
	id := env.addWebsite(t, "cust-1")

	_, err := env.service.AddNotificationChannel(ctx, id, ChannelRequest{Type: database.ChannelTypeSMS, Phone: "+15550100"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for unconfigured channel type, got %v", err)
	}

	if _, err := env.service.AddNotificationChannel(ctx, "missing", ChannelRequest{Type: database.ChannelTypeEmail, Address: "ops@example.com"}); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	hook, err := env.service.AddNotificationChannel(ctx, id, ChannelRequest{Type: database.ChannelTypeWebhook, URL: "https://hooks.example.com/a"})
	if err != nil {
		t.Fatalf("AddNotificationChannel() error = %v", err)
	}
	mail, err := env.service.AddNotificationChannel(ctx, id, ChannelRequest{Type: database.ChannelTypeEmail, Address: "ops@example.com"})
	if err != nil {
		t.Fatalf("AddNotificationChannel() error = %v", err)
	}
	if !hook.Enabled {
		t.Error("channels are enabled by default")
	}

	channels, _ := env.service.ListChannels(ctx, id)
	if len(channels) != 2 || channels[0].ID != hook.ID || channels[1].ID != mail.ID {
		t.Errorf("unexpected channel order: %+v", channels)
	}
}

func TestRemoveResource(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	id := env.addWebsite(t, "cust-1")

	if err := env.service.RemoveResource(ctx, id); err != nil {
		t.Fatalf("RemoveResource() error = %v", err)
	}
	if len(env.monitor.stopped) != 1 || env.monitor.stopped[0] != id {
		t.Errorf("expected monitoring stopped for %s, got %v", id, env.monitor.stopped)
	}
	if _, err := env.service.GetResource(ctx, id); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound after removal, got %v", err)
	}
	views, _ := env.service.GetCustomerResources(ctx, "cust-1")
	if len(views) != 0 {
		t.Error("removed resource still listed for customer")
	}
	if err := env.service.RemoveResource(ctx, id); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second removal, got %v", err)
	}
}

func TestRemoveResource_DeletesBeforeStopping(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	id := env.addWebsite(t, "cust-1")

	var lookupErr error
	env.monitor.onStop = func(string) {
		_, lookupErr = env.store.GetResource(ctx, id)
	}
	if err := env.service.RemoveResource(ctx, id); err != nil {
		t.Fatalf("RemoveResource() error = %v", err)
	}
	if !errors.Is(lookupErr, database.ErrNotFound) {
		t.Errorf("resource still stored when its timer stopped: %v", lookupErr)
	}
}

func TestUpdatePollInterval_RacingRemoval(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	id := env.addWebsite(t, "cust-1")

	// the removal lands right after the timer is restarted
	env.monitor.onStart = func(r database.Resource) {
		if err := env.store.DeleteResource(ctx, r.ID); err != nil {
			t.Errorf("DeleteResource() error = %v", err)
		}
	}
	if err := env.service.UpdatePollInterval(ctx, id, 5000); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if n := len(env.monitor.stopped); n == 0 || env.monitor.stopped[n-1] != id {
		t.Errorf("restarted timer of a removed resource left running, stopped = %v", env.monitor.stopped)
	}
}

func TestUpdatePollInterval(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	id := env.addWebsite(t, "cust-1")

	var verr *ValidationError
	if err := env.service.UpdatePollInterval(ctx, id, 0); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if err := env.service.UpdatePollInterval(ctx, "missing", 5000); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := env.service.UpdatePollInterval(ctx, id, 5000); err != nil {
		t.Fatalf("UpdatePollInterval() error = %v", err)
	}
	last := env.monitor.started[len(env.monitor.started)-1]
	if last.ID != id || last.PollIntervalMs != 5000 {
		t.Errorf("expected restart with the new interval, got %+v", last)
	}
	if infos := env.service.Monitors(); len(infos) != 2 {
		t.Errorf("expected 2 start records, got %d", len(infos))
	}
}

func TestApplySeed(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	seed, err := config.ParseSeed([]byte(`
resources:
  - id: shop
    type: website
    endpoint: https://shop.example.com
    customer_id: cust-1
    rules:
      - metric: statusCode
        condition: greater_than
        threshold: 499
        severity: critical
    channels:
      - type: webhook
        url: https://hooks.example.com/shop
  - id: db
    type: database
    endpoint: db.internal:5432
    customer_id: cust-1
    credentials:
      username: monitor
      password: secret
`))
	if err != nil {
		t.Fatalf("ParseSeed() error = %v", err)
	}

	created, err := env.service.ApplySeed(ctx, seed)
	if err != nil {
		t.Fatalf("ApplySeed() error = %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	rules, _ := env.service.ListAlertRules(ctx, "shop")
	channels, _ := env.service.ListChannels(ctx, "shop")
	if len(rules) != 1 || len(channels) != 1 {
		t.Errorf("expected seeded rule and channel, got %d rules, %d channels", len(rules), len(channels))
	}

	created, err = env.service.ApplySeed(ctx, seed)
	if err != nil || created != 0 {
		t.Errorf("second ApplySeed() = %d, %v; want 0, nil", created, err)
	}
	rules, _ = env.service.ListAlertRules(ctx, "shop")
	if len(rules) != 1 {
		t.Errorf("seed must not duplicate rules, got %d", len(rules))
	}
}

func TestApplySeed_InvalidResource(t *testing.T) {
	env := newServiceEnv(t)
	seed := &config.Seed{Resources: []config.SeedResource{{ID: "bad", Type: "server", Endpoint: "host", CustomerID: "c"}}}

	_, err := env.service.ApplySeed(context.Background(), seed)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected wrapped ValidationError, got %v", err)
	}
}

// newLiveService wires the service to a real scheduler, collectors and notifier
func newLiveService(t *testing.T) (*MonitorService, *testhelpers.RecordingSender) {
	t.Helper()
	store := testhelpers.NewTestStore(t)
	tracker := alerting.NewTracker(store)
	sender := &testhelpers.RecordingSender{}
	n := notifier.New(time.Second)
	n.Register(database.ChannelTypeWebhook, sender)

	sched := scheduler.New(scheduler.Deps{
		Store:          store,
		Collector:      collector.NewDefaultRegistry(collector.Options{Timeout: time.Second}),
		Tracker:        tracker,
		Notifier:       n,
		CollectTimeout: time.Second,
	})
	t.Cleanup(sched.Stop)
	return NewMonitorService(store, sched, tracker, n), sender
}

func TestWebsiteEndToEnd_ServerErrorRaisesCriticalAlert(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer site.Close()

	svc, sender := newLiveService(t)
	ctx := context.Background()

	id, err := svc.AddResource(ctx, ResourceRequest{
		Type:           database.ResourceTypeWebsite,
		Endpoint:       site.URL,
		CustomerID:     "cust-1",
		PollIntervalMs: 20,
	})
	if err != nil {
		t.Fatalf("AddResource() error = %v", err)
	}
	if _, err := svc.AddAlertRule(ctx, id, AlertRuleRequest{
		Metric: "statusCode", Condition: database.ConditionGreaterThan, Threshold: 499, Severity: database.SeverityCritical,
	}); err != nil {
		t.Fatalf("AddAlertRule() error = %v", err)
	}
	if _, err := svc.AddNotificationChannel(ctx, id, ChannelRequest{Type: database.ChannelTypeWebhook, URL: "https://hooks.example.com/x"}); err != nil {
		t.Fatalf("AddNotificationChannel() error = %v", err)
	}

	testhelpers.Eventually(t, 3*time.Second, func() bool {
		return svc.GetResourceStatus(ctx, id) == alerting.StatusCritical
	}, "critical status")

	alerts, _ := svc.GetActiveAlerts(ctx, id)
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one active alert, got %+v", alerts)
	}
	if alerts[0].Metric != "statusCode" || alerts[0].Value != database.NumericValue(500) {
		t.Errorf("unexpected alert: %+v", alerts[0])
	}
	testhelpers.Eventually(t, 3*time.Second, func() bool { return len(sender.Sent()) > 0 }, "notification")
}

func TestWebsiteEndToEnd_RecoveryClearsAlert(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer site.Close()

	svc, _ := newLiveService(t)
	ctx := context.Background()

	id, err := svc.AddResource(ctx, ResourceRequest{
		Type:           database.ResourceTypeWebsite,
		Endpoint:       site.URL,
		CustomerID:     "cust-1",
		PollIntervalMs: 20,
	})
	if err != nil {
		t.Fatalf("AddResource() error = %v", err)
	}
	if _, err := svc.AddAlertRule(ctx, id, AlertRuleRequest{
		Metric: "statusCode", Condition: database.ConditionGreaterThan, Threshold: 499, Severity: database.SeverityCritical,
	}); err != nil {
		t.Fatalf("AddAlertRule() error = %v", err)
	}

	testhelpers.Eventually(t, 3*time.Second, func() bool {
		return svc.GetResourceStatus(ctx, id) == alerting.StatusCritical
	}, "critical status")

	status.Store(http.StatusOK)

	testhelpers.Eventually(t, 3*time.Second, func() bool {
		return svc.GetResourceStatus(ctx, id) == alerting.StatusOnline
	}, "online status")
	alerts, _ := svc.GetActiveAlerts(ctx, id)
	if len(alerts) != 0 {
		t.Errorf("expected no active alerts after recovery, got %+v", alerts)
	}

	if err := svc.RemoveResource(ctx, id); err != nil {
		t.Fatalf("RemoveResource() error = %v", err)
	}
	if len(svc.Monitors()) != 0 {
		t.Error("removed resource is still monitored")
	}
}
