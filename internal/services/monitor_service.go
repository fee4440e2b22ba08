package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/astrafabric/monitor/internal/alerting"
	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/scheduler"
)

// DefaultGlobalAlertLimit is the feed size returned when no limit is given
const DefaultGlobalAlertLimit = 50

var websiteEndpoint = regexp.MustCompile(`^https?://`)

// ValidationError reports an invalid registration or rule request
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Monitor controls the per-resource polling timers
type Monitor interface {
	StartMonitoring(resource database.Resource)
	StopMonitoring(resourceID string) bool
	Monitors() []scheduler.MonitorInfo
}

// ChannelSupport reports which notification channel types can be delivered
type ChannelSupport interface {
	Supports(t database.ChannelType) bool
}

// ResourceRequest describes a resource to register
type ResourceRequest struct {
	ID             string
	Type           database.ResourceType
	Name           string
	Endpoint       string
	Credentials    database.Credentials
	CustomerID     string
	PollIntervalMs int64
}

// AlertRuleRequest describes a rule to add to a resource
type AlertRuleRequest struct {
	Metric    string
	Condition database.Condition
	Threshold float64
	Severity  database.Severity
	Enabled   *bool
}

// ChannelRequest describes a notification channel to add to a resource
type ChannelRequest struct {
	Type       database.ChannelType
	Address    string
	Phone      string
	URL        string
	WebhookURL string
	Channel    string
	Enabled    *bool
}

// ResourceView is a resource with its recent metrics and current status
type ResourceView struct {
	database.Resource
	Status  alerting.Status          `json:"status"`
	Metrics []database.MetricsSample `json:"metrics"`
}

// AggregatedMetrics summarizes a customer's resources
type AggregatedMetrics struct {
	TotalResources      int                    `json:"total_resources"`
	OnlineResources     int                    `json:"online_resources"`
	OfflineResources    int                    `json:"offline_resources"`
	WarningResources    int                    `json:"warning_resources"`
	CriticalResources   int                    `json:"critical_resources"`
	UnknownResources    int                    `json:"unknown_resources"`
	CPUAverage          float64                `json:"cpu_average"`
	MemoryAverage       float64                `json:"memory_average"`
	DiskAverage         float64                `json:"disk_average"`
	ResponseTimeAverage float64                `json:"response_time_average"`
	Alerts              []database.ActiveAlert `json:"alerts"`
}

// MonitorService is the inbound facade of the monitoring engine
type MonitorService struct {
	store    *database.Store
	monitor  Monitor
	tracker  *alerting.Tracker
	channels ChannelSupport
	now      func() time.Time

	defaultIntervalMs int64
}

// NewMonitorService creates a MonitorService. channels may be nil, in which
// case every channel type is accepted.
func NewMonitorService(store *database.Store, monitor Monitor, tracker *alerting.Tracker, channels ChannelSupport) *MonitorService {
	return &MonitorService{
		store:    store,
		monitor:  monitor,
		tracker:  tracker,
		channels: channels,
		now:      func() time.Time { return time.Now().UTC() },

		defaultIntervalMs: database.DefaultPollIntervalMs,
	}
}

// SetDefaultPollInterval sets the interval used for resources registered without one
func (s *MonitorService) SetDefaultPollInterval(ms int64) {
	if ms > 0 {
		s.defaultIntervalMs = ms
	}
}

// SetClock overrides the service clock (tests)
func (s *MonitorService) SetClock(now func() time.Time) {
	s.now = now
}

// ========== Resources ==========

// ValidateResource checks the type-specific required fields of a request
func ValidateResource(req ResourceRequest) error {
	fields := map[string]string{}
	if req.Endpoint == "" {
		fields["endpoint"] = "is required"
	}

	switch req.Type {
	case database.ResourceTypeServer:
		if req.Credentials.SSHKey == "" {
			fields["credentials.ssh_key"] = "is required"
		}
	case database.ResourceTypeDatabase:
		if req.Credentials.Username == "" {
			fields["credentials.username"] = "is required"
		}
		if req.Credentials.Password == "" {
			fields["credentials.password"] = "is required"
		}
	case database.ResourceTypeWebsite:
		if req.Endpoint != "" && !websiteEndpoint.MatchString(req.Endpoint) {
			fields["endpoint"] = "must start with http:// or https://"
		}
	case database.ResourceTypeAPI:
		if req.Credentials.APIKey == "" {
			fields["credentials.api_key"] = "is required"
		}
	default:
		fields["type"] = fmt.Sprintf("unsupported resource type %q", req.Type)
	}

	if req.PollIntervalMs < 0 {
		fields["poll_interval_ms"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// AddResource validates and persists a resource, then starts monitoring it.
// It returns the new resource ID.
func (s *MonitorService) AddResource(ctx context.Context, req ResourceRequest) (string, error) {
	if err := ValidateResource(req); err != nil {
		return "", err
	}

	interval := req.PollIntervalMs
	if interval == 0 {
		interval = s.defaultIntervalMs
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	resource := database.Resource{
		ID:             id,
		Type:           req.Type,
		Name:           req.Name,
		Endpoint:       req.Endpoint,
		Credentials:    req.Credentials,
		CustomerID:     req.CustomerID,
		PollIntervalMs: interval,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateResource(ctx, &resource); err != nil {
		return "", err
	}

	s.monitor.StartMonitoring(resource)
	log.Printf("MonitorService: registered %s resource %s for customer %s", resource.Type, resource.ID, resource.CustomerID)
	return resource.ID, nil
}

// GetResource returns one resource
func (s *MonitorService) GetResource(ctx context.Context, resourceID string) (*database.Resource, error) {
	return s.store.GetResource(ctx, resourceID)
}

// GetCustomerResources returns a customer's resources, newest first, each
// with its last hour of metrics and its current status.
func (s *MonitorService) GetCustomerResources(ctx context.Context, customerID string) ([]ResourceView, error) {
	resources, err := s.store.ListCustomerResources(ctx, customerID)
	if err != nil {
		return nil, err
	}

	views := make([]ResourceView, 0, len(resources))
	for _, r := range resources {
		metrics, err := s.GetResourceMetrics(ctx, r.ID, "1h")
		if err != nil {
			log.Printf("MonitorService: failed to load metrics for %s: %v", r.ID, err)
			metrics = []database.MetricsSample{}
		}
		views = append(views, ResourceView{
			Resource: r,
			Status:   s.tracker.ResourceStatus(ctx, r.ID),
			Metrics:  metrics,
		})
	}
	return views, nil
}

// RemoveResource deletes everything stored for a resource, then stops its
// timer. Once the timer is gone no lookup can find the resource again.
func (s *MonitorService) RemoveResource(ctx context.Context, resourceID string) error {
	err := s.store.DeleteResource(ctx, resourceID)
	s.monitor.StopMonitoring(resourceID)
	if err != nil {
		return err
	}
	log.Printf("MonitorService: removed resource %s", resourceID)
	return nil
}

// UpdatePollInterval changes a resource's polling interval and restarts its timer
func (s *MonitorService) UpdatePollInterval(ctx context.Context, resourceID string, intervalMs int64) error {
	if intervalMs <= 0 {
		return newValidationError("poll_interval_ms", "must be positive")
	}
	if err := s.store.UpdatePollInterval(ctx, resourceID, intervalMs); err != nil {
		return err
	}
	resource, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		return err
	}
	s.monitor.StartMonitoring(*resource)

	// a removal may have landed between the lookup and the restart
	if _, err := s.store.GetResource(ctx, resourceID); errors.Is(err, database.ErrNotFound) {
		s.monitor.StopMonitoring(resourceID)
		return err
	}
	return nil
}

// Monitors lists the running polling timers
func (s *MonitorService) Monitors() []scheduler.MonitorInfo {
	return s.monitor.Monitors()
}

// ========== Metrics ==========

// RangeDuration maps a metrics range to its duration. Unknown ranges fall
// back to one hour.
func RangeDuration(timeRange string) time.Duration {
	switch timeRange {
	case "24h":
		return 24 * time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// GetResourceMetrics returns the samples captured within the range
func (s *MonitorService) GetResourceMetrics(ctx context.Context, resourceID, timeRange string) ([]database.MetricsSample, error) {
	since := s.now().Add(-RangeDuration(timeRange))
	return s.store.History(ctx, resourceID, since)
}

// GetResourceStatus derives the current status of a resource
func (s *MonitorService) GetResourceStatus(ctx context.Context, resourceID string) alerting.Status {
	return s.tracker.ResourceStatus(ctx, resourceID)
}

// GetAggregatedMetrics summarizes a customer's resources. Averages are taken
// over the resources whose latest sample reports the metric.
func (s *MonitorService) GetAggregatedMetrics(ctx context.Context, customerID string) (*AggregatedMetrics, error) {
	resources, err := s.store.ListCustomerResources(ctx, customerID)
	if err != nil {
		return nil, err
	}

	agg := &AggregatedMetrics{
		TotalResources: len(resources),
		Alerts:         []database.ActiveAlert{},
	}
	var cpu, memory, disk, responseTime average

	for _, r := range resources {
		switch s.tracker.ResourceStatus(ctx, r.ID) {
		case alerting.StatusOnline:
			agg.OnlineResources++
		case alerting.StatusOffline:
			agg.OfflineResources++
		case alerting.StatusWarning:
			agg.WarningResources++
		case alerting.StatusCritical:
			agg.CriticalResources++
		default:
			agg.UnknownResources++
		}

		latest, err := s.store.LatestSample(ctx, r.ID)
		if err == nil {
			if latest.CPU != nil {
				cpu.add(latest.CPU.Load1)
			}
			if latest.Memory != nil {
				memory.add(latest.Memory.Percent)
			}
			if latest.Disk != nil {
				disk.add(latest.Disk.Percent)
			}
			if latest.ResponseTime != nil {
				responseTime.add(*latest.ResponseTime)
			}
		} else if !errors.Is(err, database.ErrNotFound) {
			log.Printf("MonitorService: failed to load latest sample for %s: %v", r.ID, err)
		}

		alerts, err := s.tracker.ActiveAlerts(ctx, r.ID)
		if err != nil {
			log.Printf("MonitorService: failed to load active alerts for %s: %v", r.ID, err)
			continue
		}
		agg.Alerts = append(agg.Alerts, alerts...)
	}

	agg.CPUAverage = cpu.value()
	agg.MemoryAverage = memory.value()
	agg.DiskAverage = disk.value()
	agg.ResponseTimeAverage = responseTime.value()
	return agg, nil
}

type average struct {
	sum   float64
	count int
}

func (a *average) add(v float64) {
	a.sum += v
	a.count++
}

func (a average) value() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// ========== Alerts ==========

// GetActiveAlerts returns the open alerts of a resource
func (s *MonitorService) GetActiveAlerts(ctx context.Context, resourceID string) ([]database.ActiveAlert, error) {
	return s.tracker.ActiveAlerts(ctx, resourceID)
}

// GetGlobalAlerts returns the most recent alerts across all resources
func (s *MonitorService) GetGlobalAlerts(ctx context.Context, limit int) ([]database.ActiveAlert, error) {
	if limit <= 0 {
		limit = DefaultGlobalAlertLimit
	}
	return s.store.ListGlobalAlerts(ctx, limit)
}

// ValidateAlertRule checks metric, condition and severity of a rule request
func ValidateAlertRule(req AlertRuleRequest) error {
	fields := map[string]string{}
	if !alerting.KnownMetric(req.Metric) {
		fields["metric"] = fmt.Sprintf("unknown metric %q", req.Metric)
	}
	switch req.Condition {
	case database.ConditionGreaterThan, database.ConditionLessThan, database.ConditionEquals:
	default:
		fields["condition"] = "must be one of: greater_than less_than equals"
	}
	switch req.Severity {
	case database.SeverityWarning, database.SeverityCritical:
	default:
		fields["severity"] = "must be one of: warning critical"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// AddAlertRule appends a rule to a resource's rule set
func (s *MonitorService) AddAlertRule(ctx context.Context, resourceID string, req AlertRuleRequest) (*database.AlertRule, error) {
	if err := ValidateAlertRule(req); err != nil {
		return nil, err
	}
	if _, err := s.store.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	rule := &database.AlertRule{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		Metric:     req.Metric,
		Condition:  req.Condition,
		Threshold:  req.Threshold,
		Severity:   req.Severity,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := s.store.AddAlertRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListAlertRules returns a resource's rules in insertion order
func (s *MonitorService) ListAlertRules(ctx context.Context, resourceID string) ([]database.AlertRule, error) {
	return s.store.ListAlertRules(ctx, resourceID)
}

// DeleteAlertRule removes a rule from a resource
func (s *MonitorService) DeleteAlertRule(ctx context.Context, resourceID, ruleID string) error {
	return s.store.DeleteAlertRule(ctx, resourceID, ruleID)
}

// ========== Notification channels ==========

// ValidateChannel checks that a channel carries its type's destination
func ValidateChannel(req ChannelRequest) error {
	fields := map[string]string{}
	switch req.Type {
	case database.ChannelTypeEmail:
		if req.Address == "" {
			fields["address"] = "is required"
		}
	case database.ChannelTypeSMS:
		if req.Phone == "" {
			fields["phone"] = "is required"
		}
	case database.ChannelTypeWebhook:
		if req.URL == "" {
			fields["url"] = "is required"
		} else if !websiteEndpoint.MatchString(req.URL) {
			fields["url"] = "must start with http:// or https://"
		}
	case database.ChannelTypeSlack:
		if req.WebhookURL == "" && req.Channel == "" {
			fields["webhook_url"] = "webhook_url or channel is required"
		}
	default:
		fields["type"] = fmt.Sprintf("unsupported channel type %q", req.Type)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// AddNotificationChannel appends a channel to a resource
func (s *MonitorService) AddNotificationChannel(ctx context.Context, resourceID string, req ChannelRequest) (*database.NotificationChannel, error) {
	if err := ValidateChannel(req); err != nil {
		return nil, err
	}
	if s.channels != nil && !s.channels.Supports(req.Type) {
		return nil, newValidationError("type", fmt.Sprintf("channel type %q is not configured", req.Type))
	}
	if _, err := s.store.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	ch := &database.NotificationChannel{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		Type:       req.Type,
		Address:    req.Address,
		Phone:      req.Phone,
		URL:        req.URL,
		WebhookURL: req.WebhookURL,
		Channel:    req.Channel,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := s.store.AddNotificationChannel(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// ListChannels returns a resource's notification channels in insertion order
func (s *MonitorService) ListChannels(ctx context.Context, resourceID string) ([]database.NotificationChannel, error) {
	return s.store.ListNotificationChannels(ctx, resourceID)
}
