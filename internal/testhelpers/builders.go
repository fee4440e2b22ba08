package testhelpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/astrafabric/monitor/internal/database"
)

// ========================================
// Resource Builder
// ========================================

// ResourceBuilder builds Resource instances for testing
type ResourceBuilder struct {
	resource database.Resource
}

// NewResourceBuilder creates a website resource builder with defaults
func NewResourceBuilder() *ResourceBuilder {
	return &ResourceBuilder{
		resource: database.Resource{
			ID:             "res-" + uuid.NewString(),
			Type:           database.ResourceTypeWebsite,
			Name:           "test-resource",
			Endpoint:       "https://example.com",
			CustomerID:     "customer-1",
			PollIntervalMs: 1000,
		},
	}
}

// WithID sets the resource ID
func (b *ResourceBuilder) WithID(id string) *ResourceBuilder {
	b.resource.ID = id
	return b
}

// WithType sets the resource type
func (b *ResourceBuilder) WithType(t database.ResourceType) *ResourceBuilder {
	b.resource.Type = t
	return b
}

// WithEndpoint sets the endpoint
func (b *ResourceBuilder) WithEndpoint(endpoint string) *ResourceBuilder {
	b.resource.Endpoint = endpoint
	return b
}

// WithCustomer sets the owning customer
func (b *ResourceBuilder) WithCustomer(customerID string) *ResourceBuilder {
	b.resource.CustomerID = customerID
	return b
}

// WithCredentials sets the credentials
func (b *ResourceBuilder) WithCredentials(c database.Credentials) *ResourceBuilder {
	b.resource.Credentials = c
	return b
}

// WithPollInterval sets the polling interval
func (b *ResourceBuilder) WithPollInterval(d time.Duration) *ResourceBuilder {
	b.resource.PollIntervalMs = d.Milliseconds()
	return b
}

// Build returns the constructed resource
func (b *ResourceBuilder) Build() database.Resource {
	return b.resource
}

// ========================================
// Alert Rule Builder
// ========================================

// AlertRuleBuilder builds AlertRule instances for testing
type AlertRuleBuilder struct {
	rule database.AlertRule
}

// NewAlertRuleBuilder creates an enabled warning rule on cpu > 1
func NewAlertRuleBuilder() *AlertRuleBuilder {
	return &AlertRuleBuilder{
		rule: database.AlertRule{
			ID:        uuid.NewString(),
			Metric:    "cpu",
			Condition: database.ConditionGreaterThan,
			Threshold: 1,
			Severity:  database.SeverityWarning,
			Enabled:   true,
		},
	}
}

// ForResource sets the resource the rule applies to
func (b *AlertRuleBuilder) ForResource(resourceID string) *AlertRuleBuilder {
	b.rule.ResourceID = resourceID
	return b
}

// WithMetric sets the metric
func (b *AlertRuleBuilder) WithMetric(metric string) *AlertRuleBuilder {
	b.rule.Metric = metric
	return b
}

// WithCondition sets condition and threshold
func (b *AlertRuleBuilder) WithCondition(cond database.Condition, threshold float64) *AlertRuleBuilder {
	b.rule.Condition = cond
	b.rule.Threshold = threshold
	return b
}

// WithSeverity sets the severity
func (b *AlertRuleBuilder) WithSeverity(sev database.Severity) *AlertRuleBuilder {
	b.rule.Severity = sev
	return b
}

// Disabled disables the rule
func (b *AlertRuleBuilder) Disabled() *AlertRuleBuilder {
	b.rule.Enabled = false
	return b
}

// Build returns the constructed rule
func (b *AlertRuleBuilder) Build() database.AlertRule {
	return b.rule
}

// ========================================
// Notification Channel Builder
// ========================================

// ChannelBuilder builds NotificationChannel instances for testing
type ChannelBuilder struct {
	channel database.NotificationChannel
}

// NewChannelBuilder creates an enabled webhook channel builder
func NewChannelBuilder() *ChannelBuilder {
	return &ChannelBuilder{
		channel: database.NotificationChannel{
			ID:      uuid.NewString(),
			Type:    database.ChannelTypeWebhook,
			URL:     "https://hooks.example.com/alerts",
			Enabled: true,
		},
	}
}

// ForResource sets the resource the channel belongs to
func (b *ChannelBuilder) ForResource(resourceID string) *ChannelBuilder {
	b.channel.ResourceID = resourceID
	return b
}

// WithType sets the channel type
func (b *ChannelBuilder) WithType(t database.ChannelType) *ChannelBuilder {
	b.channel.Type = t
	return b
}

// WithURL sets the webhook URL
func (b *ChannelBuilder) WithURL(url string) *ChannelBuilder {
	b.channel.URL = url
	return b
}

// Disabled disables the channel
func (b *ChannelBuilder) Disabled() *ChannelBuilder {
	b.channel.Enabled = false
	return b
}

// Build returns the constructed channel
func (b *ChannelBuilder) Build() database.NotificationChannel {
	return b.channel
}

// ========================================
// Sample Builder
// ========================================

// SampleBuilder builds MetricsSample instances for testing
type SampleBuilder struct {
	sample database.MetricsSample
}

// NewSampleBuilder creates an empty sample stamped now
func NewSampleBuilder() *SampleBuilder {
	return &SampleBuilder{sample: database.MetricsSample{Timestamp: time.Now().UTC()}}
}

// At sets the sample timestamp
func (b *SampleBuilder) At(ts time.Time) *SampleBuilder {
	b.sample.Timestamp = ts
	return b
}

// WithStatusCode sets the HTTP status code
func (b *SampleBuilder) WithStatusCode(code int) *SampleBuilder {
	b.sample.StatusCode = &code
	return b
}

// WithResponseTime sets the response time in milliseconds
func (b *SampleBuilder) WithResponseTime(ms float64) *SampleBuilder {
	b.sample.ResponseTime = &ms
	return b
}

// WithCPU sets the load averages
func (b *SampleBuilder) WithCPU(load1 float64) *SampleBuilder {
	b.sample.CPU = &database.CPUStats{Load1: load1, Load5: load1, Load15: load1}
	return b
}

// WithMemory sets memory usage percent
func (b *SampleBuilder) WithMemory(percent float64) *SampleBuilder {
	b.sample.Memory = &database.UsageStats{Total: 100, Used: percent, Free: 100 - percent, Percent: percent}
	return b
}

// WithDisk sets disk usage percent
func (b *SampleBuilder) WithDisk(percent float64) *SampleBuilder {
	b.sample.Disk = &database.UsageStats{Total: 100, Used: percent, Free: 100 - percent, Percent: percent}
	return b
}

// Build returns the constructed sample
func (b *SampleBuilder) Build() database.MetricsSample {
	return b.sample
}

// BuildPtr returns a pointer to the constructed sample
func (b *SampleBuilder) BuildPtr() *database.MetricsSample {
	s := b.sample
	return &s
}
