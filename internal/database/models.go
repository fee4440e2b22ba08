package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ResourceType identifies the kind of monitored resource
type ResourceType string

const (
	ResourceTypeServer   ResourceType = "server"
	ResourceTypeDatabase ResourceType = "database"
	ResourceTypeWebsite  ResourceType = "website"
	ResourceTypeAPI      ResourceType = "api"
)

// AllResourceTypes returns the closed set of supported resource types
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceTypeServer,
		ResourceTypeDatabase,
		ResourceTypeWebsite,
		ResourceTypeAPI,
	}
}

// Valid reports whether t is one of the supported resource types
func (t ResourceType) Valid() bool {
	for _, rt := range AllResourceTypes() {
		if rt == t {
			return true
		}
	}
	return false
}

// DefaultPollIntervalMs is used when a resource is registered without an interval
const DefaultPollIntervalMs int64 = 60000

// Credentials holds the type-specific secrets of a resource.
// Stored as a JSON text column.
type Credentials struct {
	SSHKey   string `json:"ssh_key,omitempty" yaml:"ssh_key"`
	Username string `json:"username,omitempty" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key"`
}

// Scan implements the sql.Scanner interface
func (c *Credentials) Scan(value interface{}) error {
	return scanJSON(value, c)
}

// Value implements the driver.Valuer interface
func (c Credentials) Value() (driver.Value, error) {
	return valueJSON(c)
}

// Resource is an external system under monitoring
type Resource struct {
	ID             string       `gorm:"primaryKey;size:64" json:"id"`
	Type           ResourceType `gorm:"type:varchar(20);not null;index" json:"type"`
	Name           string       `gorm:"size:255" json:"name"`
	Endpoint       string       `gorm:"type:text;not null" json:"endpoint"`
	Credentials    Credentials  `gorm:"type:text" json:"-"`
	CustomerID     string       `gorm:"size:128;not null;index" json:"customer_id"`
	PollIntervalMs int64        `gorm:"not null" json:"poll_interval_ms"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PollInterval returns the polling interval, falling back to the default
func (r *Resource) PollInterval() time.Duration {
	ms := r.PollIntervalMs
	if ms <= 0 {
		ms = DefaultPollIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

// CustomerResource is one entry of a customer's resource index
type CustomerResource struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID string    `gorm:"size:128;not null;index" json:"customer_id"`
	ResourceID string    `gorm:"size:64;not null;index" json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CPUStats holds load averages of a server
type CPUStats struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// UsageStats holds capacity usage for memory or disk
type UsageStats struct {
	Total   float64 `json:"total"`
	Used    float64 `json:"used"`
	Free    float64 `json:"free"`
	Percent float64 `json:"percent"`
}

// MetricsSample is one point-in-time reading of a resource.
// Which fields are set depends on the resource type.
type MetricsSample struct {
	// server
	CPU    *CPUStats   `json:"cpu,omitempty"`
	Memory *UsageStats `json:"memory,omitempty"`
	Disk   *UsageStats `json:"disk,omitempty"`

	// database
	Connections *int64 `json:"connections,omitempty"`
	Threads     *int64 `json:"threads,omitempty"`
	Queries     *int64 `json:"queries,omitempty"`
	SlowQueries *int64 `json:"slow_queries,omitempty"`
	Uptime      *int64 `json:"uptime,omitempty"`

	// website and api
	ResponseTime *float64 `json:"response_time,omitempty"` // milliseconds
	StatusCode   *int     `json:"status_code,omitempty"`
	Size         *int64   `json:"size,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Scan implements the sql.Scanner interface
func (m *MetricsSample) Scan(value interface{}) error {
	return scanJSON(value, m)
}

// Value implements the driver.Valuer interface
func (m MetricsSample) Value() (driver.Value, error) {
	return valueJSON(m)
}

// MetricRecord is one entry of a resource's metrics history
type MetricRecord struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	ResourceID string        `gorm:"size:64;not null;index" json:"resource_id"`
	Sample     MetricsSample `gorm:"type:text;not null" json:"sample"`
	CapturedAt time.Time     `gorm:"not null;index" json:"captured_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

// LatestSample is the latest-sample slot of a resource
type LatestSample struct {
	ResourceID string        `gorm:"primaryKey;size:64" json:"resource_id"`
	Sample     MetricsSample `gorm:"type:text;not null" json:"sample"`
	ExpiresAt  time.Time     `gorm:"not null;index" json:"expires_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Condition is the comparison an alert rule applies
type Condition string

const (
	ConditionGreaterThan Condition = "greater_than"
	ConditionLessThan    Condition = "less_than"
	ConditionEquals      Condition = "equals"

	// ConditionError marks synthetic alerts raised when collection fails
	ConditionError Condition = "error"
)

// Severity of an alert
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertRule is a customer-defined threshold on one metric of a resource
type AlertRule struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	ResourceID string    `gorm:"size:64;not null;index" json:"resource_id"`
	Position   int       `gorm:"not null" json:"-"`
	Metric     string    `gorm:"size:64;not null" json:"metric"`
	Condition  Condition `gorm:"type:varchar(20);not null" json:"condition"`
	Threshold  float64   `gorm:"not null" json:"threshold"`
	Severity   Severity  `gorm:"type:varchar(20);not null" json:"severity"`
	Enabled    bool      `gorm:"not null" json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// AlertValue is either a numeric reading or a text marker such as "error".
// It is stored as text and encoded as a JSON number or string.
type AlertValue struct {
	Number float64
	Text   string
}

// NumericValue wraps a numeric reading
func NumericValue(v float64) AlertValue {
	return AlertValue{Number: v}
}

// TextValue wraps a text marker
func TextValue(s string) AlertValue {
	return AlertValue{Text: s}
}

// IsNumeric reports whether the value holds a number
func (v AlertValue) IsNumeric() bool {
	return v.Text == ""
}

func (v AlertValue) String() string {
	if !v.IsNumeric() {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler
func (v AlertValue) MarshalJSON() ([]byte, error) {
	if !v.IsNumeric() {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Number)
}

// UnmarshalJSON implements json.Unmarshaler
func (v *AlertValue) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumericValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("alert value must be a number or string: %w", err)
	}
	*v = parseAlertValue(s)
	return nil
}

// Scan implements the sql.Scanner interface
func (v *AlertValue) Scan(value interface{}) error {
	switch t := value.(type) {
	case nil:
		*v = AlertValue{}
	case []byte:
		*v = parseAlertValue(string(t))
	case string:
		*v = parseAlertValue(t)
	case int64:
		*v = NumericValue(float64(t))
	case float64:
		*v = NumericValue(t)
	default:
		return fmt.Errorf("unsupported alert value type %T", value)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (v AlertValue) Value() (driver.Value, error) {
	return v.String(), nil
}

func parseAlertValue(s string) AlertValue {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return NumericValue(n)
	}
	return TextValue(s)
}

// ActiveAlert is a currently unresolved rule violation.
// At most one exists per (resource, metric, condition).
type ActiveAlert struct {
	ID         uint       `gorm:"primaryKey" json:"-"`
	ResourceID string     `gorm:"size:64;not null;uniqueIndex:idx_active_alert_key" json:"resource_id"`
	Metric     string     `gorm:"size:64;not null;uniqueIndex:idx_active_alert_key" json:"metric"`
	Condition  Condition  `gorm:"type:varchar(20);not null;uniqueIndex:idx_active_alert_key" json:"condition"`
	Value      AlertValue `gorm:"type:varchar(64)" json:"value"`
	Threshold  AlertValue `gorm:"type:varchar(64)" json:"threshold"`
	Severity   Severity   `gorm:"type:varchar(20);not null" json:"severity"`
	Timestamp  time.Time  `gorm:"not null" json:"timestamp"`
	Message    string     `gorm:"type:text" json:"message,omitempty"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"-"`
}

// GlobalAlert is one entry of the append-only alert feed
type GlobalAlert struct {
	ID         uint       `gorm:"primaryKey"`
	ResourceID string     `gorm:"size:64;not null;index"`
	Metric     string     `gorm:"size:64;not null"`
	Condition  Condition  `gorm:"type:varchar(20);not null"`
	Value      AlertValue `gorm:"type:varchar(64)"`
	Threshold  AlertValue `gorm:"type:varchar(64)"`
	Severity   Severity   `gorm:"type:varchar(20);not null"`
	Timestamp  time.Time  `gorm:"not null"`
	Message    string     `gorm:"type:text"`
	ExpiresAt  time.Time  `gorm:"not null;index"`
	CreatedAt  time.Time
}

func newGlobalAlert(a ActiveAlert, expiresAt time.Time) GlobalAlert {
	return GlobalAlert{
		ResourceID: a.ResourceID,
		Metric:     a.Metric,
		Condition:  a.Condition,
		Value:      a.Value,
		Threshold:  a.Threshold,
		Severity:   a.Severity,
		Timestamp:  a.Timestamp,
		Message:    a.Message,
		ExpiresAt:  expiresAt,
	}
}

// Alert returns the feed entry as an alert value
func (g GlobalAlert) Alert() ActiveAlert {
	return ActiveAlert{
		ResourceID: g.ResourceID,
		Metric:     g.Metric,
		Condition:  g.Condition,
		Value:      g.Value,
		Threshold:  g.Threshold,
		Severity:   g.Severity,
		Timestamp:  g.Timestamp,
		Message:    g.Message,
	}
}

// ChannelType identifies a notification transport
type ChannelType string

const (
	ChannelTypeEmail   ChannelType = "email"
	ChannelTypeSMS     ChannelType = "sms"
	ChannelTypeWebhook ChannelType = "webhook"
	ChannelTypeSlack   ChannelType = "slack"
)

// AllChannelTypes returns the closed set of supported channel types
func AllChannelTypes() []ChannelType {
	return []ChannelType{ChannelTypeEmail, ChannelTypeSMS, ChannelTypeWebhook, ChannelTypeSlack}
}

// NotificationChannel is a delivery target for a resource's alerts
type NotificationChannel struct {
	ID         string      `gorm:"primaryKey;size:64" json:"id"`
	ResourceID string      `gorm:"size:64;not null;index" json:"resource_id"`
	Position   int         `gorm:"not null" json:"-"`
	Type       ChannelType `gorm:"type:varchar(20);not null" json:"type"`
	Address    string      `gorm:"size:255" json:"address,omitempty"`      // email
	Phone      string      `gorm:"size:32" json:"phone,omitempty"`         // sms
	URL        string      `gorm:"type:text" json:"url,omitempty"`         // webhook
	WebhookURL string      `gorm:"type:text" json:"webhook_url,omitempty"` // slack
	Channel    string      `gorm:"size:128" json:"channel,omitempty"`      // slack via bot token
	Enabled    bool        `gorm:"not null" json:"enabled"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (Resource) TableName() string {
	return "resources"
}

func (CustomerResource) TableName() string {
	return "customer_resources"
}

func (MetricRecord) TableName() string {
	return "metric_records"
}

func (LatestSample) TableName() string {
	return "latest_samples"
}

func (AlertRule) TableName() string {
	return "alert_rules"
}

func (ActiveAlert) TableName() string {
	return "active_alerts"
}

func (GlobalAlert) TableName() string {
	return "global_alerts"
}

func (NotificationChannel) TableName() string {
	return "notification_channels"
}

func scanJSON(value interface{}, dst interface{}) error {
	switch t := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(t, dst)
	case string:
		return json.Unmarshal([]byte(t), dst)
	default:
		return errors.New("type assertion to []byte failed")
	}
}

func valueJSON(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
