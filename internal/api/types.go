package api

import (
	"github.com/astrafabric/monitor/internal/alerting"
	"github.com/astrafabric/monitor/internal/database"
)

// ========== Resource Types ==========

// CredentialsRequest carries the type-specific secrets of a resource
type CredentialsRequest struct {
	SSHKey   string `json:"ssh_key,omitempty" validate:"omitempty,max=16384"`
	Username string `json:"username,omitempty" validate:"omitempty,max=255"`
	Password string `json:"password,omitempty" validate:"omitempty,max=1024"`
	APIKey   string `json:"api_key,omitempty" validate:"omitempty,max=1024"`
}

// CreateResourceRequest is the request body for POST /api/resources.
// CustomerID is ignored when the caller presents a customer token.
type CreateResourceRequest struct {
	Type           string             `json:"type" validate:"required,oneof=server database website api"`
	Name           string             `json:"name,omitempty" validate:"omitempty,max=255"`
	Endpoint       string             `json:"endpoint" validate:"required,max=2048"`
	Credentials    CredentialsRequest `json:"credentials"`
	CustomerID     string             `json:"customer_id,omitempty" validate:"omitempty,max=128"`
	PollIntervalMs int64              `json:"poll_interval_ms,omitempty" validate:"omitempty,gt=0"`
}

// CreateResourceResponse is the response body for POST /api/resources.
type CreateResourceResponse struct {
	ID string `json:"id"`
}

// UpdateResourceRequest is the request body for PATCH /api/resources/{id}.
type UpdateResourceRequest struct {
	PollIntervalMs int64 `json:"poll_interval_ms" validate:"required,gt=0"`
}

// ResourceStatusResponse is the response body for GET /api/resources/{id}/status.
type ResourceStatusResponse struct {
	ResourceID string          `json:"resource_id"`
	Status     alerting.Status `json:"status"`
}

// ResourceMetricsResponse is the response body for GET /api/resources/{id}/metrics.
type ResourceMetricsResponse struct {
	ResourceID string                   `json:"resource_id"`
	Range      string                   `json:"range"`
	Metrics    []database.MetricsSample `json:"metrics"`
}

// ========== Alert Rule Types ==========

// CreateAlertRuleRequest is the request body for POST /api/resources/{id}/rules.
type CreateAlertRuleRequest struct {
	Metric    string   `json:"metric" validate:"required,max=64"`
	Condition string   `json:"condition" validate:"required,oneof=greater_than less_than equals"`
	Threshold *float64 `json:"threshold" validate:"required"`
	Severity  string   `json:"severity" validate:"required,oneof=warning critical"`
	Enabled   *bool    `json:"enabled,omitempty"`
}

// ========== Notification Channel Types ==========

// CreateChannelRequest is the request body for POST /api/resources/{id}/channels.
type CreateChannelRequest struct {
	Type       string `json:"type" validate:"required,oneof=email sms webhook slack"`
	Address    string `json:"address,omitempty" validate:"omitempty,email"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,e164"`
	URL        string `json:"url,omitempty" validate:"omitempty,http_url"`
	WebhookURL string `json:"webhook_url,omitempty" validate:"omitempty,http_url"`
	Channel    string `json:"channel,omitempty" validate:"omitempty,max=128"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// ========== Misc ==========

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Monitors int    `json:"monitors"`
}
