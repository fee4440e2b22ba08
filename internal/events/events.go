package events

import (
	"github.com/astrafabric/monitor/internal/database"
)

// Message types pushed to dashboard clients
const (
	TypeMetricsUpdate = "metrics-update"
	TypeAlert         = "alert"
)

// Bus subjects
const (
	SubjectMetricsPrefix = "monitoring.metrics."
	SubjectAlerts        = "monitoring.alerts"
)

// MetricsUpdate is emitted after every successful tick
type MetricsUpdate struct {
	Type       string                 `json:"type"`
	ResourceID string                 `json:"resource_id"`
	Metrics    database.MetricsSample `json:"metrics"`
}

// NewMetricsUpdate builds a metrics-update message
func NewMetricsUpdate(resourceID string, sample database.MetricsSample) MetricsUpdate {
	return MetricsUpdate{Type: TypeMetricsUpdate, ResourceID: resourceID, Metrics: sample}
}

// AlertEvent is emitted for every triggered alert
type AlertEvent struct {
	Type  string               `json:"type"`
	Alert database.ActiveAlert `json:"alert"`
}

// NewAlertEvent builds an alert message
func NewAlertEvent(alert database.ActiveAlert) AlertEvent {
	return AlertEvent{Type: TypeAlert, Alert: alert}
}

// MetricsSubject returns the bus subject for a resource's samples
func MetricsSubject(resourceID string) string {
	return SubjectMetricsPrefix + resourceID
}

// Broadcaster receives the live output of the scheduler. customerID is the
// owner of the resource the update belongs to.
type Broadcaster interface {
	PublishMetrics(customerID, resourceID string, sample database.MetricsSample)
	PublishAlert(customerID string, alert database.ActiveAlert)
}

// Fanout forwards to every broadcaster in order; nil entries are skipped
type Fanout []Broadcaster

func (f Fanout) PublishMetrics(customerID, resourceID string, sample database.MetricsSample) {
	for _, b := range f {
		if b != nil {
			b.PublishMetrics(customerID, resourceID, sample)
		}
	}
}

func (f Fanout) PublishAlert(customerID string, alert database.ActiveAlert) {
	for _, b := range f {
		if b != nil {
			b.PublishAlert(customerID, alert)
		}
	}
}
