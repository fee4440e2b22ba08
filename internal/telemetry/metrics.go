package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tick outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the monitor's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticksTotal         *prometheus.CounterVec
	collectDuration    *prometheus.HistogramVec
	notificationsTotal *prometheus.CounterVec
	alertsTriggered    *prometheus.CounterVec
	activeMonitors     prometheus.Gauge
	dashboardClients   prometheus.Gauge
	purgedRows         prometheus.Counter
}

// New creates the instruments on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ticksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Monitoring ticks by resource type and outcome",
		}, []string{"resource_type", "outcome"}),
		collectDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "monitor",
			Subsystem: "collector",
			Name:      "duration_seconds",
			Help:      "Time spent collecting one sample",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"resource_type"}),
		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Notification attempts by channel type and outcome",
		}, []string{"channel_type", "outcome"}),
		alertsTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Alerts triggered by metric and severity",
		}, []string{"metric", "severity"}),
		activeMonitors: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "monitor",
			Subsystem: "scheduler",
			Name:      "active_monitors",
			Help:      "Resources currently being polled",
		}),
		dashboardClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "monitor",
			Subsystem: "dashboard",
			Name:      "clients",
			Help:      "Connected dashboard websocket clients",
		}),
		purgedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "monitor",
			Subsystem: "retention",
			Name:      "purged_rows_total",
			Help:      "Expired rows removed by the retention job",
		}),
	}
}

// Registry returns the registry the instruments are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTick(resourceType, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(resourceType, outcome).Inc()
	m.collectDuration.WithLabelValues(resourceType).Observe(took.Seconds())
}

func (m *Metrics) ObserveNotification(channelType string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.notificationsTotal.WithLabelValues(channelType, outcome).Inc()
}

func (m *Metrics) AlertTriggered(metric, severity string) {
	if m == nil {
		return
	}
	m.alertsTriggered.WithLabelValues(metric, severity).Inc()
}

func (m *Metrics) SetActiveMonitors(n int) {
	if m == nil {
		return
	}
	m.activeMonitors.Set(float64(n))
}

func (m *Metrics) SetDashboardClients(n int) {
	if m == nil {
		return
	}
	m.dashboardClients.Set(float64(n))
}

func (m *Metrics) AddPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purgedRows.Add(float64(n))
}
