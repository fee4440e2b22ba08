package alerting

import (
	"time"

	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/utils"
)

// Metric names understood by alert rules
const (
	MetricCPU          = "cpu"
	MetricMemory       = "memory"
	MetricDisk         = "disk"
	MetricResponseTime = "responseTime"
	MetricStatusCode   = "statusCode"
	MetricConnections  = "connections"
	MetricThreads      = "threads"
	MetricSlowQueries  = "slowQueries"

	// MetricMonitoring is the metric of synthetic alerts raised when collection fails
	MetricMonitoring = "monitoring"
)

// extractor reads a rule metric from a sample
type extractor func(s *database.MetricsSample) float64

var extractors = map[string]extractor{
	MetricCPU: func(s *database.MetricsSample) float64 {
		if s.CPU == nil {
			return 0
		}
		return s.CPU.Load1
	},
	MetricMemory: func(s *database.MetricsSample) float64 {
		if s.Memory == nil {
			return 0
		}
		return s.Memory.Percent
	},
	MetricDisk: func(s *database.MetricsSample) float64 {
		if s.Disk == nil {
			return 0
		}
		return s.Disk.Percent
	},
	MetricResponseTime: func(s *database.MetricsSample) float64 {
		if s.ResponseTime == nil {
			return 0
		}
		return *s.ResponseTime
	},
	MetricStatusCode: func(s *database.MetricsSample) float64 {
		if s.StatusCode == nil || *s.StatusCode == 0 {
			return 200
		}
		return float64(*s.StatusCode)
	},
	MetricConnections: func(s *database.MetricsSample) float64 { return int64OrZero(s.Connections) },
	MetricThreads:     func(s *database.MetricsSample) float64 { return int64OrZero(s.Threads) },
	MetricSlowQueries: func(s *database.MetricsSample) float64 { return int64OrZero(s.SlowQueries) },
}

func int64OrZero(v *int64) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

// KnownMetric reports whether rules on metric can be evaluated
func KnownMetric(metric string) bool {
	_, ok := extractors[metric]
	return ok
}

// ExtractMetric returns the value a rule on metric compares against
func ExtractMetric(metric string, s *database.MetricsSample) (float64, bool) {
	fn, ok := extractors[metric]
	if !ok || s == nil {
		return 0, false
	}
	return fn(s), true
}

// Decision is the outcome of evaluating one rule.
// When Triggered is false the tracker clears the rule's metric.
type Decision struct {
	RuleID    string
	Metric    string
	Triggered bool
	Alert     *database.ActiveAlert
}

// Evaluate applies every enabled rule to a sample, in rule order.
// Rules on unknown metrics produce no decision.
func Evaluate(resourceID string, sample *database.MetricsSample, rules []database.AlertRule, now time.Time) []Decision {
	decisions := make([]Decision, 0, len(rules))
	if sample == nil {
		return decisions
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		value, ok := ExtractMetric(rule.Metric, sample)
		if !ok {
			continue
		}

		if !compare(rule.Condition, value, rule.Threshold) {
			decisions = append(decisions, Decision{RuleID: rule.ID, Metric: rule.Metric})
			continue
		}

		decisions = append(decisions, Decision{
			RuleID:    rule.ID,
			Metric:    rule.Metric,
			Triggered: true,
			Alert: &database.ActiveAlert{
				ResourceID: resourceID,
				Metric:     rule.Metric,
				Condition:  rule.Condition,
				Value:      database.NumericValue(value),
				Threshold:  database.NumericValue(rule.Threshold),
				Severity:   rule.Severity,
				Timestamp:  now,
			},
		})
	}
	return decisions
}

// compare never triggers for an unknown condition
func compare(cond database.Condition, value, threshold float64) bool {
	switch cond {
	case database.ConditionGreaterThan:
		return value > threshold
	case database.ConditionLessThan:
		return value < threshold
	case database.ConditionEquals:
		return value == threshold
	default:
		return false
	}
}

const maxFailureMessage = 500

// MonitoringFailure builds the synthetic alert stored when a tick fails
func MonitoringFailure(resourceID string, err error, now time.Time) database.ActiveAlert {
	return database.ActiveAlert{
		ResourceID: resourceID,
		Metric:     MetricMonitoring,
		Condition:  database.ConditionError,
		Value:      database.TextValue("error"),
		Threshold:  database.TextValue("none"),
		Severity:   database.SeverityCritical,
		Timestamp:  now,
		Message:    utils.TruncateText(err.Error(), maxFailureMessage),
	}
}
