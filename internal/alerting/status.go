package alerting

import (
	"time"

	"github.com/astrafabric/monitor/internal/database"
)

// Status is the derived health of a resource
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusOffline  Status = "offline"
	StatusCritical Status = "critical"
	StatusWarning  Status = "warning"
	StatusOnline   Status = "online"
)

// OfflineAfter is how old the latest sample may be before a resource is offline
const OfflineAfter = 5 * time.Minute

// DeriveStatus computes a resource status from its latest sample and active
// alerts. A nil latest sample means no sample is stored.
func DeriveStatus(latest *database.MetricsSample, alerts []database.ActiveAlert, now time.Time) Status {
	if latest == nil {
		return StatusUnknown
	}
	if now.Sub(latest.Timestamp) > OfflineAfter {
		return StatusOffline
	}

	warning := false
	for _, a := range alerts {
		switch a.Severity {
		case database.SeverityCritical:
			return StatusCritical
		case database.SeverityWarning:
			warning = true
		}
	}
	if warning {
		return StatusWarning
	}
	return StatusOnline
}
