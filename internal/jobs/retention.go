package jobs

import (
	"context"
	"log"
	"time"

	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/telemetry"
)

// Purger removes expired monitoring state
type Purger interface {
	PurgeExpired(ctx context.Context) (database.PurgeStats, error)
}

// RetentionJob periodically deletes rows whose time-to-live has passed.
// Reads already hide expired rows, so the job only reclaims space.
type RetentionJob struct {
	store   Purger
	metrics *telemetry.Metrics
	timeout time.Duration
}

// NewRetentionJob creates a new retention job. metrics may be nil.
func NewRetentionJob(store Purger, metrics *telemetry.Metrics) *RetentionJob {
	return &RetentionJob{
		store:   store,
		metrics: metrics,
		timeout: time.Minute,
	}
}

// Purge runs one retention pass
func (j *RetentionJob) Purge() (database.PurgeStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	stats, err := j.store.PurgeExpired(ctx)
	j.metrics.AddPurged(stats.Total())
	return stats, err
}

// Start begins the periodic purge
func (j *RetentionJob) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := j.Purge()
			if err != nil {
				log.Printf("Retention: purge failed: %v", err)
			} else if stats.Total() > 0 {
				log.Printf("Retention: removed %d latest samples, %d active alerts, %d feed entries, %d history rows (%d series)",
					stats.LatestSamples, stats.ActiveAlerts, stats.GlobalAlerts, stats.MetricRecords, stats.InactiveSeries)
			}
		case <-stop:
			log.Println("Retention: stopped")
			return
		}
	}
}
