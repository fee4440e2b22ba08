package alerting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/astrafabric/monitor/internal/database"
)

// AlertStore is the persistence the tracker needs
type AlertStore interface {
	UpsertActiveAlert(ctx context.Context, alert database.ActiveAlert) error
	AppendGlobalAlert(ctx context.Context, alert database.ActiveAlert) error
	DeleteActiveAlerts(ctx context.Context, resourceID, metric string) error
	ListActiveAlerts(ctx context.Context, resourceID string) ([]database.ActiveAlert, error)
	LatestSample(ctx context.Context, resourceID string) (*database.MetricsSample, error)
}

// Tracker maintains active alerts per resource and the global alert feed
type Tracker struct {
	store AlertStore
	now   func() time.Time
}

// NewTracker creates a tracker on top of a store
func NewTracker(store AlertStore) *Tracker {
	return &Tracker{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the tracker clock (tests)
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// StoreActiveAlert records an alert for its (metric, condition), replacing
// any previous entry, and appends it to the global feed.
func (t *Tracker) StoreActiveAlert(ctx context.Context, alert database.ActiveAlert) error {
	if err := t.store.UpsertActiveAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to store active alert: %w", err)
	}
	if err := t.store.AppendGlobalAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to append global alert: %w", err)
	}
	return nil
}

// ClearActiveAlert removes every active alert of a resource for metric,
// whatever its condition.
func (t *Tracker) ClearActiveAlert(ctx context.Context, resourceID, metric string) error {
	if err := t.store.DeleteActiveAlerts(ctx, resourceID, metric); err != nil {
		return fmt.Errorf("failed to clear active alert: %w", err)
	}
	return nil
}

// ActiveAlerts returns the active alerts of a resource
func (t *Tracker) ActiveAlerts(ctx context.Context, resourceID string) ([]database.ActiveAlert, error) {
	return t.store.ListActiveAlerts(ctx, resourceID)
}

// Apply stores triggered decisions and clears the others. Failures are
// logged and the remaining decisions are still applied; the triggered
// alerts are returned in decision order.
func (t *Tracker) Apply(ctx context.Context, resourceID string, decisions []Decision) []database.ActiveAlert {
	triggered := make([]database.ActiveAlert, 0)
	for _, d := range decisions {
		if d.Triggered && d.Alert != nil {
			if err := t.StoreActiveAlert(ctx, *d.Alert); err != nil {
				log.Printf("Tracker: %s/%s: %v", resourceID, d.Metric, err)
				continue
			}
			triggered = append(triggered, *d.Alert)
			continue
		}
		if err := t.ClearActiveAlert(ctx, resourceID, d.Metric); err != nil {
			log.Printf("Tracker: %s/%s: %v", resourceID, d.Metric, err)
		}
	}
	return triggered
}

// ResourceStatus derives the current status of a resource. Storage failures
// are logged and reported as unknown.
func (t *Tracker) ResourceStatus(ctx context.Context, resourceID string) Status {
	latest, err := t.store.LatestSample(ctx, resourceID)
	if errors.Is(err, database.ErrNotFound) {
		return StatusUnknown
	}
	if err != nil {
		log.Printf("Tracker: failed to read latest sample for %s: %v", resourceID, err)
		return StatusUnknown
	}

	alerts, err := t.store.ListActiveAlerts(ctx, resourceID)
	if err != nil {
		log.Printf("Tracker: failed to read active alerts for %s: %v", resourceID, err)
		return StatusUnknown
	}
	return DeriveStatus(latest, alerts, t.now())
}
