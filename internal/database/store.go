package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Retention limits of the metric store
const (
	HistoryLimit   = 1000
	HistoryTTL     = 7 * 24 * time.Hour
	LatestTTL      = 24 * time.Hour
	ActiveAlertTTL = 24 * time.Hour
	GlobalAlertTTL = 7 * 24 * time.Hour
)

// ErrNotFound is returned when a record does not exist or has expired
var ErrNotFound = errors.New("record not found")

// StorageError reports that the persistence layer failed
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return &StorageError{Op: op, Err: err}
}

// Store is the durable owner of resources, metrics, rules, alerts and channels
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore creates a store on top of an open connection
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store clock (tests)
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// DB returns the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ========== Resources ==========

// CreateResource persists a resource and appends it to its customer's index
func (s *Store) CreateResource(ctx context.Context, r *Resource) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return tx.Create(&CustomerResource{CustomerID: r.CustomerID, ResourceID: r.ID}).Error
	})
	return storageErr("create resource", err)
}

// GetResource returns a resource by ID
func (s *Store) GetResource(ctx context.Context, id string) (*Resource, error) {
	var r Resource
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, storageErr("get resource", err)
	}
	return &r, nil
}

// ListResources returns every resource
func (s *Store) ListResources(ctx context.Context) ([]Resource, error) {
	var resources []Resource
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&resources).Error; err != nil {
		return nil, storageErr("list resources", err)
	}
	return resources, nil
}

// ListCustomerResources returns a customer's resources, newest first
func (s *Store) ListCustomerResources(ctx context.Context, customerID string) ([]Resource, error) {
	var index []CustomerResource
	if err := s.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("id desc").Find(&index).Error; err != nil {
		return nil, storageErr("list customer resources", err)
	}
	if len(index) == 0 {
		return []Resource{}, nil
	}

	ids := make([]string, 0, len(index))
	for _, entry := range index {
		ids = append(ids, entry.ResourceID)
	}
	var found []Resource
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, storageErr("list customer resources", err)
	}

	byID := make(map[string]Resource, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	resources := make([]Resource, 0, len(found))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			resources = append(resources, r)
		}
	}
	return resources, nil
}

// UpdatePollInterval changes the polling interval of a resource
func (s *Store) UpdatePollInterval(ctx context.Context, id string, intervalMs int64) error {
	result := s.db.WithContext(ctx).Model(&Resource{}).Where("id = ?", id).Update("poll_interval_ms", intervalMs)
	if result.Error != nil {
		return storageErr("update poll interval", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteResource removes a resource and everything stored for it
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&Resource{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for _, model := range []interface{}{
			&CustomerResource{},
			&MetricRecord{},
			&LatestSample{},
			&AlertRule{},
			&ActiveAlert{},
			&NotificationChannel{},
		} {
			if err := tx.Where("resource_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return storageErr("delete resource", err)
}

// ========== Metrics ==========

// AppendSample appends a sample to the resource history, evicting the oldest
// entries beyond HistoryLimit, and refreshes the latest-sample slot.
func (s *Store) AppendSample(ctx context.Context, resourceID string, sample MetricsSample) error {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &MetricRecord{
			ResourceID: resourceID,
			Sample:     sample,
			CapturedAt: sample.Timestamp,
			CreatedAt:  now,
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		keep := tx.Model(&MetricRecord{}).Select("id").
			Where("resource_id = ?", resourceID).
			Order("id desc").
			Limit(HistoryLimit)
		if err := tx.Where("resource_id = ? AND id NOT IN (?)", resourceID, keep).Delete(&MetricRecord{}).Error; err != nil {
			return err
		}

		latest := &LatestSample{
			ResourceID: resourceID,
			Sample:     sample,
			ExpiresAt:  now.Add(LatestTTL),
			UpdatedAt:  now,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resource_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"sample", "expires_at", "updated_at"}),
		}).Create(latest).Error
	})
	return storageErr("append sample", err)
}

// History returns samples captured at or after since, oldest first.
// A history without appends for HistoryTTL is treated as expired.
func (s *Store) History(ctx context.Context, resourceID string, since time.Time) ([]MetricsSample, error) {
	db := s.db.WithContext(ctx)

	var newest MetricRecord
	err := db.Where("resource_id = ?", resourceID).Order("id desc").First(&newest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []MetricsSample{}, nil
	}
	if err != nil {
		return nil, storageErr("history", err)
	}
	if s.now().Sub(newest.CreatedAt) > HistoryTTL {
		return []MetricsSample{}, nil
	}

	var records []MetricRecord
	if err := db.Where("resource_id = ? AND captured_at >= ?", resourceID, since).Order("id asc").Find(&records).Error; err != nil {
		return nil, storageErr("history", err)
	}
	samples := make([]MetricsSample, 0, len(records))
	for _, rec := range records {
		samples = append(samples, rec.Sample)
	}
	return samples, nil
}

// HistoryLen returns the number of stored samples for a resource
func (s *Store) HistoryLen(ctx context.Context, resourceID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&MetricRecord{}).Where("resource_id = ?", resourceID).Count(&count).Error; err != nil {
		return 0, storageErr("history length", err)
	}
	return count, nil
}

// LatestSample returns the latest sample of a resource or ErrNotFound when
// none was stored or it has expired.
func (s *Store) LatestSample(ctx context.Context, resourceID string) (*MetricsSample, error) {
	var latest LatestSample
	err := s.db.WithContext(ctx).
		Where("resource_id = ? AND expires_at > ?", resourceID, s.now()).
		First(&latest).Error
	if err != nil {
		return nil, storageErr("latest sample", err)
	}
	return &latest.Sample, nil
}

// ========== Alert rules ==========

// AddAlertRule appends a rule to the resource's ordered rule set
func (s *Store) AddAlertRule(ctx context.Context, rule *AlertRule) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := nextPosition(tx, &AlertRule{}, rule.ResourceID)
		if err != nil {
			return err
		}
		rule.Position = pos
		return tx.Create(rule).Error
	})
	return storageErr("add alert rule", err)
}

// nextPosition returns one past the highest position used by the
// resource's rows in model. Positions are never reused after a delete.
func nextPosition(tx *gorm.DB, model interface{}, resourceID string) (int, error) {
	var top int
	row := tx.Model(model).Where("resource_id = ?", resourceID).Select("COALESCE(MAX(position), -1)").Row()
	if err := row.Scan(&top); err != nil {
		return 0, err
	}
	return top + 1, nil
}

// ListAlertRules returns a resource's rules in insertion order
func (s *Store) ListAlertRules(ctx context.Context, resourceID string) ([]AlertRule, error) {
	var rules []AlertRule
	if err := s.db.WithContext(ctx).Where("resource_id = ?", resourceID).Order("position asc, created_at asc").Find(&rules).Error; err != nil {
		return nil, storageErr("list alert rules", err)
	}
	return rules, nil
}

// DeleteAlertRule removes one rule of a resource
func (s *Store) DeleteAlertRule(ctx context.Context, resourceID, ruleID string) error {
	result := s.db.WithContext(ctx).Where("resource_id = ? AND id = ?", resourceID, ruleID).Delete(&AlertRule{})
	if result.Error != nil {
		return storageErr("delete alert rule", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ========== Notification channels ==========

// AddNotificationChannel appends a channel to the resource's channel list
func (s *Store) AddNotificationChannel(ctx context.Context, ch *NotificationChannel) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos, err := nextPosition(tx, &NotificationChannel{}, ch.ResourceID)
		if err != nil {
			return err
		}
		ch.Position = pos
		return tx.Create(ch).Error
	})
	return storageErr("add notification channel", err)
}

// ListNotificationChannels returns a resource's channels in insertion order
func (s *Store) ListNotificationChannels(ctx context.Context, resourceID string) ([]NotificationChannel, error) {
	var channels []NotificationChannel
	if err := s.db.WithContext(ctx).Where("resource_id = ?", resourceID).Order("position asc, created_at asc").Find(&channels).Error; err != nil {
		return nil, storageErr("list notification channels", err)
	}
	return channels, nil
}

// ========== Active alerts ==========

// UpsertActiveAlert stores an alert, replacing the entry with the same
// (resource, metric, condition) in place or appending a new one.
func (s *Store) UpsertActiveAlert(ctx context.Context, alert ActiveAlert) error {
	alert.ID = 0
	alert.ExpiresAt = s.now().Add(ActiveAlertTTL)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "resource_id"}, {Name: "metric"}, {Name: "condition"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value", "threshold", "severity", "timestamp", "message", "expires_at",
		}),
	}).Create(&alert).Error
	return storageErr("upsert active alert", err)
}

// DeleteActiveAlerts removes every active alert of a resource for a metric
func (s *Store) DeleteActiveAlerts(ctx context.Context, resourceID, metric string) error {
	err := s.db.WithContext(ctx).Where("resource_id = ? AND metric = ?", resourceID, metric).Delete(&ActiveAlert{}).Error
	return storageErr("delete active alerts", err)
}

// ListActiveAlerts returns the unexpired active alerts of a resource
func (s *Store) ListActiveAlerts(ctx context.Context, resourceID string) ([]ActiveAlert, error) {
	alerts := []ActiveAlert{}
	err := s.db.WithContext(ctx).
		Where("resource_id = ? AND expires_at > ?", resourceID, s.now()).
		Order("id asc").
		Find(&alerts).Error
	if err != nil {
		return nil, storageErr("list active alerts", err)
	}
	return alerts, nil
}

// ========== Global alert feed ==========

// AppendGlobalAlert adds an alert to the global feed
func (s *Store) AppendGlobalAlert(ctx context.Context, alert ActiveAlert) error {
	entry := newGlobalAlert(alert, s.now().Add(GlobalAlertTTL))
	return storageErr("append global alert", s.db.WithContext(ctx).Create(&entry).Error)
}

// ListGlobalAlerts returns up to limit unexpired feed entries, newest first
func (s *Store) ListGlobalAlerts(ctx context.Context, limit int) ([]ActiveAlert, error) {
	var entries []GlobalAlert
	err := s.db.WithContext(ctx).
		Where("expires_at > ?", s.now()).
		Order("id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, storageErr("list global alerts", err)
	}
	alerts := make([]ActiveAlert, 0, len(entries))
	for _, e := range entries {
		alerts = append(alerts, e.Alert())
	}
	return alerts, nil
}

// ========== Retention ==========

// PurgeStats counts rows removed by PurgeExpired
type PurgeStats struct {
	LatestSamples  int64
	ActiveAlerts   int64
	GlobalAlerts   int64
	MetricRecords  int64
	InactiveSeries int
}

// Total returns the number of removed rows
func (p PurgeStats) Total() int64 {
	return p.LatestSamples + p.ActiveAlerts + p.GlobalAlerts + p.MetricRecords
}

// PurgeExpired physically removes expired rows and inactive histories
func (s *Store) PurgeExpired(ctx context.Context) (PurgeStats, error) {
	var stats PurgeStats
	now := s.now()
	db := s.db.WithContext(ctx)

	result := db.Where("expires_at <= ?", now).Delete(&LatestSample{})
	if result.Error != nil {
		return stats, storageErr("purge latest samples", result.Error)
	}
	stats.LatestSamples = result.RowsAffected

	result = db.Where("expires_at <= ?", now).Delete(&ActiveAlert{})
	if result.Error != nil {
		return stats, storageErr("purge active alerts", result.Error)
	}
	stats.ActiveAlerts = result.RowsAffected

	result = db.Where("expires_at <= ?", now).Delete(&GlobalAlert{})
	if result.Error != nil {
		return stats, storageErr("purge global alerts", result.Error)
	}
	stats.GlobalAlerts = result.RowsAffected

	var inactive []string
	err := db.Model(&MetricRecord{}).
		Select("resource_id").
		Group("resource_id").
		Having("MAX(created_at) <= ?", now.Add(-HistoryTTL)).
		Pluck("resource_id", &inactive).Error
	if err != nil {
		return stats, storageErr("find inactive histories", err)
	}
	if len(inactive) > 0 {
		result = db.Where("resource_id IN ?", inactive).Delete(&MetricRecord{})
		if result.Error != nil {
			return stats, storageErr("purge inactive histories", result.Error)
		}
		stats.MetricRecords = result.RowsAffected
		stats.InactiveSeries = len(inactive)
	}

	return stats, nil
}
