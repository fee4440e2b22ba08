package scheduler

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/astrafabric/monitor/internal/alerting"
	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/events"
	"github.com/astrafabric/monitor/internal/telemetry"
)

// DefaultCollectTimeout bounds one collection when none is configured
const DefaultCollectTimeout = 10 * time.Second

// Store is the persistence the scheduler needs
type Store interface {
	ListResources(ctx context.Context) ([]database.Resource, error)
	AppendSample(ctx context.Context, resourceID string, sample database.MetricsSample) error
	ListAlertRules(ctx context.Context, resourceID string) ([]database.AlertRule, error)
	ListNotificationChannels(ctx context.Context, resourceID string) ([]database.NotificationChannel, error)
}

// Collector obtains a sample from a resource
type Collector interface {
	Collect(ctx context.Context, resource database.Resource) (*database.MetricsSample, error)
}

// Tracker maintains active-alert state
type Tracker interface {
	StoreActiveAlert(ctx context.Context, alert database.ActiveAlert) error
	ClearActiveAlert(ctx context.Context, resourceID, metric string) error
	Apply(ctx context.Context, resourceID string, decisions []alerting.Decision) []database.ActiveAlert
}

// Notifier fans an alert out to notification channels
type Notifier interface {
	NotifyAll(ctx context.Context, channels []database.NotificationChannel, alert database.ActiveAlert) []error
}

// Deps are the collaborators of a Scheduler. Broadcaster and Metrics are optional.
type Deps struct {
	Store          Store
	Collector      Collector
	Tracker        Tracker
	Notifier       Notifier
	Broadcaster    events.Broadcaster
	Metrics        *telemetry.Metrics
	CollectTimeout time.Duration
}

// Scheduler polls every monitored resource on its own goroutine
type Scheduler struct {
	store          Store
	collector      Collector
	tracker        Tracker
	notifier       Notifier
	broadcaster    events.Broadcaster
	metrics        *telemetry.Metrics
	collectTimeout time.Duration
	now            func() time.Time

	mu       sync.Mutex
	baseCtx  context.Context
	monitors map[string]*monitor
}

// New creates a scheduler
func New(deps Deps) *Scheduler {
	timeout := deps.CollectTimeout
	if timeout <= 0 {
		timeout = DefaultCollectTimeout
	}
	broadcaster := deps.Broadcaster
	if broadcaster == nil {
		broadcaster = events.Fanout(nil)
	}
	return &Scheduler{
		store:          deps.Store,
		collector:      deps.Collector,
		tracker:        deps.Tracker,
		notifier:       deps.Notifier,
		broadcaster:    broadcaster,
		metrics:        deps.Metrics,
		collectTimeout: timeout,
		now:            func() time.Time { return time.Now().UTC() },
		baseCtx:        context.Background(),
		monitors:       make(map[string]*monitor),
	}
}

// SetClock overrides the scheduler clock (tests)
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start resumes monitoring of every persisted resource. Timers stop when
// ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	resources, err := s.store.ListResources(ctx)
	if err != nil {
		return err
	}
	for _, r := range resources {
		s.StartMonitoring(r)
	}
	log.Printf("Scheduler: resumed monitoring of %d resources", len(resources))
	return nil
}

// StartMonitoring starts polling a resource at its interval, replacing any
// timer already running for it.
// The replaced timer is waited for outside the lock so that snapshots stay
// available while its tick finishes.
func (s *Scheduler) StartMonitoring(resource database.Resource) {
	s.mu.Lock()
	existing := s.monitors[resource.ID]
	ctx, cancel := context.WithCancel(s.baseCtx)
	m := newMonitor(resource, cancel)
	s.monitors[resource.ID] = m
	s.metrics.SetActiveMonitors(len(s.monitors))
	s.mu.Unlock()

	if existing != nil {
		existing.stop()
	}
	go s.run(ctx, m)
}

// StopMonitoring cancels a resource's timer and waits for an in-flight tick
// to finish. It reports whether the resource was being monitored.
func (s *Scheduler) StopMonitoring(resourceID string) bool {
	s.mu.Lock()
	m, ok := s.monitors[resourceID]
	if ok {
		delete(s.monitors, resourceID)
		s.metrics.SetActiveMonitors(len(s.monitors))
	}
	s.mu.Unlock()

	if ok {
		m.stop()
	}
	return ok
}

// IsMonitoring reports whether a timer runs for the resource
func (s *Scheduler) IsMonitoring(resourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.monitors[resourceID]
	return ok
}

// Stop cancels every timer and waits for in-flight ticks
func (s *Scheduler) Stop() {
	s.mu.Lock()
	monitors := s.monitors
	s.monitors = make(map[string]*monitor)
	s.metrics.SetActiveMonitors(0)
	s.mu.Unlock()

	for _, m := range monitors {
		m.cancel()
	}
	for _, m := range monitors {
		<-m.done
	}
	log.Printf("Scheduler: stopped %d monitors", len(monitors))
}

// MonitorCount returns how many resources are being polled
func (s *Scheduler) MonitorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.monitors)
}

// Monitors returns a snapshot of every running monitor, ordered by resource ID
func (s *Scheduler) Monitors() []MonitorInfo {
	s.mu.Lock()
	list := make([]*monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		list = append(list, m)
	}
	s.mu.Unlock()

	infos := make([]MonitorInfo, 0, len(list))
	for _, m := range list {
		infos = append(infos, m.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ResourceID < infos[j].ResourceID })
	return infos
}

func (s *Scheduler) run(ctx context.Context, m *monitor) {
	defer close(m.done)

	ticker := time.NewTicker(m.resource.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, m)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, m *monitor) {
	m.setState(StatePolling)
	result := s.RunTick(ctx, m.resource, m.setState)
	m.finish(s.now(), result)
}
