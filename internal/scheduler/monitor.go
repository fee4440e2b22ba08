package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/astrafabric/monitor/internal/database"
)

// State is the lifecycle state of a resource monitor
type State string

const (
	StateIdle       State = "idle"
	StatePolling    State = "polling"
	StateProcessing State = "processing"
	StateFailed     State = "failed"
)

// MonitorInfo describes a running monitor
type MonitorInfo struct {
	ResourceID     string                `json:"resource_id"`
	ResourceType   database.ResourceType `json:"resource_type"`
	State          State                 `json:"state"`
	PollIntervalMs int64                 `json:"poll_interval_ms"`
	Ticks          int64                 `json:"ticks"`
	LastTick       *time.Time            `json:"last_tick,omitempty"`
	LastError      string                `json:"last_error,omitempty"`
	LastNotifyErr  string                `json:"last_notify_error,omitempty"`
}

type monitor struct {
	resource database.Resource
	cancel   context.CancelFunc
	done     chan struct{}

	mu        sync.Mutex
	state     State
	ticks     int64
	lastTick  time.Time
	lastErr   string
	notifyErr string
}

func newMonitor(resource database.Resource, cancel context.CancelFunc) *monitor {
	return &monitor{
		resource: resource,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateIdle,
	}
}

func (m *monitor) stop() {
	m.cancel()
	<-m.done
}

func (m *monitor) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// finish records the end of a tick. A failed tick stays in StateFailed
// until the next tick starts. The last delivery failure is kept until a
// later tick notifies without errors.
func (m *monitor) finish(at time.Time, result TickResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	m.lastTick = at
	if n := len(result.NotifyErrs); n > 0 {
		m.notifyErr = result.NotifyErrs[n-1].Error()
	} else if len(result.Triggered) > 0 {
		m.notifyErr = ""
	}
	if err := result.Err; err != nil {
		m.state = StateFailed
		m.lastErr = err.Error()
		return
	}
	m.state = StateIdle
	m.lastErr = ""
}

func (m *monitor) info() MonitorInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := MonitorInfo{
		ResourceID:     m.resource.ID,
		ResourceType:   m.resource.Type,
		State:          m.state,
		PollIntervalMs: m.resource.PollInterval().Milliseconds(),
		Ticks:          m.ticks,
		LastError:      m.lastErr,
		LastNotifyErr:  m.notifyErr,
	}
	if !m.lastTick.IsZero() {
		t := m.lastTick
		info.LastTick = &t
	}
	return info
}
