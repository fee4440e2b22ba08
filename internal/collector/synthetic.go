package collector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/astrafabric/monitor/internal/database"
)

// Server and database collection use synthetic readings until real SSH and
// driver-specific collectors are plugged in through Registry.Register.

// lockedRand guards a *rand.Rand shared by concurrent ticks
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(rnd *rand.Rand) *lockedRand {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &lockedRand{rnd: rnd}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}

func (l *lockedRand) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Int63n(n)
}

// ServerCollector produces synthetic load, memory and disk readings
type ServerCollector struct {
	rnd *lockedRand
	now func() time.Time
}

// NewServerCollector creates a server collector; a nil rnd seeds from the clock
func NewServerCollector(rnd *rand.Rand) *ServerCollector {
	return &ServerCollector{rnd: newLockedRand(rnd), now: time.Now}
}

// Collect implements Collector
func (c *ServerCollector) Collect(ctx context.Context, resource database.Resource) (*database.MetricsSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const memTotal, diskTotal = 8192.0, 100.0
	return &database.MetricsSample{
		CPU: &database.CPUStats{
			Load1:  c.rnd.Float64() * 2,
			Load5:  c.rnd.Float64() * 2,
			Load15: c.rnd.Float64() * 2,
		},
		Memory: &database.UsageStats{
			Total:   memTotal,
			Used:    c.rnd.Float64() * memTotal,
			Free:    c.rnd.Float64() * memTotal,
			Percent: c.rnd.Float64() * 100,
		},
		Disk: &database.UsageStats{
			Total:   diskTotal,
			Used:    c.rnd.Float64() * diskTotal,
			Free:    c.rnd.Float64() * diskTotal,
			Percent: c.rnd.Float64() * 100,
		},
		Timestamp: c.now().UTC(),
	}, nil
}

// DatabaseCollector produces synthetic connection and query counters
type DatabaseCollector struct {
	rnd *lockedRand
	now func() time.Time
}

// NewDatabaseCollector creates a database collector; a nil rnd seeds from the clock
func NewDatabaseCollector(rnd *rand.Rand) *DatabaseCollector {
	return &DatabaseCollector{rnd: newLockedRand(rnd), now: time.Now}
}

// Collect implements Collector
func (c *DatabaseCollector) Collect(ctx context.Context, resource database.Resource) (*database.MetricsSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	connections := c.rnd.Int63n(100)
	threads := c.rnd.Int63n(20)
	queries := c.rnd.Int63n(10000)
	slow := c.rnd.Int63n(10)
	uptime := c.rnd.Int63n(86400)
	return &database.MetricsSample{
		Connections: &connections,
		Threads:     &threads,
		Queries:     &queries,
		SlowQueries: &slow,
		Uptime:      &uptime,
		Timestamp:   c.now().UTC(),
	}, nil
}
