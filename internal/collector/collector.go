package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/astrafabric/monitor/internal/database"
)

// ErrUnsupportedType is returned for resource types without a registered collector
var ErrUnsupportedType = errors.New("unsupported resource type")

// Collector obtains one metrics sample from a resource
type Collector interface {
	Collect(ctx context.Context, resource database.Resource) (*database.MetricsSample, error)
}

// CollectorFunc adapts a function to the Collector interface
type CollectorFunc func(ctx context.Context, resource database.Resource) (*database.MetricsSample, error)

// Collect calls f(ctx, resource)
func (f CollectorFunc) Collect(ctx context.Context, resource database.Resource) (*database.MetricsSample, error) {
	return f(ctx, resource)
}

// CollectionError reports that a sample could not be obtained
type CollectionError struct {
	ResourceID string
	Type       database.ResourceType
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("%s monitoring failed for %s: %v", e.Type, e.ResourceID, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// Registry dispatches collection to the strategy registered for a resource type
type Registry struct {
	mu         sync.RWMutex
	collectors map[database.ResourceType]Collector
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[database.ResourceType]Collector),
	}
}

// NewDefaultRegistry creates a registry holding a collector for every resource type
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(database.ResourceTypeServer, NewServerCollector(nil))
	r.Register(database.ResourceTypeDatabase, NewDatabaseCollector(nil))
	r.Register(database.ResourceTypeWebsite, NewWebsiteCollector(opts))
	r.Register(database.ResourceTypeAPI, NewAPICollector(opts))
	return r
}

// Register installs or replaces the collector for a resource type
func (r *Registry) Register(t database.ResourceType, c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[t] = c
}

// Lookup returns the collector registered for a resource type
func (r *Registry) Lookup(t database.ResourceType) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[t]
	return c, ok
}

// Collect obtains a sample using the strategy for the resource's type.
// Every failure is returned as a *CollectionError.
func (r *Registry) Collect(ctx context.Context, resource database.Resource) (*database.MetricsSample, error) {
	c, ok := r.Lookup(resource.Type)
	if !ok {
		return nil, &CollectionError{ResourceID: resource.ID, Type: resource.Type, Err: ErrUnsupportedType}
	}

	sample, err := c.Collect(ctx, resource)
	if err != nil {
		var collErr *CollectionError
		if errors.As(err, &collErr) {
			return nil, err
		}
		return nil, &CollectionError{ResourceID: resource.ID, Type: resource.Type, Err: err}
	}
	return sample, nil
}
