package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/astrafabric/monitor/internal/alerting"
	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/telemetry"
)

// TickResult is the outcome of one monitoring tick. NotifyErrs holds the
// failed notification deliveries; they do not make the tick fail.
type TickResult struct {
	Sample     *database.MetricsSample
	Triggered  []database.ActiveAlert
	NotifyErrs []error
	Err        error
}

// RunTick performs one collect, store, evaluate, notify and broadcast cycle
// for a resource. Collection failures are recorded as a critical monitoring
// alert and returned in the result; they are never fatal. onState, when
// set, observes the polling to processing transition.
func (s *Scheduler) RunTick(ctx context.Context, resource database.Resource, onState func(State)) TickResult {
	start := time.Now()

	collectCtx, cancel := context.WithTimeout(ctx, s.collectTimeout)
	sample, err := s.collector.Collect(collectCtx, resource)
	cancel()
	if err != nil {
		s.metrics.ObserveTick(string(resource.Type), telemetry.OutcomeFailure, time.Since(start))
		s.handleFailure(ctx, resource, err)
		return TickResult{Err: err}
	}
	s.metrics.ObserveTick(string(resource.Type), telemetry.OutcomeSuccess, time.Since(start))

	if onState != nil {
		onState(StateProcessing)
	}

	if err := s.store.AppendSample(ctx, resource.ID, *sample); err != nil {
		log.Printf("Scheduler: failed to store metrics for %s: %v", resource.ID, err)
	}

	if err := s.tracker.ClearActiveAlert(ctx, resource.ID, alerting.MetricMonitoring); err != nil {
		log.Printf("Scheduler: %v", err)
	}

	rules, err := s.store.ListAlertRules(ctx, resource.ID)
	if err != nil {
		log.Printf("Scheduler: failed to load alert rules for %s: %v", resource.ID, err)
	}
	decisions := alerting.Evaluate(resource.ID, sample, rules, s.now())
	triggered := s.tracker.Apply(ctx, resource.ID, decisions)

	var notifyErrs []error
	if len(triggered) > 0 {
		notifyErrs = s.notify(ctx, resource, triggered)
	}

	s.broadcaster.PublishMetrics(resource.CustomerID, resource.ID, *sample)
	return TickResult{Sample: sample, Triggered: triggered, NotifyErrs: notifyErrs}
}

// notify delivers and broadcasts each triggered alert and returns every
// delivery failure.
func (s *Scheduler) notify(ctx context.Context, resource database.Resource, alerts []database.ActiveAlert) []error {
	channels, err := s.store.ListNotificationChannels(ctx, resource.ID)
	if err != nil {
		log.Printf("Scheduler: failed to load notification channels for %s: %v", resource.ID, err)
	}

	var errs []error
	for _, a := range alerts {
		s.metrics.AlertTriggered(a.Metric, string(a.Severity))
		log.Printf("Scheduler: alert triggered for %s: %s %s %s (value %s, %s)",
			resource.ID, a.Metric, a.Condition, a.Threshold, a.Value, a.Severity)
		if len(channels) > 0 {
			errs = append(errs, s.notifier.NotifyAll(ctx, channels, a)...)
		}
		s.broadcaster.PublishAlert(resource.CustomerID, a)
	}
	return errs
}

func (s *Scheduler) handleFailure(ctx context.Context, resource database.Resource, err error) {
	log.Printf("Scheduler: monitoring failed for %s: %v", resource.ID, err)

	alert := alerting.MonitoringFailure(resource.ID, err, s.now())
	if storeErr := s.tracker.StoreActiveAlert(ctx, alert); storeErr != nil {
		log.Printf("Scheduler: %v", storeErr)
		return
	}
	s.broadcaster.PublishAlert(resource.CustomerID, alert)
}
