package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/telemetry"
)

// DefaultTimeout bounds a single delivery attempt
const DefaultTimeout = 10 * time.Second

var (
	// ErrUnsupportedChannel is returned for channel types without a sender
	ErrUnsupportedChannel = errors.New("unsupported channel type")
	// ErrNotConfigured is returned when a sender lacks its credentials
	ErrNotConfigured = errors.New("sender not configured")
)

// Sender delivers an alert over one transport
type Sender interface {
	Send(ctx context.Context, channel database.NotificationChannel, alert database.ActiveAlert) error
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(ctx context.Context, channel database.NotificationChannel, alert database.ActiveAlert) error

// Send calls f(ctx, channel, alert)
func (f SenderFunc) Send(ctx context.Context, channel database.NotificationChannel, alert database.ActiveAlert) error {
	return f(ctx, channel, alert)
}

// NotificationError reports a failed delivery to one channel
type NotificationError struct {
	ChannelID   string
	ChannelType database.ChannelType
	Err         error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("%s notification to channel %s failed: %v", e.ChannelType, e.ChannelID, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Notifier routes alerts to the sender registered for each channel type
type Notifier struct {
	mu      sync.RWMutex
	senders map[database.ChannelType]Sender
	timeout time.Duration
	metrics *telemetry.Metrics
}

// New creates a notifier without senders
func New(timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{
		senders: make(map[database.ChannelType]Sender),
		timeout: timeout,
	}
}

// NewFromConfig creates a notifier with a sender for every channel type
func NewFromConfig(cfg Config) *Notifier {
	n := New(cfg.Timeout)
	client := cfg.httpClient()
	n.Register(database.ChannelTypeEmail, NewEmailSender(cfg.Email))
	n.Register(database.ChannelTypeSMS, NewSMSSender(cfg.SMS, client))
	n.Register(database.ChannelTypeWebhook, NewWebhookSender(client))
	n.Register(database.ChannelTypeSlack, NewSlackSender(cfg.Slack, client))
	return n
}

// SetMetrics attaches delivery counters
func (n *Notifier) SetMetrics(m *telemetry.Metrics) {
	n.metrics = m
}

// Register installs or replaces the sender for a channel type
func (n *Notifier) Register(t database.ChannelType, s Sender) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.senders[t] = s
}

// Supports reports whether a sender is registered for t
func (n *Notifier) Supports(t database.ChannelType) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.senders[t]
	return ok
}

// Notify delivers an alert to one channel. Failures are *NotificationError.
func (n *Notifier) Notify(ctx context.Context, channel database.NotificationChannel, alert database.ActiveAlert) error {
	n.mu.RLock()
	sender, ok := n.senders[channel.Type]
	n.mu.RUnlock()

	var err error
	if !ok {
		err = ErrUnsupportedChannel
	} else {
		sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
		err = sender.Send(sendCtx, channel, alert)
		cancel()
	}
	n.metrics.ObserveNotification(string(channel.Type), err)

	if err != nil {
		return &NotificationError{ChannelID: channel.ID, ChannelType: channel.Type, Err: err}
	}
	return nil
}

// NotifyAll delivers an alert to every enabled channel concurrently.
// One failing channel never prevents delivery to the others; failures are
// logged and returned in channel order.
func (n *Notifier) NotifyAll(ctx context.Context, channels []database.NotificationChannel, alert database.ActiveAlert) []error {
	results := make([]error, len(channels))
	var wg sync.WaitGroup

	for i, ch := range channels {
		if !ch.Enabled {
			continue
		}
		wg.Add(1)
		go func(i int, ch database.NotificationChannel) {
			defer wg.Done()
			results[i] = n.Notify(ctx, ch, alert)
		}(i, ch)
	}
	wg.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			log.Printf("Notifier: %v", err)
			errs = append(errs, err)
		}
	}
	return errs
}
