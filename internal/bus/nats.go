package bus

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/events"
)

// Publisher mirrors scheduler output onto NATS subjects
type Publisher struct {
	conn    *nats.Conn
	publish func(subject string, data []byte) error
}

// NewPublisher connects to the NATS server at url
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("astrafabric-monitor"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &Publisher{conn: conn, publish: conn.Publish}, nil
}

// Close drains and closes the connection
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
		p.conn.Close()
	}
}

// Publish sends payload as JSON on subject
func (p *Publisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.publish(subject, data)
}

// PublishMetrics implements events.Broadcaster. Subscribers of the bus are
// trusted services, so updates are not filtered by customer.
func (p *Publisher) PublishMetrics(_, resourceID string, sample database.MetricsSample) {
	if err := p.Publish(events.MetricsSubject(resourceID), events.NewMetricsUpdate(resourceID, sample)); err != nil {
		log.Printf("Bus: failed to publish metrics for %s: %v", resourceID, err)
	}
}

// PublishAlert implements events.Broadcaster
func (p *Publisher) PublishAlert(_ string, alert database.ActiveAlert) {
	if err := p.Publish(events.SubjectAlerts, events.NewAlertEvent(alert)); err != nil {
		log.Printf("Bus: failed to publish alert for %s: %v", alert.ResourceID, err)
	}
}
