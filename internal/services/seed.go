package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/astrafabric/monitor/internal/config"
	"github.com/astrafabric/monitor/internal/database"
)

// ApplySeed registers the seed's resources that do not exist yet, together
// with their rules and channels. Existing resources are left untouched.
// It returns the number of resources created.
func (s *MonitorService) ApplySeed(ctx context.Context, seed *config.Seed) (int, error) {
	created := 0
	for _, sr := range seed.Resources {
		_, err := s.store.GetResource(ctx, sr.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return created, err
		}

		if err := s.seedResource(ctx, sr); err != nil {
			return created, fmt.Errorf("seed resource %s: %w", sr.ID, err)
		}
		created++
	}
	if created > 0 {
		log.Printf("MonitorService: seeded %d resources", created)
	}
	return created, nil
}

func (s *MonitorService) seedResource(ctx context.Context, sr config.SeedResource) error {
	id, err := s.AddResource(ctx, ResourceRequest{
		ID:       sr.ID,
		Type:     database.ResourceType(sr.Type),
		Name:     sr.Name,
		Endpoint: sr.Endpoint,
		Credentials: database.Credentials{
			SSHKey:   sr.Credentials.SSHKey,
			Username: sr.Credentials.Username,
			Password: sr.Credentials.Password,
			APIKey:   sr.Credentials.APIKey,
		},
		CustomerID:     sr.CustomerID,
		PollIntervalMs: sr.PollIntervalMs,
	})
	if err != nil {
		return err
	}

	for _, r := range sr.Rules {
		if _, err := s.AddAlertRule(ctx, id, AlertRuleRequest{
			Metric:    r.Metric,
			Condition: database.Condition(r.Condition),
			Threshold: r.Threshold,
			Severity:  database.Severity(r.Severity),
			Enabled:   r.Enabled,
		}); err != nil {
			return err
		}
	}
	for _, c := range sr.Channels {
		if _, err := s.AddNotificationChannel(ctx, id, ChannelRequest{
			Type:       database.ChannelType(c.Type),
			Address:    c.Address,
			Phone:      c.Phone,
			URL:        c.URL,
			WebhookURL: c.WebhookURL,
			Channel:    c.Channel,
			Enabled:    c.Enabled,
		}); err != nil {
			return err
		}
	}
	return nil
}
