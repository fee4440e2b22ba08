package api

import (
	"testing"

	"github.com/astrafabric/monitor/internal/database"
)

func TestResourceRequestToService(t *testing.T) {
	req := CreateResourceRequest{
		Type:           "database",
		Name:           "orders-db",
		Endpoint:       "db.internal:5432",
		Credentials:    CredentialsRequest{Username: "monitor", Password: "secret"},
		CustomerID:     "from-body",
		PollIntervalMs: 30000,
	}

	got := ResourceRequestToService(req, "cust-1")
	if got.Type != database.ResourceTypeDatabase {
		t.Errorf("Type = %q", got.Type)
	}
	if got.CustomerID != "cust-1" {
		t.Errorf("CustomerID = %q, want the resolved customer", got.CustomerID)
	}
	if got.Credentials.Username != "monitor" || got.Credentials.Password != "secret" {
		t.Errorf("credentials not mapped: %+v", got.Credentials)
	}
	if got.PollIntervalMs != 30000 || got.Name != "orders-db" || got.Endpoint != "db.internal:5432" {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestAlertRuleRequestToService(t *testing.T) {
	threshold := 499.0
	disabled := false
	got := AlertRuleRequestToService(CreateAlertRuleRequest{
		Metric: "statusCode", Condition: "greater_than", Threshold: &threshold, Severity: "critical", Enabled: &disabled,
	})

	if got.Condition != database.ConditionGreaterThan || got.Severity != database.SeverityCritical {
		t.Errorf("unexpected enums: %+v", got)
	}
	if got.Threshold != 499 {
		t.Errorf("Threshold = %v", got.Threshold)
	}
	if got.Enabled == nil || *got.Enabled {
		t.Error("Enabled should carry the explicit false")
	}
}

func TestChannelRequestToService(t *testing.T) {
	got := ChannelRequestToService(CreateChannelRequest{Type: "slack", WebhookURL: "https://hooks.slack.com/x", Channel: "#ops"})
	if got.Type != database.ChannelTypeSlack || got.WebhookURL != "https://hooks.slack.com/x" || got.Channel != "#ops" {
		t.Errorf("unexpected channel request: %+v", got)
	}
	if got.Enabled != nil {
		t.Error("Enabled should stay unset")
	}
}
