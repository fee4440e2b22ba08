package api

import (
	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/services"
)

// ResourceRequestToService converts a create request into a service request
// owned by customerID.
func ResourceRequestToService(req CreateResourceRequest, customerID string) services.ResourceRequest {
	return services.ResourceRequest{
		Type:     database.ResourceType(req.Type),
		Name:     req.Name,
		Endpoint: req.Endpoint,
		Credentials: database.Credentials{
			SSHKey:   req.Credentials.SSHKey,
			Username: req.Credentials.Username,
			Password: req.Credentials.Password,
			APIKey:   req.Credentials.APIKey,
		},
		CustomerID:     customerID,
		PollIntervalMs: req.PollIntervalMs,
	}
}

// AlertRuleRequestToService converts a rule request into a service request
func AlertRuleRequestToService(req CreateAlertRuleRequest) services.AlertRuleRequest {
	out := services.AlertRuleRequest{
		Metric:    req.Metric,
		Condition: database.Condition(req.Condition),
		Severity:  database.Severity(req.Severity),
		Enabled:   req.Enabled,
	}
	if req.Threshold != nil {
		out.Threshold = *req.Threshold
	}
	return out
}

// ChannelRequestToService converts a channel request into a service request
func ChannelRequestToService(req CreateChannelRequest) services.ChannelRequest {
	return services.ChannelRequest{
		Type:       database.ChannelType(req.Type),
		Address:    req.Address,
		Phone:      req.Phone,
		URL:        req.URL,
		WebhookURL: req.WebhookURL,
		Channel:    req.Channel,
		Enabled:    req.Enabled,
	}
}
