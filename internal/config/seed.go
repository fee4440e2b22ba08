package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed declares resources registered at boot when they do not exist yet
type Seed struct {
	Resources []SeedResource `yaml:"resources"`
}

// SeedResource is one resource of a seed file with its rules and channels
type SeedResource struct {
	ID             string          `yaml:"id"`
	Type           string          `yaml:"type"`
	Name           string          `yaml:"name"`
	Endpoint       string          `yaml:"endpoint"`
	CustomerID     string          `yaml:"customer_id"`
	PollIntervalMs int64           `yaml:"poll_interval_ms"`
	Credentials    SeedCredentials `yaml:"credentials"`
	Rules          []SeedAlertRule `yaml:"rules"`
	Channels       []SeedChannel   `yaml:"channels"`
}

// SeedCredentials mirrors the resource credentials
type SeedCredentials struct {
	SSHKey   string `yaml:"ssh_key"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	APIKey   string `yaml:"api_key"`
}

// SeedAlertRule is an alert rule declared in a seed file
type SeedAlertRule struct {
	Metric    string  `yaml:"metric"`
	Condition string  `yaml:"condition"`
	Threshold float64 `yaml:"threshold"`
	Severity  string  `yaml:"severity"`
	Enabled   *bool   `yaml:"enabled"`
}

// SeedChannel is a notification channel declared in a seed file
type SeedChannel struct {
	Type       string `yaml:"type"`
	Address    string `yaml:"address"`
	Phone      string `yaml:"phone"`
	URL        string `yaml:"url"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Enabled    *bool  `yaml:"enabled"`
}

// LoadSeed reads a YAML seed file. Values may reference environment
// variables as ${NAME}.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, r := range seed.Resources {
		if r.ID == "" {
			return nil, fmt.Errorf("seed resource %d: id is required", i)
		}
		if r.CustomerID == "" {
			return nil, fmt.Errorf("seed resource %s: customer_id is required", r.ID)
		}
	}
	return &seed, nil
}
