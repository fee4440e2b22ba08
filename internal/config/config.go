package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/astrafabric/monitor/internal/notifier"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Server Configuration
	HTTPPort int

	// Database Configuration
	DatabaseURL string

	// Monitoring Configuration
	DefaultPollIntervalMs int64
	CollectTimeout        time.Duration
	NotifyTimeout         time.Duration
	RetentionInterval     time.Duration
	SeedFile              string

	// Notification transports
	Email notifier.EmailConfig
	SMS   notifier.SMSConfig
	Slack notifier.SlackConfig

	// Event bus; empty disables publishing
	NATSURL string

	// Authentication Configuration; empty JWTSecret disables token checks
	JWTSecret string

	// CORS
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// HTTP Port for API server
	cfg.HTTPPort = getEnvAsIntOrDefault("HTTP_PORT", 3000)

	// SQLite file path or postgres:// URL
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", "monitor.db")

	cfg.DefaultPollIntervalMs = int64(getEnvAsIntOrDefault("DEFAULT_POLL_INTERVAL_MS", 60000))
	cfg.CollectTimeout = getEnvAsDurationOrDefault("COLLECT_TIMEOUT", 10*time.Second)
	cfg.NotifyTimeout = getEnvAsDurationOrDefault("NOTIFY_TIMEOUT", 10*time.Second)
	cfg.RetentionInterval = getEnvAsDurationOrDefault("RETENTION_INTERVAL", time.Hour)
	cfg.SeedFile = os.Getenv("MONITOR_SEED_FILE")

	cfg.Email = notifier.EmailConfig{
		From:     os.Getenv("ALERT_EMAIL"),
		Password: os.Getenv("ALERT_EMAIL_PASSWORD"),
		Host:     getEnvOrDefault("SMTP_HOST", "smtp.gmail.com"),
		Port:     getEnvAsIntOrDefault("SMTP_PORT", 587),
	}
	cfg.SMS = notifier.SMSConfig{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		From:       os.Getenv("TWILIO_PHONE_NUMBER"),
	}
	cfg.Slack = notifier.SlackConfig{
		BotToken: os.Getenv("SLACK_BOT_TOKEN"),
	}

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.CORSAllowedOrigins = getEnvAsListOrDefault("CORS_ALLOWED_ORIGINS", []string{"*"})

	return cfg, nil
}

// NotifierConfig assembles the notifier settings
func (c *Config) NotifierConfig() notifier.Config {
	return notifier.Config{
		Email:   c.Email,
		SMS:     c.SMS,
		Slack:   c.Slack,
		Timeout: c.NotifyTimeout,
	}
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the value of an environment variable as an integer or a default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsDurationOrDefault accepts Go durations ("30s") or plain milliseconds
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// getEnvAsListOrDefault splits a comma separated variable
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
