package config

import (
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"certfresh/internal/freshness"
)

type Config struct {
	Host string `envconfig:"APP_HOST" default:""`
	Port string `envconfig:"APP_PORT" default:"9292"`

	DefaultThresholdDays int           `envconfig:"DEFAULT_THRESHOLD_DAYS" default:"7"`
	TLSPort              string        `envconfig:"TLS_PORT" default:"443"`
	DialTimeout          time.Duration `envconfig:"DIAL_TIMEOUT" default:"10s"`
	CheckTimeout         time.Duration `envconfig:"CHECK_TIMEOUT" default:"15s"`
	CAFile               string        `envconfig:"CA_FILE"`
	StrictDaysParam      bool          `envconfig:"STRICT_DAYS_PARAM" default:"false"`
	BatchConcurrency     int           `envconfig:"BATCH_CONCURRENCY" default:"8"`
	MaxBatchSize         int           `envconfig:"MAX_BATCH_SIZE" default:"20"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"false"`

	DBPath               string        `envconfig:"DB_PATH" default:"./certfresh.db"`
	WatchHostnames       []string      `envconfig:"WATCH_HOSTNAMES"`
	WatchInterval        time.Duration `envconfig:"WATCH_INTERVAL" default:"5m"`
	WatchThresholdDays   int           `envconfig:"WATCH_THRESHOLD_DAYS" default:"7"`
	AlertThreshold       int           `envconfig:"ALERT_THRESHOLD" default:"1"`
	HistoryRetentionDays int           `envconfig:"HISTORY_RETENTION_DAYS" default:"30"`

	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookFormat string `envconfig:"WEBHOOK_FORMAT" default:"discord"`
	PushoverToken string `envconfig:"PUSHOVER_TOKEN"`
	PushoverUser  string `envconfig:"PUSHOVER_USER"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	AlertEmail   string `envconfig:"ALERT_EMAIL"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.WatchHostnames = cleanHostnames(cfg.WatchHostnames)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return fmt.Errorf("DIAL_TIMEOUT must be positive, got %s", c.DialTimeout)
	}
	if c.CheckTimeout <= 0 {
		return fmt.Errorf("CHECK_TIMEOUT must be positive, got %s", c.CheckTimeout)
	}
	if err := freshness.ValidateThresholdDays(c.DefaultThresholdDays); err != nil {
		return fmt.Errorf("DEFAULT_THRESHOLD_DAYS: %w", err)
	}
	if err := freshness.ValidateThresholdDays(c.WatchThresholdDays); err != nil {
		return fmt.Errorf("WATCH_THRESHOLD_DAYS: %w", err)
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must be positive, got %d", c.MaxBatchSize)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	if len(c.WatchHostnames) > 0 {
		if c.WatchInterval <= 0 {
			return fmt.Errorf("WATCH_INTERVAL must be positive, got %s", c.WatchInterval)
		}
		if c.AlertThreshold <= 0 {
			return fmt.Errorf("ALERT_THRESHOLD must be positive, got %d", c.AlertThreshold)
		}
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required when WATCH_HOSTNAMES is set")
		}
	}

	switch c.WebhookFormat {
	case "discord", "slack":
	case "pushover":
		if c.WebhookURL != "" && (c.PushoverToken == "" || c.PushoverUser == "") {
			return fmt.Errorf("PUSHOVER_TOKEN and PUSHOVER_USER are required for the pushover webhook format")
		}
	default:
		return fmt.Errorf("WEBHOOK_FORMAT must be discord, slack or pushover, got %q", c.WebhookFormat)
	}

	return nil
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.Host + ":" + c.Port
}

// RootCAs returns the pool from CA_FILE, or nil for the system pool.
func (c *Config) RootCAs() (*x509.CertPool, error) {
	if c.CAFile == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA_FILE %q: %w", c.CAFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA_FILE %q contains no PEM certificates", c.CAFile)
	}
	return pool, nil
}

func cleanHostnames(in []string) []string {
	var out []string
	for _, h := range in {
		h = strings.TrimSpace(h)
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
