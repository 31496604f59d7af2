// Package config loads pipeline configuration from a YAML file with
// environment-variable fallbacks.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the settlement pipeline configuration.
type Config struct {
	Accounts     []string `yaml:"accounts"`
	SenderFilter string   `yaml:"sender_filter"`

	ToleranceRub int    `yaml:"tolerance_rub"`
	GraceSeconds int    `yaml:"grace_seconds"`
	ChatMessage  string `yaml:"chat_message"`

	ScanMaxPerCycle        int `yaml:"scan_max_per_cycle"`
	ScanIntervalSeconds    int `yaml:"scan_interval_seconds"`
	ReleaseIntervalSeconds int `yaml:"release_interval_seconds"`
	MonitorIntervalSeconds int `yaml:"monitor_interval_seconds"`

	StorageRoot string `yaml:"storage_root"`
	WebhookURL  string `yaml:"webhook_url"`

	PayoutBaseURL string `yaml:"payout_base_url"`
	PayoutAPIKey  string `yaml:"payout_api_key"`
	TradeBaseURL  string `yaml:"trade_base_url"`
	TradeAPIKey   string `yaml:"trade_api_key"`

	GmailToken    string `yaml:"gmail_token"`
	PDFToTextPath string `yaml:"pdftotext_path"`
}

// Load reads the pipeline config. Env vars seed the defaults; a YAML
// file named by SETTLEMENT_CONFIG overrides them.
func Load() (Config, error) {
	cfg := Config{
		Accounts:               splitCSV(getenvDefault("MAIL_ACCOUNTS", "")),
		SenderFilter:           getenvDefault("MAIL_SENDER_FILTER", "noreply@tinkoff.ru"),
		ToleranceRub:           getenvIntDefault("MATCH_TOLERANCE_RUB", 100),
		GraceSeconds:           getenvIntDefault("RELEASE_GRACE_SECONDS", 120),
		ChatMessage:            getenvDefault("ORDER_CHAT_MESSAGE", ""),
		ScanMaxPerCycle:        getenvIntDefault("SCAN_MAX_PER_CYCLE", 50),
		ScanIntervalSeconds:    getenvIntDefault("SCAN_INTERVAL_SECONDS", 10),
		ReleaseIntervalSeconds: getenvIntDefault("RELEASE_INTERVAL_SECONDS", 2),
		MonitorIntervalSeconds: getenvIntDefault("MONITOR_INTERVAL_SECONDS", 60),
		StorageRoot:            getenvDefault("RECEIPT_STORAGE_ROOT", filepath.FromSlash("var/receipts")),
		WebhookURL:             os.Getenv("NOTIFY_WEBHOOK_URL"),
		PayoutBaseURL:          os.Getenv("PAYOUT_BASE_URL"),
		PayoutAPIKey:           os.Getenv("PAYOUT_API_KEY"),
		TradeBaseURL:           os.Getenv("TRADE_BASE_URL"),
		TradeAPIKey:            os.Getenv("TRADE_API_KEY"),
		GmailToken:             os.Getenv("GMAIL_TOKEN"),
		PDFToTextPath:          getenvDefault("PDFTOTEXT_PATH", "pdftotext"),
	}

	if path := os.Getenv("SETTLEMENT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if len(cfg.Accounts) == 0 {
		return cfg, errors.New("config: at least one mail account required")
	}
	if cfg.StorageRoot == "" {
		return cfg, errors.New("config: storage root required")
	}
	if cfg.ToleranceRub < 0 {
		return cfg, errors.New("config: tolerance must be non-negative")
	}
	if cfg.ScanMaxPerCycle <= 0 {
		return cfg, errors.New("config: scan max per cycle must be positive")
	}
	return cfg, nil
}

// GracePeriod returns the release grace period.
func (c Config) GracePeriod() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

// ScanInterval returns the mailbox polling interval.
func (c Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// ReleaseInterval returns the release loop tick.
func (c Config) ReleaseInterval() time.Duration {
	return time.Duration(c.ReleaseIntervalSeconds) * time.Second
}

// MonitorInterval returns the order polling interval.
func (c Config) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalSeconds) * time.Second
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
