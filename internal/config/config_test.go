package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EnvDefaults(t *testing.T) {
	t.Setenv("MAIL_ACCOUNTS", "a@example.com, b@example.com")
	t.Setenv("SETTLEMENT_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Accounts) != 2 || cfg.Accounts[1] != "b@example.com" {
		t.Fatalf("unexpected accounts %v", cfg.Accounts)
	}
	if cfg.ToleranceRub != 100 {
		t.Fatalf("expected default tolerance 100, got %d", cfg.ToleranceRub)
	}
	if cfg.GracePeriod() != 2*time.Minute {
		t.Fatalf("expected default grace 2m, got %v", cfg.GracePeriod())
	}
	if cfg.ScanInterval() != 10*time.Second {
		t.Fatalf("expected default scan interval 10s, got %v", cfg.ScanInterval())
	}
	if cfg.ScanMaxPerCycle != 50 {
		t.Fatalf("expected default scan cap 50, got %d", cfg.ScanMaxPerCycle)
	}
}

func TestLoad_RejectsNonPositiveScanCap(t *testing.T) {
	t.Setenv("MAIL_ACCOUNTS", "a@example.com")
	t.Setenv("SETTLEMENT_CONFIG", "")
	t.Setenv("SCAN_MAX_PER_CYCLE", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-positive scan cap")
	}
}

func TestLoad_YAMLOverridesEnv(t *testing.T) {
	t.Setenv("MAIL_ACCOUNTS", "env@example.com")
	t.Setenv("MATCH_TOLERANCE_RUB", "50")

	path := filepath.Join(t.TempDir(), "settlement.yaml")
	yaml := `accounts:
  - file@example.com
tolerance_rub: 200
grace_seconds: 300
webhook_url: https://hooks.example.com/x
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SETTLEMENT_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0] != "file@example.com" {
		t.Fatalf("yaml accounts must win, got %v", cfg.Accounts)
	}
	if cfg.ToleranceRub != 200 {
		t.Fatalf("expected yaml tolerance 200, got %d", cfg.ToleranceRub)
	}
	if cfg.GracePeriod() != 5*time.Minute {
		t.Fatalf("expected grace 5m, got %v", cfg.GracePeriod())
	}
	if cfg.WebhookURL != "https://hooks.example.com/x" {
		t.Fatalf("unexpected webhook url %q", cfg.WebhookURL)
	}
}

func TestLoad_RequiresAccounts(t *testing.T) {
	t.Setenv("MAIL_ACCOUNTS", "")
	t.Setenv("SETTLEMENT_CONFIG", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without accounts")
	}
}
