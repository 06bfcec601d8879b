package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garnizeh/simplymeet/internal/config"
)

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("ODOO_URL", "  https://odoo.example.com/// ")
	t.Setenv("ODOO_DB", " prod ")
	t.Setenv("ODOO_USERNAME", "bot@example.com")
	t.Setenv("ODOO_PASSWORD", " secret ")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Odoo.URL != "https://odoo.example.com" {
		t.Fatalf("expected trailing slashes stripped, got %q", cfg.Odoo.URL)
	}
	if cfg.Odoo.DB != "prod" || cfg.Odoo.Password != "secret" {
		t.Fatalf("expected trimmed fields, got db=%q password=%q", cfg.Odoo.DB, cfg.Odoo.Password)
	}
	if !cfg.Odoo.IsConfigured() {
		t.Fatalf("expected configuration to be complete")
	}
	if cfg.Odoo.Timeout != config.DefaultRPCTimeout {
		t.Fatalf("expected default timeout, got %v", cfg.Odoo.Timeout)
	}
	if cfg.Odoo.Retries != config.DefaultRetries {
		t.Fatalf("expected default retries, got %d", cfg.Odoo.Retries)
	}
	if len(cfg.Reminders.LeadMinutes) != 2 || cfg.Reminders.LeadMinutes[0] != 10 || cfg.Reminders.LeadMinutes[1] != 5 {
		t.Fatalf("unexpected lead minutes: %v", cfg.Reminders.LeadMinutes)
	}
}

func TestLoadConfig_LegacyExpoVariables(t *testing.T) {
	t.Setenv("ODOO_URL", "")
	t.Setenv("EXPO_PUBLIC_ODOO_URL", "https://legacy.example.com/")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Odoo.URL != "https://legacy.example.com" {
		t.Fatalf("expected legacy URL to be used, got %q", cfg.Odoo.URL)
	}
}

func TestLoadConfig_YAMLOverridesEnvironment(t *testing.T) {
	t.Setenv("ODOO_DB", "from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
addr: ":9090"
timezone: "Europe/Madrid"
odoo:
  url: "https://yaml.example.com/"
  db: "from-yaml"
  username: "u"
  password: "p"
  retries: 4
reminders:
  enabled: false
  lead_minutes: [15]
refresh:
  cron: "0 * * * *"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.Odoo.DB != "from-yaml" || cfg.Odoo.Retries != 4 {
		t.Fatalf("yaml values not applied: %#v", cfg)
	}
	if cfg.Odoo.URL != "https://yaml.example.com" {
		t.Fatalf("expected normalized url, got %q", cfg.Odoo.URL)
	}
	if cfg.Reminders.Enabled {
		t.Fatalf("expected reminders disabled")
	}
	if len(cfg.Reminders.LeadMinutes) != 1 || cfg.Reminders.LeadMinutes[0] != 15 {
		t.Fatalf("unexpected lead minutes: %v", cfg.Reminders.LeadMinutes)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Location().String() != "Europe/Madrid" {
		t.Fatalf("unexpected location %s", cfg.Location())
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestOdooConfig_IsConfigured(t *testing.T) {
	full := config.OdooConfig{URL: "https://x", DB: "db", Username: "u", Password: "p"}
	if !full.IsConfigured() {
		t.Fatalf("expected configured")
	}

	for name, cfg := range map[string]config.OdooConfig{
		"url":      {DB: "db", Username: "u", Password: "p"},
		"db":       {URL: "https://x", Username: "u", Password: "p"},
		"username": {URL: "https://x", DB: "db", Password: "p"},
		"password": {URL: "https://x", DB: "db", Username: "u", Password: "   "},
	} {
		if cfg.IsConfigured() {
			t.Fatalf("expected not configured when %s is missing", name)
		}
	}
}

func TestOdooConfig_Fingerprint(t *testing.T) {
	a := config.OdooConfig{URL: "https://x", DB: "db", Username: "u", Password: "p"}
	b := a
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("expected stable fingerprint")
	}
	b.Password = "other"
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatalf("expected fingerprint to change with password")
	}
	// field boundaries matter
	c := config.OdooConfig{URL: "https://x", DB: "dbu", Username: "", Password: "p"}
	d := config.OdooConfig{URL: "https://x", DB: "db", Username: "u", Password: "p"}
	if c.Fingerprint() == d.Fingerprint() {
		t.Fatalf("expected distinct fingerprints across field boundaries")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg := &config.Config{Addr: ":8080", DatabasePath: "x.db"}
		cfg.Normalize()
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config (unconfigured odoo is allowed), got %v", err)
	}

	cfg := valid()
	cfg.Odoo.Retries = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative retries")
	}

	cfg = valid()
	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for bad timezone")
	}

	cfg = valid()
	cfg.Reminders.LeadMinutes = []int{10, 0}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero lead minutes")
	}

	cfg = valid()
	cfg.Refresh.Cron = "every minute"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for bad cron")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Normalize()
	if cfg.Odoo.Backoff != config.DefaultBackoff || cfg.Refresh.Cron != config.DefaultRefreshCron {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
	if cfg.APITimeout != 30*time.Second {
		t.Fatalf("unexpected api timeout %v", cfg.APITimeout)
	}
	if cfg.Location() != time.Local {
		t.Fatalf("expected local location by default")
	}
}
