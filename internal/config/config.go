package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRPCTimeout  = 15 * time.Second
	DefaultRetries     = 2
	DefaultBackoff     = 500 * time.Millisecond
	DefaultRefreshCron = "*/15 * * * *"
)

// DefaultLeadMinutes are the reminder offsets before a meeting starts.
var DefaultLeadMinutes = []int{10, 5}

type Config struct {
	Addr         string          `yaml:"addr"`
	JWTSecret    string          `yaml:"jwt_secret"`
	APITimeout   time.Duration   `yaml:"timeout"`
	DatabasePath string          `yaml:"database_path"`
	Timezone     string          `yaml:"timezone"`
	Odoo         OdooConfig      `yaml:"odoo"`
	Reminders    RemindersConfig `yaml:"reminders"`
	Refresh      RefreshConfig   `yaml:"refresh"`
}

// OdooConfig is the connection to the Odoo backend. It is read once at
// startup and never mutated afterwards.
type OdooConfig struct {
	URL      string        `yaml:"url"`
	DB       string        `yaml:"db"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
	Backoff  time.Duration `yaml:"backoff"`
}

type RemindersConfig struct {
	// Enabled plays the role of the OS notification permission.
	Enabled     bool  `yaml:"enabled"`
	LeadMinutes []int `yaml:"lead_minutes"`
	Workers     int   `yaml:"workers"`
}

type RefreshConfig struct {
	Cron string `yaml:"cron"`
}

// LoadConfig builds the configuration from an optional .env file, the process
// environment and an optional YAML file, in that order of precedence (YAML wins).
func LoadConfig(path string) (*Config, error) {
	// .env is optional; real environment variables take precedence over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Addr:         getEnv("SIMPLYMEET_ADDR", ":8080"),
		JWTSecret:    getEnv("SIMPLYMEET_JWT_SECRET", ""),
		APITimeout:   30 * time.Second,
		DatabasePath: getEnv("SIMPLYMEET_DATABASE_PATH", "simplymeet.db"),
		Timezone:     getEnv("SIMPLYMEET_TIMEZONE", ""),
		Odoo: OdooConfig{
			URL:      getEnv("ODOO_URL", os.Getenv("EXPO_PUBLIC_ODOO_URL")),
			DB:       getEnv("ODOO_DB", os.Getenv("EXPO_PUBLIC_ODOO_DB")),
			Username: getEnv("ODOO_USERNAME", os.Getenv("EXPO_PUBLIC_ODOO_USERNAME")),
			Password: getEnv("ODOO_PASSWORD", os.Getenv("EXPO_PUBLIC_ODOO_PASSWORD")),
			Retries:  DefaultRetries,
		},
		Reminders: RemindersConfig{Enabled: true},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize trims values and fills zero values with defaults.
func (c *Config) Normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.DatabasePath = strings.TrimSpace(c.DatabasePath)
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.APITimeout <= 0 {
		c.APITimeout = 30 * time.Second
	}

	c.Odoo.Normalize()

	if len(c.Reminders.LeadMinutes) == 0 {
		c.Reminders.LeadMinutes = append([]int(nil), DefaultLeadMinutes...)
	}
	if c.Reminders.Workers <= 0 {
		c.Reminders.Workers = 1
	}
	c.Refresh.Cron = strings.TrimSpace(c.Refresh.Cron)
	if c.Refresh.Cron == "" {
		c.Refresh.Cron = DefaultRefreshCron
	}
}

// Normalize trims the connection fields and strips trailing slashes from URL.
func (o *OdooConfig) Normalize() {
	o.URL = strings.TrimRight(strings.TrimSpace(o.URL), "/")
	o.DB = strings.TrimSpace(o.DB)
	o.Username = strings.TrimSpace(o.Username)
	o.Password = strings.TrimSpace(o.Password)
	if o.Timeout <= 0 {
		o.Timeout = DefaultRPCTimeout
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
}

// IsConfigured reports whether all four connection fields are present.
func (o OdooConfig) IsConfigured() bool {
	return strings.TrimSpace(o.URL) != "" &&
		strings.TrimSpace(o.DB) != "" &&
		strings.TrimSpace(o.Username) != "" &&
		strings.TrimSpace(o.Password) != ""
}

// Fingerprint identifies a set of credentials without exposing them.
func (o OdooConfig) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{o.URL, o.DB, o.Username, o.Password} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate rejects structurally invalid values. Missing Odoo credentials are
// allowed: the service then runs unconfigured.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.Odoo.Retries < 0 {
		return errors.New("odoo.retries must not be negative")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	for _, m := range c.Reminders.LeadMinutes {
		if m <= 0 {
			return fmt.Errorf("reminders.lead_minutes must be positive, got %d", m)
		}
	}
	if _, err := cron.ParseStandard(c.Refresh.Cron); err != nil {
		return fmt.Errorf("invalid refresh.cron %q: %w", c.Refresh.Cron, err)
	}

	return nil
}

// Location resolves Timezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
