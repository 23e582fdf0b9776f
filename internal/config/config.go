// Package config loads the service configuration from a YAML file, an
// optional .env file and SMARTSERVE_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	MetricsConfig struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Database struct {
		Driver    string `yaml:"driver"`
		DSN       string `yaml:"dsn"`
		ProjectID string `yaml:"project_id"`
	} `yaml:"database"`

	Venue             string `yaml:"venue"`
	OrderHistoryLimit int    `yaml:"order_history_limit"`

	Timing Timing `yaml:"timing"`

	Staff struct {
		Server   string `yaml:"server"`
		Preparer string `yaml:"preparer"`
	} `yaml:"staff"`

	Auth struct {
		Secret   string        `yaml:"secret"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Insights struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		Token    string `yaml:"token"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"insights"`
}

// Timing holds the countdown and lateness thresholds
type Timing struct {
	BaseWait             time.Duration `yaml:"base_wait"`
	OrderLateThreshold   time.Duration `yaml:"order_late_threshold"`
	ServiceLateThreshold time.Duration `yaml:"service_late_threshold"`
	FeedbackPromptDelay  time.Duration `yaml:"feedback_prompt_delay"`
	Tick                 time.Duration `yaml:"tick"`
}

// Database drivers
const (
	DriverSQLite    = "sqlite3"
	DriverPostgres  = "postgres"
	DriverFirestore = "firestore"
)

// Insight providers
const (
	InsightsHeuristic = "heuristic"
	InsightsOpenAI    = "openai"
)

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.MetricsConfig.Enabled = true
	cfg.MetricsConfig.Port = 9090
	cfg.MetricsConfig.Path = "/metrics"
	cfg.Database.Driver = DriverSQLite
	cfg.Database.DSN = "smartserve.db"
	cfg.Venue = "smartserve-demo"
	cfg.OrderHistoryLimit = 50
	cfg.Timing = Timing{
		BaseWait:             5 * time.Second,
		OrderLateThreshold:   10 * time.Second,
		ServiceLateThreshold: 5 * time.Second,
		FeedbackPromptDelay:  5 * time.Second,
		Tick:                 time.Second,
	}
	cfg.Staff.Server = "John D."
	cfg.Staff.Preparer = "Chef Michael"
	cfg.Auth.Secret = "changeme"
	cfg.Auth.TokenTTL = 24 * time.Hour
	cfg.Insights.Provider = InsightsHeuristic
	cfg.Insights.Model = "gpt-4o-mini"
	return cfg
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Driver, "SMARTSERVE_DB_DRIVER")
	setString(&c.Database.DSN, "SMARTSERVE_DB_DSN")
	setString(&c.Database.ProjectID, "SMARTSERVE_FIRESTORE_PROJECT")
	setString(&c.Venue, "SMARTSERVE_VENUE")
	setString(&c.Auth.Secret, "SMARTSERVE_AUTH_SECRET")
	setString(&c.Insights.Provider, "SMARTSERVE_INSIGHTS_PROVIDER")
	setString(&c.Insights.Model, "SMARTSERVE_INSIGHTS_MODEL")
	setString(&c.Insights.Token, "OPENAI_API_KEY")
	setString(&c.Insights.Token, "SMARTSERVE_INSIGHTS_TOKEN")

	if err := setInt(&c.Server.Port, "SMARTSERVE_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.MetricsConfig.Port, "SMARTSERVE_METRICS_PORT"); err != nil {
		return err
	}
	if err := setDuration(&c.Timing.BaseWait, "SMARTSERVE_BASE_WAIT"); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for %s", c.Database.Driver)
		}
	case DriverFirestore:
		if c.Database.ProjectID == "" {
			return fmt.Errorf("database.project_id is required for firestore")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Insights.Provider {
	case InsightsHeuristic:
	case InsightsOpenAI:
		if c.Insights.Token == "" {
			return fmt.Errorf("insights.token is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown insights provider %q", c.Insights.Provider)
	}

	if c.Venue == "" {
		return fmt.Errorf("venue is required")
	}
	if c.OrderHistoryLimit <= 0 {
		return fmt.Errorf("order_history_limit must be positive")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Timing.Tick <= 0 {
		return fmt.Errorf("timing.tick must be positive")
	}
	return nil
}
