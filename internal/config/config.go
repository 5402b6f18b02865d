// Package config loads runtime settings from .env, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	EnvPrefix  = "FUNDRAISING"
	EnvFileVar = "FUNDRAISING_CONFIG"
)

type Schedule struct {
	ProgressSync        string `mapstructure:"progress_sync"`
	ExpirationSweep     string `mapstructure:"expiration_sweep"`
	ExpirationReminders string `mapstructure:"expiration_reminders"`
	WeeklyReport        string `mapstructure:"weekly_report"`
	MonthlyReport       string `mapstructure:"monthly_report"`
}

type Config struct {
	DatabaseURL       string        `mapstructure:"database_url"`
	DevMode           bool          `mapstructure:"dev_mode"`
	Timezone          string        `mapstructure:"timezone"`
	FCMServiceAccount string        `mapstructure:"fcm_service_account"`
	TenantJobTimeout  time.Duration `mapstructure:"tenant_job_timeout"`
	JobConcurrency    int           `mapstructure:"job_concurrency"`
	DashboardTTL      time.Duration `mapstructure:"dashboard_ttl"`
	CampaignTTL       time.Duration `mapstructure:"campaign_ttl"`
	Schedule          Schedule      `mapstructure:"schedule"`
}

var defaults = map[string]interface{}{
	"database_url":                  "fundraising.db",
	"dev_mode":                      false,
	"timezone":                      "UTC",
	"fcm_service_account":           "",
	"tenant_job_timeout":            "30s",
	"job_concurrency":               4,
	"dashboard_ttl":                 "60s",
	"campaign_ttl":                  "5m",
	"schedule.progress_sync":        "@every 15m",
	"schedule.expiration_sweep":     "@hourly",
	"schedule.expiration_reminders": "0 9 * * *",
	"schedule.weekly_report":        "0 9 * * 1",
	"schedule.monthly_report":       "0 9 1 * *",
}

// Load reads .env from the working directory when present, then the YAML file named by
// FUNDRAISING_CONFIG, then FUNDRAISING_* variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvFileVar); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("database_url is required")
	}
	if c.JobConcurrency <= 0 {
		return fmt.Errorf("job_concurrency must be positive, got %d", c.JobConcurrency)
	}
	if c.TenantJobTimeout <= 0 {
		return fmt.Errorf("tenant_job_timeout must be positive, got %s", c.TenantJobTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the deployment timezone jobs are scheduled in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
