package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvFileVar, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fundraising.db", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.TenantJobTimeout)
	assert.Equal(t, 4, cfg.JobConcurrency)
	assert.Equal(t, time.Minute, cfg.DashboardTTL)
	assert.Equal(t, "@every 15m", cfg.Schedule.ProgressSync)
	assert.Equal(t, "@hourly", cfg.Schedule.ExpirationSweep)
	assert.Equal(t, "0 9 * * *", cfg.Schedule.ExpirationReminders)
	assert.Equal(t, "0 9 * * 1", cfg.Schedule.WeeklyReport)
	assert.Equal(t, "0 9 1 * *", cfg.Schedule.MonthlyReport)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fundraising.yaml")
	yaml := []byte("database_url: postgres://app@localhost/fundraising\n" +
		"timezone: Europe/Madrid\n" +
		"job_concurrency: 2\n" +
		"schedule:\n  weekly_report: \"0 8 * * 1\"\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv(EnvFileVar, path)
	t.Setenv("FUNDRAISING_JOB_CONCURRENCY", "8")
	t.Setenv("FUNDRAISING_TENANT_JOB_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://app@localhost/fundraising", cfg.DatabaseURL)
	assert.Equal(t, 8, cfg.JobConcurrency)
	assert.Equal(t, 45*time.Second, cfg.TenantJobTimeout)
	assert.Equal(t, "0 8 * * 1", cfg.Schedule.WeeklyReport)
	assert.Equal(t, "@hourly", cfg.Schedule.ExpirationSweep)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", loc.String())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv(EnvFileVar, "")
	t.Setenv("FUNDRAISING_TIMEZONE", "Not/AZone")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("FUNDRAISING_TIMEZONE", "UTC")
	t.Setenv("FUNDRAISING_JOB_CONCURRENCY", "0")
	_, err = Load()
	assert.Error(t, err)
}
