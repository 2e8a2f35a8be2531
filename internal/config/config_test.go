package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Scraper.Workers)
	assert.Equal(t, 45*time.Second, cfg.Scraper.JobTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "es-ES", cfg.Browser.Locale)
	assert.Equal(t, "America/Mexico_City", cfg.Browser.TimezoneID)
	assert.Equal(t, "pricewatch", cfg.Database.DBName)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SCRAPER_WORKERS", "8")
	t.Setenv("SCRAPER_JOB_TIMEOUT", "90s")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_GEO_LAT", "40.4168")
	t.Setenv("DB_PORT", "5433")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Scraper.Workers)
	assert.Equal(t, 90*time.Second, cfg.Scraper.JobTimeout)
	assert.False(t, cfg.Browser.Headless)
	assert.InDelta(t, 40.4168, cfg.Browser.Latitude, 0.0001)
	assert.Equal(t, 5433, cfg.Database.Port)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SCRAPER_WORKERS", "many")
	t.Setenv("SCRAPER_JOB_TIMEOUT", "soon")
	t.Setenv("BROWSER_HEADLESS", "si")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scraper.Workers)
	assert.Equal(t, 45*time.Second, cfg.Scraper.JobTimeout)
	assert.True(t, cfg.Browser.Headless)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Scraper.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg.Scraper.Workers = 1
	cfg.Scraper.JobTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg.Scraper.JobTimeout = time.Second
	cfg.Scraper.RateLimitMin = 10 * time.Second
	cfg.Scraper.RateLimitMax = time.Second
	assert.Error(t, cfg.Validate())
}
