package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv provides the credentials every Load call needs to pass
// validation.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JQS_JQUANTS_EMAIL", "trader@example.com")
	t.Setenv("JQS_JQUANTS_PASSWORD", "hunter2")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.jquants.com/v1", cfg.JQuants.BaseURL)

	assert.InDelta(t, 1.5, cfg.Screen.PBRMax, 0.001)
	assert.InDelta(t, 2.5, cfg.Screen.YieldMinPct, 0.001)
	assert.InDelta(t, 1e10, cfg.Screen.MarketCapMin, 1)
	assert.Equal(t, 3, cfg.Screen.DividendYears)
	assert.Equal(t, 120, cfg.Screen.StatementScanDays)

	assert.Equal(t, 4, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Fetch.RateLimitBackoff)
	assert.Equal(t, 10*time.Second, cfg.Fetch.ServerErrorBackoff)
	assert.Equal(t, 10*time.Second, cfg.Fetch.TransportBackoff)
	assert.Equal(t, 200*time.Millisecond, cfg.Fetch.PageDelay)
	assert.Equal(t, 14, cfg.Fetch.DateSearchDays)

	assert.Equal(t, "data/output", cfg.Paths.OutputDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromYAMLFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
screen:
  pbr_max: 1.2
  yield_min_pct: 3.0
fetch:
  max_attempts: 6
paths:
  holdings_file: data/input/holdings.xlsx
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 1.2, cfg.Screen.PBRMax, 0.001)
	assert.InDelta(t, 3.0, cfg.Screen.YieldMinPct, 0.001)
	assert.Equal(t, 6, cfg.Fetch.MaxAttempts)
	assert.Equal(t, "data/input/holdings.xlsx", cfg.Paths.HoldingsFile)
	// Untouched fields still get defaults.
	assert.Equal(t, 3, cfg.Screen.DividendYears)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JQS_SCREEN_PBR_MAX", "0.9")
	t.Setenv("JQS_FETCH_RATE_LIMIT_BACKOFF", "30s")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("screen:\n  pbr_max: 1.2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, cfg.Screen.PBRMax, 0.001)
	assert.Equal(t, 30*time.Second, cfg.Fetch.RateLimitBackoff)
}

func TestLoadMissingCredentialsFailsValidation(t *testing.T) {
	t.Setenv("JQS_JQUANTS_EMAIL", "")
	t.Setenv("JQS_JQUANTS_PASSWORD", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoadRejectsMalformedEmail(t *testing.T) {
	t.Setenv("JQS_JQUANTS_EMAIL", "not-an-email")
	t.Setenv("JQS_JQUANTS_PASSWORD", "hunter2")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JQS_LOGGING_LEVEL", "loud")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	setRequiredEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}
