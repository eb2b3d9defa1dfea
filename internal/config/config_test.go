package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FFB_ENV", "FFB_DEBUG", "FFB_CONFIG_FILE", "DATABASE_URL", "REDIS_URL",
		"FFB_BCRYPT_COST", "FFB_TRACKING_SECRET", "FFB_COOKIE_SECURE", "FFB_CORS_ORIGINS",
		"FFB_LOCKOUT_WINDOW", "FFB_SESSION_TTL", "FFB_TRUSTED_PROXIES", "FFB_ACCOUNT_LOCKOUT_THRESHOLD",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MinBcryptCost, cfg.Security.BcryptCost)
	assert.Equal(t, 5, cfg.Security.LockoutThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Security.LockoutDuration)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://ffb@localhost/ffb")
	t.Setenv("FFB_BCRYPT_COST", "13")
	t.Setenv("FFB_LOCKOUT_WINDOW", "1m")
	t.Setenv("FFB_CORS_ORIGINS", "https://example.ae, https://www.example.ae")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://ffb@localhost/ffb", cfg.DatabaseURL)
	assert.Equal(t, 13, cfg.Security.BcryptCost)
	assert.Equal(t, time.Minute, cfg.Security.LockoutWindow)
	assert.Equal(t, []string{"https://example.ae", "https://www.example.ae"}, cfg.CORS.AllowedOrigins)
}

func TestLoadDotEnvAndYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "ffb.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
http_addr: ":9090"
session:
  cookie_name: custom_session
  ttl: 30m
rate_limits:
  login:
    window: 10m
    max: 7
  booking:
    window: 1h
    max: 5
  contact:
    window: 1h
    max: 5
  newsletter:
    window: 1h
    max: 3
`), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("FFB_CONFIG_FILE="+yamlPath+"\nREDIS_URL=redis://localhost:6379/0\n"), 0o600))
	// godotenv does not override variables that are already set.
	require.NoError(t, os.Unsetenv("FFB_CONFIG_FILE"))
	require.NoError(t, os.Unsetenv("REDIS_URL"))

	cfg, err := Load(envPath)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "custom_session", cfg.Session.CookieName)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, RateLimit{Window: 10 * time.Minute, Max: 7}, cfg.RateLimits.Login)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestValidateRejectsWeakBcrypt(t *testing.T) {
	cfg := Default()
	cfg.Security.BcryptCost = 10
	require.Error(t, cfg.Validate())
}

func TestValidateProductionRequirements(t *testing.T) {
	cfg := Default()
	cfg.Env = EnvProduction
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "FFB_TRACKING_SECRET")

	cfg.DatabaseURL = "postgres://db"
	cfg.Tracking.Secret = "0123456789abcdef0123456789abcdef"
	require.NoError(t, cfg.Validate())
}

func TestLoadProductionDefaultsSecureCookie(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv("FFB_COOKIE_SECURE"))
	t.Setenv("FFB_ENV", EnvProduction)
	t.Setenv("DATABASE_URL", "postgres://db")
	t.Setenv("FFB_TRACKING_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.True(t, cfg.Session.Secure)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FFB_SESSION_TTL", "forever")
	_, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FFB_SESSION_TTL")
}

func TestTrustedProxies(t *testing.T) {
	clearEnv(t)
	t.Setenv("FFB_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1 ,::1")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	assert.Empty(t, Default().Security.TrustedProxies, "no proxy is trusted by default")

	prefixes, err := cfg.Security.ProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.1/32", prefixes[1].String())
	assert.Equal(t, "::1/128", prefixes[2].String())

	cfg.Security.TrustedProxies = []string{"proxy.internal"}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy.internal")
}

func TestAccountLockoutThreshold(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10, cfg.Security.AccountLockoutThreshold)
	cfg.Security.AccountLockoutThreshold = 3
	require.Error(t, cfg.Validate(), "account threshold below the per-address threshold")
}
