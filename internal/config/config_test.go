package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vicekohler/foodcompare/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/foodcompare?sslmode=disable",
		"REDIS_URL":    "redis://localhost:6379/0",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "CLP", cfg.CurrencyCode)
	require.Equal(t, 48*time.Hour, cfg.StaleAfter)
	require.Equal(t, 60, cfg.RateLimitMax)
	require.Equal(t, int64(1<<20), cfg.BodyLimitBytes)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["PRICE_STALE_HOURS"] = "72"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example.com, https://b.example.com"
	env["CATALOG_CACHE_TTL"] = "5m"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 72*time.Hour, cfg.StaleAfter)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
}

func TestLoadRejectsNonPositiveStaleHours(t *testing.T) {
	env := baseEnv()
	env["PRICE_STALE_HOURS"] = "-1"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}
