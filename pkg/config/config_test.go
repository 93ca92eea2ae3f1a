package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// baseEnv sets the variables every deployment must provide.
func baseEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		EnvAppEnv:                 "prod",
		EnvPort:                   "8081",
		EnvDBDSN:                  "postgres://pos:pos@db:5432/pos?sslmode=disable",
		EnvRedisURL:               "redis://cache:6379/1",
		EnvJWTSecret:              "terminal-secret",
		EnvJWTIssuer:              "pos-api",
		EnvJWTExpMins:             "15",
		EnvRefreshTokenTTLMinutes: "720",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	baseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.True(t, cfg.App.IsProd())
	require.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	require.True(t, cfg.Checkout.TaxRatePercent.Equal(decimal.NewFromInt(10)), "tax rate %s", cfg.Checkout.TaxRatePercent)
	require.Equal(t, 10, cfg.Checkout.LowStockThreshold)
	require.Equal(t, 12*time.Hour, cfg.Cart.TTL)
	require.Equal(t, "pos-sales-events", cfg.PubSub.SalesTopic)
	require.Equal(t, time.Minute, cfg.RateLimit.LoginWindow)
	require.Equal(t, 5, cfg.RateLimit.LoginEmailLimit)

	loc, err := cfg.Analytics.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoadCheckoutSettings(t *testing.T) {
	cases := []struct {
		rate    string
		wantErr bool
	}{
		{rate: "0"},
		{rate: "7.25"},
		{rate: "100"},
		{rate: "-1", wantErr: true},
		{rate: "120", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.rate, func(t *testing.T) {
			baseEnv(t)
			t.Setenv(EnvTaxRatePercent, tc.rate)

			cfg, err := Load()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, cfg.Checkout.TaxRatePercent.Equal(decimal.RequireFromString(tc.rate)))
		})
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Run("missing app env", func(t *testing.T) {
		baseEnv(t)
		require.NoError(t, os.Unsetenv(EnvAppEnv))
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("unknown timezone", func(t *testing.T) {
		baseEnv(t)
		t.Setenv("POS_ANALYTICS_TIMEZONE", "Mars/Olympus_Mons")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoadDatabaseSource(t *testing.T) {
	t.Run("discrete settings build a dsn", func(t *testing.T) {
		baseEnv(t)
		t.Setenv(EnvDBDSN, "")
		t.Setenv(EnvDBHost, "pg.store-12")
		t.Setenv(EnvDBUser, "till")
		t.Setenv(EnvDBName, "shop")

		cfg, err := Load()
		require.NoError(t, err)
		require.Equal(t, "postgres://till@pg.store-12:5432/shop?sslmode=disable", cfg.DB.DSN)
	})
	t.Run("sqlite needs no dsn", func(t *testing.T) {
		baseEnv(t)
		t.Setenv(EnvDBDSN, "")
		t.Setenv(EnvUseSQLite, "true")

		cfg, err := Load()
		require.NoError(t, err)
		require.Empty(t, cfg.DB.DSN)
	})
}

func TestAppEnvironmentMatching(t *testing.T) {
	require.True(t, AppConfig{Env: "DEV"}.IsDev())
	require.False(t, AppConfig{Env: "DEV"}.IsProd())
	require.True(t, AppConfig{Env: "Prod"}.IsProd())
	require.False(t, AppConfig{Env: "staging"}.IsDev())
}
