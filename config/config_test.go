package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("nonexistent-config")
	require.NoError(t, err)

	assert.Equal(t, "blmotorcycles-backend", cfg.AppName)
	assert.Equal(t, "development", cfg.ENV)
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)

	assert.Equal(t, "blmotorcycles", cfg.Postgres.DBName)
	assert.Equal(t, 10, cfg.Postgres.PoolSize)

	assert.True(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)

	assert.Equal(t, 22, cfg.Feed.Port)
	assert.Equal(t, ".csv", cfg.Feed.Extension)
	assert.Equal(t, 30*time.Second, cfg.Feed.Timeout)

	assert.InDelta(t, 1.5, cfg.Pricing.Markup, 1e-9)
	assert.InDelta(t, 6.0, cfg.Pricing.DeliveryCost, 1e-9)

	assert.Equal(t, "sales@bikeit.co.uk", cfg.Shop.SupplierEmail)
	assert.Equal(t, 587, cfg.SMTP.Port)

	assert.Equal(t, 2*time.Hour, cfg.Sync.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Sync.DrainInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FTP_HOST", "sftp.bikeit.example")
	t.Setenv("FTP_PORT", "2222")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_override")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load("nonexistent-config")
	require.NoError(t, err)

	assert.Equal(t, "sftp.bikeit.example", cfg.Feed.Host)
	assert.Equal(t, 2222, cfg.Feed.Port)
	assert.Equal(t, "sk_test_override", cfg.Stripe.SecretKey)
	assert.True(t, cfg.IsProduction())
}
