package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	coredatabase "github.com/m3rciful/salonbot/core/database"
	"github.com/m3rciful/salonbot/core/session"
)

const sample = `
telegram:
  token: "123:abc"
  admin_id: 42
rate_limit:
  interval_ms: 500
  burst: 3
  exclude_updates: [callback]
metrics:
  listen: "127.0.0.1:9100"
database:
  host: db
  user: salon
  password: secret
  name: salonbot
redis:
  addr: "redis:6379"
session:
  idle_ttl: 30m
booking:
  request_timeout: 7s
  timezone: Europe/Tallinn
  schedule: schedule.yaml
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "postgres.internal")
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.CoreConfig().Telegram.AdminID)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.Equal(t, "postgres.internal", cfg.Database.Host, "env overrides yaml")
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "salonbot:catalog", cfg.Redis.Key)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)

	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
	assert.Equal(t, session.DefaultSweepAttempts, cfg.Session.SweepAttempts)
	assert.Equal(t, 7*time.Second, cfg.Booking.RequestTimeout)
	assert.Equal(t, "Europe/Tallinn", cfg.Booking.Location().String())
	assert.Equal(t, "schedule.yaml", cfg.Booking.Schedule)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "telegram: ["))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database: {host: db, name: x}\n"))
	assert.Error(t, err, "core sections are validated too")
}

func TestNormalize(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Config:   coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "123:abc"}},
			Database: coredatabase.Config{Host: "db", Name: "salonbot"},
		}
	}

	cfg := valid()
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, session.DefaultSweepPeriod, cfg.Session.IdleTTL)
	assert.Equal(t, session.DefaultSweepRetryDelay, cfg.Session.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.Booking.RequestTimeout)
	assert.Equal(t, 10, cfg.Database.MaxConnections)
	assert.Empty(t, cfg.Redis.Key, "redis defaults only apply when enabled")
	assert.NotNil(t, cfg.Booking.Location())

	assert.Error(t, Normalize(nil))
	assert.Error(t, Normalize(&Config{}))

	cfg = valid()
	cfg.Session.IdleTTL = -time.Second
	assert.Error(t, Normalize(cfg))

	cfg = valid()
	cfg.Booking.Timezone = "Mars/Olympus"
	assert.Error(t, Normalize(cfg))
}

func TestNormalize_ReportsEverySection(t *testing.T) {
	cfg := &Config{Session: SessionConfig{IdleTTL: -time.Second}, Booking: BookingConfig{Timezone: "Mars/Olympus"}}
	err := Normalize(cfg)
	require.Error(t, err)
	for _, field := range []string{"telegram.token", "database.host", "session.idle_ttl", "booking.timezone"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestCoreConfig_Nil(t *testing.T) {
	var cfg *Config
	assert.Nil(t, cfg.CoreConfig())
}
