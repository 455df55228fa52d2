package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Defaults(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t", RunMode: "Polling"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback "}},
		Metrics:   MetricsConfig{Listen: ":9090"},
	}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
	assert.Equal(t, 1, cfg.RateLimit.Burst)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestNormalize_Rejects(t *testing.T) {
	for name, cfg := range map[string]*Config{
		"nil":          nil,
		"no token":     {},
		"bad run mode": {Telegram: TelegramConfig{Token: "t", RunMode: "push"}},
		"webhook without url": {
			Telegram: TelegramConfig{Token: "t", RunMode: RunModeWebhook},
		},
		"unknown exclusion": {
			Telegram:  TelegramConfig{Token: "t"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}},
		},
		"relative metrics path": {
			Telegram: TelegramConfig{Token: "t"},
			Metrics:  MetricsConfig{Listen: ":9090", Path: "metrics"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Normalize(cfg))
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  token: from-file
rate_limit:
  interval_ms: 500
  burst: 3
`), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 500, cfg.RateLimit.IntervalMS)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
}

func TestNormalize_CollectsErrors(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{RunMode: RunModeWebhook},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll", "", "message"}},
		Metrics:   MetricsConfig{Path: "metrics"},
	}
	err := Normalize(cfg)
	require.Error(t, err)
	for _, field := range []string{"telegram.token", "webhook.url", "webhook.port", "poll", "metrics.path"} {
		assert.Contains(t, err.Error(), field)
	}
	assert.Equal(t, []string{UpdateMessage}, cfg.RateLimit.ExcludeUpdates)
}

func TestDecode_MissingFile(t *testing.T) {
	var cfg Config
	assert.Error(t, Decode(filepath.Join(t.TempDir(), "none.yaml"), &cfg))
}
