// Package config holds the configuration sections shared by every bot built
// on the core packages: Telegram access, update delivery, logging, the
// per-user rate limit and the metrics endpoint.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Update delivery modes.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by RateLimitConfig.ExcludeUpdates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

// TelegramConfig is the bot identity and the way updates arrive.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// AdminID may run /reload and /stats. Zero disables admin commands.
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds of 0 selects the client default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig is required when RunMode is webhook.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig configures core/logger. Files are written under Dir; an
// empty Dir keeps logging on stdout only.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Stacks      string `yaml:"stacks" envconfig:"LOG_STACKS"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile is "dev", "debug" or "prod"; it picks the default format.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig is a per-user token bucket: one token every IntervalMS,
// at most Burst saved up. IntervalMS <= 0 turns the limiter off.
type RateLimitConfig struct {
	IntervalMS int `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst      int `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	// ExcludeUpdates lists update kinds that bypass the limiter.
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// MetricsConfig serves prometheus metrics on Listen; empty disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
	Path   string `yaml:"path" envconfig:"METRICS_PATH"`
}

// Config is the core part of a bot configuration. Bots embed it inline.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Decode fills dst from the YAML file at path and then from the environment.
// Environment values win.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Load decodes and normalizes a core-only configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and reports every invalid field at once.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	var result *multierror.Error
	result = multierror.Append(result, cfg.Telegram.normalize(cfg.Webhook)...)
	result = multierror.Append(result, cfg.RateLimit.normalize()...)
	result = multierror.Append(result, cfg.Metrics.normalize()...)
	return result.ErrorOrNil()
}

func (t *TelegramConfig) normalize(wh WebhookConfig) []error {
	var errs []error
	if strings.TrimSpace(t.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if t.LongPollTimeoutSeconds < 0 {
		errs = append(errs, errors.New("telegram.longpoll_timeout_seconds must be >= 0"))
	}

	mode := strings.ToLower(strings.TrimSpace(t.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		t.RunMode = RunModeLongpoll
	case RunModeWebhook:
		t.RunMode = RunModeWebhook
		if strings.TrimSpace(wh.URL) == "" {
			errs = append(errs, errors.New("webhook.url is required in webhook mode"))
		}
		if strings.TrimSpace(wh.Listen) == "" {
			errs = append(errs, errors.New("webhook.listen is required in webhook mode"))
		}
		if wh.Port <= 0 {
			errs = append(errs, errors.New("webhook.port must be > 0 in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("telegram.run_mode %q: want %s or %s", t.RunMode, RunModeLongpoll, RunModeWebhook))
	}
	return errs
}

func (r *RateLimitConfig) normalize() []error {
	var errs []error
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch {
		case kind == "":
		case slices.Contains(updateKinds, kind):
			kinds = append(kinds, kind)
		default:
			errs = append(errs, fmt.Errorf("rate_limit.exclude_updates: unknown update kind %q", v))
		}
	}
	r.ExcludeUpdates = kinds
	r.Burst = max(r.Burst, 1)
	return errs
}

func (m *MetricsConfig) normalize() []error {
	if m.Listen != "" && m.Path == "" {
		m.Path = "/metrics"
	}
	if m.Path != "" && !strings.HasPrefix(m.Path, "/") {
		return []error{fmt.Errorf("metrics.path %q must start with /", m.Path)}
	}
	return nil
}
