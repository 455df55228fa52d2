// Package config loads the salon bot configuration: the shared core sections
// plus database, redis, session and booking settings.
package config

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hashicorp/go-multierror"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	coredatabase "github.com/m3rciful/salonbot/core/database"
	"github.com/m3rciful/salonbot/core/session"
	"github.com/m3rciful/salonbot/salon/catalog"
)

// SessionConfig controls idle session eviction.
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" envconfig:"SESSION_IDLE_TTL"`
	SweepAttempts int           `yaml:"sweep_attempts" envconfig:"SESSION_SWEEP_ATTEMPTS"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"SESSION_SWEEP_RETRY_DELAY"`
}

// BookingConfig controls the booking flow.
type BookingConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"BOOKING_REQUEST_TIMEOUT"`
	// Timezone is an IANA name; dates and "today" are computed in it.
	Timezone string `yaml:"timezone" envconfig:"BOOKING_TIMEZONE"`
	// Schedule is the YAML file seeded into the slots table on start and /reload.
	Schedule string `yaml:"schedule" envconfig:"BOOKING_SCHEDULE"`

	location *time.Location
}

// Location returns the resolved timezone. It is set by Normalize.
func (b BookingConfig) Location() *time.Location {
	if b.location == nil {
		return time.Local
	}
	return b.location
}

// Config is the complete salon bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Redis    catalog.RedisConfig `yaml:"redis"`
	Session  SessionConfig       `yaml:"session"`
	Booking  BookingConfig       `yaml:"booking"`
}

// CoreConfig exposes the shared core sections.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the core and salon sections, filling defaults. All
// problems are reported together.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	var result *multierror.Error
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		result = multierror.Append(result, err)
	}
	result = multierror.Append(result,
		cfg.Database.Normalize(),
		cfg.Session.normalize(),
		cfg.Booking.normalize(),
	)
	cfg.normalizeRedis()
	return result.ErrorOrNil()
}

func (c *Config) normalizeRedis() {
	if !c.Redis.Enabled() {
		return
	}
	if c.Redis.Key == "" {
		c.Redis.Key = "salonbot:catalog"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 5 * time.Minute
	}
}

func (s *SessionConfig) normalize() error {
	if s.IdleTTL < 0 {
		return errors.New("session.idle_ttl must be >= 0")
	}
	if s.IdleTTL == 0 {
		s.IdleTTL = session.DefaultSweepPeriod
	}
	if s.SweepAttempts <= 0 {
		s.SweepAttempts = session.DefaultSweepAttempts
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = session.DefaultSweepRetryDelay
	}
	return nil
}

func (b *BookingConfig) normalize() error {
	if b.RequestTimeout <= 0 {
		b.RequestTimeout = 10 * time.Second
	}
	tz := cmp.Or(strings.TrimSpace(b.Timezone), "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("booking.timezone %q: %w", b.Timezone, err)
	}
	b.Timezone = tz
	b.location = loc
	return nil
}
