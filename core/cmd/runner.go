// Package cmd is the shared main: it loads the config, bootstraps the bot and
// runs it until a signal arrives.
package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	"github.com/m3rciful/salonbot/core/logger"
	coretelegram "github.com/m3rciful/salonbot/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

// ConfigCarrier is a bot configuration that embeds the core sections.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is a bootstrapped bot ready to be run.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options wire a concrete bot into Run.
type Options struct {
	// ConfigEnvVar names the variable holding the config path; CONFIG_PATH by default.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Signals cancel the run context; nil means SIGINT and SIGTERM.
	Signals []os.Signal
}

// Run blocks until the bot stops. The logger is flushed on every exit path
// after a successful bootstrap.
func Run(opts Options) error {
	switch {
	case opts.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case opts.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}

	path, err := opts.configPath()
	if err != nil {
		return err
	}
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), opts.signals()...)
	defer stop()

	started := time.Now()
	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer opts.flushLogger()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	announceLifecycle(&runOpts, started)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

func (o Options) configPath() (string, error) {
	env := cmp.Or(o.ConfigEnvVar, defaultConfigEnv)
	if path := cmp.Or(os.Getenv(env), o.DefaultConfigPath); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

func (o Options) signals() []os.Signal {
	if o.Signals != nil {
		return o.Signals
	}
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

func (o Options) flushLogger() {
	shutdown := o.ShutdownLogger
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	if err := shutdown(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}

// announceLifecycle logs app.ready after the bot's own OnStart succeeds and
// app.shutdown before its OnStop runs.
func announceLifecycle(ro *coretelegram.RunOptions, started time.Time) {
	onStart, onStop := ro.OnStart, ro.OnStop
	ro.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready", slog.Duration("startup_duration", logger.Took(started)))
		return nil
	}
	ro.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown", slog.Duration("uptime", logger.Took(started)))
		if onStop == nil {
			return nil
		}
		return onStop(ctx, rt)
	}
}
