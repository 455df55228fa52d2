package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	coretelegram "github.com/m3rciful/salonbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct {
	opts coretelegram.RunOptions
	err  error
}

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, a.err }

func TestRun_Lifecycle(t *testing.T) {
	t.Setenv("SALON_CONFIG", "/etc/salonbot.yaml")
	var steps []string
	core := &coreconfig.Config{}

	err := Run(Options{
		ConfigEnvVar: "SALON_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			steps = append(steps, "load:"+path)
			return carrier{core}, nil
		},
		Bootstrap: func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error) {
			require.NotNil(t, ctx)
			steps = append(steps, "bootstrap")
			return app{opts: coretelegram.RunOptions{
				Config:  cfg.CoreConfig(),
				OnStart: func(context.Context, coretelegram.Runtime) error { steps = append(steps, "start"); return nil },
				OnStop:  func(context.Context, coretelegram.Runtime) error { steps = append(steps, "stop"); return nil },
			}}, nil
		},
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			assert.Same(t, core, opts.Config)
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
		ShutdownLogger: func() error { steps = append(steps, "logger"); return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"load:/etc/salonbot.yaml", "bootstrap", "start", "stop", "logger"}, steps)
}

func TestRun_Errors(t *testing.T) {
	load := func(string) (ConfigCarrier, error) { return carrier{&coreconfig.Config{}}, nil }

	assert.Error(t, Run(Options{}))
	assert.Error(t, Run(Options{LoadConfig: load}))

	t.Setenv("CONFIG_PATH", "")
	err := Run(Options{LoadConfig: load, Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) { return app{}, nil }})
	assert.ErrorContains(t, err, "config path not provided")

	boom := errors.New("db down")
	err = Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        load,
		Bootstrap:         func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)

	err = Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return carrier{}, nil },
		Bootstrap:         func(context.Context, ConfigCarrier) (TelegramApp, error) { return app{}, nil },
	})
	assert.ErrorContains(t, err, "missing core configuration")
}
