package app

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	coredatabase "github.com/m3rciful/salonbot/core/database"
	tg "github.com/m3rciful/salonbot/core/telegram"
	"github.com/m3rciful/salonbot/salon/booking"
	"github.com/m3rciful/salonbot/salon/config"
	"github.com/m3rciful/salonbot/salon/storage"
)

func testApp(t *testing.T, metricsListen string) (*App, sqlmock.Sqlmock) {
	t.Helper()
	cfg := &config.Config{
		Config: coreconfig.Config{
			Telegram:  coreconfig.TelegramConfig{Token: "t", AdminID: 42},
			RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500},
			Metrics:   coreconfig.MetricsConfig{Listen: metricsListen},
		},
		Database: coredatabase.Config{Host: "db", Name: "salonbot"},
	}
	require.NoError(t, config.Normalize(cfg))

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	tb, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)

	a := &App{cfg: cfg, db: sqlx.NewDb(raw, "sqlmock"), tgbot: tb}
	require.NoError(t, a.wire(storage.ScheduleSeeder{}, cfg.Booking.Location()))
	t.Cleanup(a.dispatcher.Close)
	return a, mock
}

func TestWire_RunOptions(t *testing.T) {
	a, mock := testApp(t, "")

	for _, kind := range booking.ButtonActions() {
		_, ok := a.registry.GetCallback(string(kind))
		assert.True(t, ok, kind)
	}

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, a.tgbot, opts.Bot)
	assert.Same(t, a.dispatcher, opts.Dispatcher)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		require.NotNil(t, r.Handler)
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{tele.OnCallback, tele.OnText, tele.OnDocument, tele.OnContact, "/start", "/menu", "/stats", "/reload"} {
		assert.True(t, endpoints[want], want)
	}

	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, names)

	mock.ExpectClose()
	require.NoError(t, opts.OnStop(context.Background(), tg.Runtime{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_ServesMetrics(t *testing.T) {
	a, mock := testApp(t, "127.0.0.1:0")
	require.NotNil(t, a.collector)

	require.NoError(t, a.start(context.Background(), tg.Runtime{}))
	require.NotNil(t, a.metricsSrv)
	assert.True(t, a.sweeper.IsRunning())

	mock.ExpectClose()
	require.NoError(t, a.close(context.Background()))
	assert.False(t, a.sweeper.IsRunning())
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}
