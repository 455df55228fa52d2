package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/salonbot/core/config"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return b
}

func TestRunTelegram_StartFailureClosesDispatcher(t *testing.T) {
	boom := errors.New("metrics port busy")
	var rt Runtime
	err := RunTelegram(context.Background(), RunOptions{
		Config:                  &coreconfig.Config{},
		Bot:                     offlineBot(t),
		DisableWebhookCleanup:   true,
		DisableHelperDispatcher: true,
		OnStart: func(_ context.Context, r Runtime) error {
			rt = r
			return boom
		},
	})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, rt.Registry)
	require.NotNil(t, rt.Dispatcher)
	assert.Error(t, rt.Dispatcher.Enqueue(context.Background(), "menu", "sendMessage", func() error { return nil }))
}

func TestRunTelegram_NilConfig(t *testing.T) {
	assert.Error(t, RunTelegram(context.Background(), RunOptions{}))
}

func TestNewPoller(t *testing.T) {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{LongPollTimeoutSeconds: 25}}
	lp, ok := newPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 25*time.Second, lp.Timeout)

	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{Listen: "0.0.0.0", Port: 8443, URL: "https://salon.example/hook"}
	wh, ok := newPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://salon.example/hook", wh.Endpoint.PublicURL)
}
