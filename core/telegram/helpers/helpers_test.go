package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/telegram/sender"
)

type sent struct {
	what any
	opts []any
}

// outbox records Send calls instead of reaching Telegram.
type outbox struct {
	tele.Context
	ch chan sent
}

func (o outbox) Send(what any, opts ...any) error {
	o.ch <- sent{what, opts}
	return nil
}

func newContext(t *testing.T) outbox {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	c := b.NewContext(tele.Update{ID: 10, Message: &tele.Message{
		Sender: &tele.User{ID: 7},
		Chat:   &tele.Chat{ID: 7, Type: tele.ChatPrivate},
		Text:   "/start",
	}})
	return outbox{Context: c, ch: make(chan sent, 4)}
}

func TestBuildContext(t *testing.T) {
	c := newContext(t)
	ctx := BuildContext(c)
	assert.Equal(t, logger.Meta{RID: "a.7.7", UpdateID: 10, UserID: 7, ChatID: 7}, logger.MetaFrom(ctx))
	assert.Equal(t, ctx, BuildContext(c), "context is built once per update")

	hctx := WithHandler(c, "command.start")
	assert.Equal(t, "command.start", logger.MetaFrom(hctx).Handler)
	stored, ok := ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, hctx, stored)
}

func TestSendText_Synchronous(t *testing.T) {
	SetDispatcher(nil)
	c := newContext(t)
	require.NoError(t, SendText(c, "Привет"))
	got := <-c.ch
	assert.Equal(t, "Привет", got.what)
	assert.Empty(t, got.opts)
}

func TestSendMDV2_ThroughDispatcher(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	SetDispatcher(d)
	t.Cleanup(func() {
		SetDispatcher(nil)
		d.Close()
	})

	c := newContext(t)
	require.NoError(t, SendMDV2(c, "*Статистика*"))
	select {
	case got := <-c.ch:
		require.Len(t, got.opts, 1)
		opts, ok := got.opts[0].(*tele.SendOptions)
		require.True(t, ok)
		assert.Equal(t, tele.ModeMarkdownV2, opts.ParseMode)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not sent")
	}
}

func TestSend_ClosedDispatcherFallsBack(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	d.Close()
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })

	c := newContext(t)
	require.NoError(t, SendText(c, "ok"))
	assert.Equal(t, "ok", (<-c.ch).what)
}
