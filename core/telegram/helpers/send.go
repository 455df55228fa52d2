// Package helpers carries the update context and sends replies through
// the shared dispatcher.
package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper sends through d; nil makes them synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// send runs fn on the dispatcher, or inline when there is none or it
// cannot take the job.
func send(c tele.Context, action string, fn func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return fn()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, "sendMessage", fn)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return fn()
	}
	return err
}

// SendText replies with plain text. Only the first opts value is used.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var o *tele.SendOptions
	if len(opts) > 0 && opts[0] != nil {
		o = opts[0]
	}
	return send(c, "send.text", func() error {
		if o == nil {
			return c.Send(text)
		}
		return c.Send(text, o)
	})
}

// SendMDV2 replies with MarkdownV2 text that the caller already escaped.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	o := &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}
	if len(markup) > 0 {
		o.ReplyMarkup = markup[0]
	}
	return send(c, "send.mdv2", func() error { return c.Send(text, o) })
}
