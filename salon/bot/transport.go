package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/session"
	"github.com/m3rciful/salonbot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/salonbot/core/telegram/sender"
	"github.com/m3rciful/salonbot/salon/booking"

	tele "gopkg.in/telebot.v4"
)

// API is the part of *tele.Bot the transport needs.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// OutboundRecorder counts bot API calls.
type OutboundRecorder interface {
	Outbound(op string, err error)
}

// Transport renders booking views as Telegram messages with inline keyboards.
type Transport struct {
	api  API
	disp *tgsender.Dispatcher
	rec  OutboundRecorder
}

// NewTransport wraps api. Deletes go through disp when it is not nil.
func NewTransport(api API, disp *tgsender.Dispatcher, rec OutboundRecorder) *Transport {
	return &Transport{api: api, disp: disp, rec: rec}
}

var _ booking.Transport = (*Transport)(nil)

func markup(v booking.View) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, len(v.Rows))
	for i, row := range v.Rows {
		btns := make([]keyboard.InlineBtn, len(row))
		for j, o := range row {
			btns[j] = keyboard.InlineBtn{Text: o.Text, Unique: o.Key, Data: o.Payload}
		}
		rows[i] = btns
	}
	return keyboard.Inline(rows...)
}

func stored(h booking.Handle) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(h.MessageID), ChatID: h.ChatID}
}

func (t *Transport) record(op string, err error) {
	if t.rec != nil {
		t.rec.Outbound(op, err)
	}
}

// Send posts v as a new message.
func (t *Transport) Send(ctx context.Context, id session.ID, v booking.View) (booking.Handle, error) {
	if err := ctx.Err(); err != nil {
		return booking.Handle{}, err
	}
	msg, err := t.api.Send(tele.ChatID(id), v.Text, markup(v))
	t.record("send", err)
	if err != nil {
		return booking.Handle{}, fmt.Errorf("send message: %w", err)
	}
	h := booking.Handle{ChatID: int64(id), MessageID: msg.ID}
	if msg.Chat != nil {
		h.ChatID = msg.Chat.ID
	}
	return h, nil
}

// Edit replaces the text and keyboard of h. An unchanged message is not an error.
func (t *Transport) Edit(ctx context.Context, h booking.Handle, v booking.View) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.api.Edit(stored(h), v.Text, markup(v))
	if errors.Is(err, tele.ErrMessageNotModified) {
		err = nil
	}
	t.record("edit", err)
	if err != nil {
		return fmt.Errorf("edit message %d: %w", h.MessageID, err)
	}
	return nil
}

// Delete removes h. With a dispatcher the call is queued and survives the
// caller's deadline.
func (t *Transport) Delete(ctx context.Context, h booking.Handle) error {
	run := func() error {
		err := t.api.Delete(stored(h))
		if errors.Is(err, tele.ErrNotFoundToDelete) {
			logger.Debug(ctx, "tg", "message.delete",
				slog.String("status", "skip"),
				slog.String("reason", "not_found"),
				slog.Int("message_id", h.MessageID),
			)
			return nil
		}
		return err
	}
	if t.disp != nil {
		err := t.disp.Enqueue(context.WithoutCancel(ctx), "delete", "deleteMessage", run)
		if err == nil {
			return nil
		}
		if !errors.Is(err, tgsender.ErrQueueFull) && !errors.Is(err, tgsender.ErrQueueClosed) {
			return err
		}
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", "delete"),
			slog.String("err", err.Error()),
		)
	}
	err := run()
	t.record("delete", err)
	return err
}

// Notify sends a plain text message without a keyboard.
func (t *Transport) Notify(ctx context.Context, id session.ID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.api.Send(tele.ChatID(id), text)
	t.record("notify", err)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
