package middleware

import (
	"log/slog"

	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/salonbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const loggedKey = "salonbot.logged"

// LoggerMiddleware attaches the update context and logs a sampled
// update.received line, once per update even when applied twice.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if c.Get(loggedKey) == nil {
			c.Set(loggedKey, true)
			if logger.Sampled() {
				logger.Debug(ctx, "tg", "update.received", receivedAttrs(c)...)
			}
		}
		return next(c)
	}
}

func receivedAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("kind", UpdateKind(c.Update()))}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.Clip(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}
	if cb := c.Callback(); cb != nil {
		key, payload := callbacks.Parse(cb)
		attrs = append(attrs,
			slog.String("cb_key", logger.Clip(key, 64)),
			slog.String("payload", logger.Clip(payload, 128)),
		)
	} else if t := c.Text(); t != "" {
		// Message text may hold a phone number; only the length is kept.
		attrs = append(attrs, slog.Int("text_len", len([]rune(t))))
	}
	return attrs
}
