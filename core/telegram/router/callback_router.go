package router

import (
	"log/slog"

	tg "github.com/m3rciful/salonbot/core/telegram"
	"github.com/m3rciful/salonbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions sets the handler for keys the registry does not know.
// The registry's own not-found handler takes precedence.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches button presses by their unique key. The press is
// acknowledged before the handler runs so the client spinner stops even when
// the handler is slow.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.Key(c)
		s := newSummary("callback."+handlerName(key), slog.String("cb_key", key))
		_ = c.Respond()

		if h, ok := reg.GetCallback(key); ok && h != nil {
			return s.run(c, h)
		}
		s.extras = append(s.extras, slog.String("reason", "not_found"))
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		return s.run(c, fallback)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
