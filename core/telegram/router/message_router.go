package router

import (
	tg "github.com/m3rciful/salonbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// Fallbacks answers updates that no command or callback claims.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// TextOptions sets the handlers for text and files nothing else claims.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes sends plain text to a command when it names one (typed with or
// without the slash, or as an alias) and to the fallbacks otherwise.
// Admin commands are never reachable as plain text.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	onText := func(c tele.Context) error {
		if reg != nil {
			if name, cmd, ok := reg.LookupCommand(c.Text()); ok && !cmd.AdminOnly {
				return newSummary(handlerName(name)).run(c, cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return newSummary("fallback").run(c, fb)
			}
		}
		return newSummary("unknown_text").run(c, opts.UnknownText)
	}
	onDocument := func(c tele.Context) error {
		return newSummary("unexpected_document").run(c, opts.UnknownDocument)
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: onText},
		{Endpoint: tele.OnDocument, Handler: onDocument},
	}
}
