package helpers

import (
	"context"

	"github.com/m3rciful/salonbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxKey = "salonbot.ctx"

// StoreContext keeps ctx on c for later BuildContext calls.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxKey, ctx)
	}
}

// ContextFrom returns the context stored on c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// MetaOf describes the update behind c for log correlation.
func MetaOf(c tele.Context) logger.Meta {
	var m logger.Meta
	m.UpdateID = c.Update().ID
	if chat := c.Chat(); chat != nil {
		m.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		m.UserID = u.ID
	}
	m.RID = logger.NewRID(m.UpdateID, m.ChatID, m.UserID)
	return m
}

// BuildContext returns the context of the update behind c, creating and
// storing it on first use. Handlers pass it to the booking flow and storage.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	ctx := logger.WithMeta(context.Background(), MetaOf(c))
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler records the handler name on the stored context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	StoreContext(c, ctx)
	return ctx
}
