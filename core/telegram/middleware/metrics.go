package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const repliesKey = "salonbot.replies"

// Recorder receives per-update counters.
type Recorder interface {
	Update(kind string)
	Replies(n int, keyboard bool)
}

// replies counts what a handler sent in answer to one update. Sends may
// complete on dispatcher workers.
type replies struct {
	n        atomic.Int64
	keyboard atomic.Bool
}

// countingContext records successful outgoing messages of the wrapped context.
type countingContext struct {
	tele.Context
	r *replies
}

func (c countingContext) track(err error, opts []any) error {
	if err != nil {
		return err
	}
	c.r.n.Add(1)
	if withMarkup(opts) {
		c.r.keyboard.Store(true)
	}
	return nil
}

func withMarkup(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			return v != nil
		case *tele.SendOptions:
			return v != nil && v.ReplyMarkup != nil
		}
	}
	return false
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.track(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	return c.track(c.Context.EditOrSend(what, opts...), opts)
}

// MessageMetrics counts the replies of every handler and reports them, with
// the update kind, to rec once the handler returns. rec may be nil.
func MessageMetrics(rec Recorder) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			r := &replies{}
			c.Set(repliesKey, r)
			err := next(countingContext{Context: c, r: r})
			if rec != nil {
				rec.Update(UpdateKind(c.Update()))
				rec.Replies(int(r.n.Load()), r.keyboard.Load())
			}
			return err
		}
	}
}

// GetCounters returns the number of replies sent so far and whether any of
// them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	r, ok := c.Get(repliesKey).(*replies)
	if !ok {
		return 0, false
	}
	return int(r.n.Load()), r.keyboard.Load()
}
