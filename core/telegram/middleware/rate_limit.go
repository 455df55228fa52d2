package middleware

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	"github.com/m3rciful/salonbot/core/logger"
	tghelpers "github.com/m3rciful/salonbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the refill period of one token; <= 0 disables limiting.
	Interval time.Duration
	Burst    int
	// Exclude lists update kinds, as returned by UpdateKind, that are never limited.
	Exclude []string
	// IdleTTL drops buckets of users quiet for longer than this; 0 keeps them.
	IdleTTL   time.Duration
	OnLimited tele.HandlerFunc
	Now       func() time.Time
}

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// buckets holds one token bucket per user.
type buckets struct {
	mu     sync.Mutex
	byUser map[int64]*bucket
	limit  rate.Limit
	burst  int
	idle   time.Duration
	swept  time.Time
}

func newBuckets(interval time.Duration, burst int, idle time.Duration) *buckets {
	return &buckets{
		byUser: make(map[int64]*bucket),
		limit:  rate.Every(interval),
		burst:  max(burst, 1),
		idle:   idle,
	}
}

// take spends one token of user at now.
func (b *buckets) take(user int64, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweep(now)
	bk := b.byUser[user]
	if bk == nil {
		bk = &bucket{Limiter: rate.NewLimiter(b.limit, b.burst)}
		b.byUser[user] = bk
	}
	bk.seen = now
	return bk.AllowN(now, 1)
}

// sweep runs at most once per idle period.
func (b *buckets) sweep(now time.Time) {
	if b.idle <= 0 || now.Sub(b.swept) < b.idle {
		return
	}
	maps.DeleteFunc(b.byUser, func(_ int64, bk *bucket) bool {
		return now.Sub(bk.seen) > b.idle
	})
	b.swept = now
}

// UpdateKind classifies an update for exclusions and counters.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}

// RateLimitMiddleware drops updates of users who ran out of tokens and
// lets OnLimited answer them.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	store := newBuckets(opts.Interval, opts.Burst, opts.IdleTTL)

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			kind := UpdateKind(c.Update())
			if user == nil || slices.Contains(opts.Exclude, kind) || store.take(user.ID, now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", logger.StatusRateLimited),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
