package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	"github.com/m3rciful/salonbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

const limiterIdleTTL = 10 * time.Minute

// MiddlewareOptions are the bot callbacks used by the shared middlewares.
type MiddlewareOptions struct {
	// OnLimited answers a rate limited update.
	OnLimited tele.HandlerFunc
	// OnPanic answers an update whose handler panicked.
	OnPanic tele.HandlerFunc
	// Recorder receives per-update counters; nil disables them.
	Recorder middleware.Recorder
}

// DefaultMiddlewares returns the shared chain, outermost first: recover,
// rate limit (when configured), logger, metrics.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.Recover(opts.OnPanic)}}
	if rl := rateLimit(cfg, opts.OnLimited); rl != nil {
		chain = append(chain, Middleware{Name: "rate_limit", Use: rl})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetrics(opts.Recorder)},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited tele.HandlerFunc) tele.MiddlewareFunc {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil
	}
	return middleware.RateLimitMiddleware(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:     cfg.RateLimit.Burst,
		Exclude:   cfg.RateLimit.ExcludeUpdates,
		IdleTTL:   limiterIdleTTL,
		OnLimited: onLimited,
	})
}
