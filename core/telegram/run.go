package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/salonbot/core/config"
	"github.com/m3rciful/salonbot/core/logger"
	tghelpers "github.com/m3rciful/salonbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/salonbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds Handler to Endpoint, which is passed to bot.Handle as is.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions describe a bot run.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	// Bot is built from Config when nil.
	Bot *tele.Bot

	// Dispatcher is built from DispatcherOptions when nil. It is closed
	// when the run ends.
	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// DisableWebhookCleanup keeps a registered webhook in long polling mode.
	DisableWebhookCleanup bool
	// DisableHelperDispatcher makes helpers send synchronously.
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	// OnStop gets a context that is not cancelled by the shutdown signal.
	OnStop func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks can reach.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram serves updates until ctx is cancelled or the poller stops.
// Cancellation is a clean shutdown and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	rt, err := prepare(opts)
	if err != nil {
		return err
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(rt.Dispatcher)
	}
	defer func() {
		rt.Dispatcher.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}()

	announce(ctx, rt.Bot, opts)
	install(rt.Bot, opts.Middlewares, opts.Routes)
	_ = PublishCommands(ctx, rt.Bot, rt.Registry)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, rt.Bot)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	if stopErr != nil {
		return stopErr
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func prepare(opts RunOptions) (Runtime, error) {
	rt := Runtime{Bot: opts.Bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Registry == nil {
		rt.Registry = NewRegistry()
	}
	if rt.Bot == nil {
		bot, err := NewBot(opts.Config)
		if err != nil {
			return rt, err
		}
		rt.Bot = bot
	}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	return rt, nil
}

// announce logs the update mode and clears a stale webhook before polling.
func announce(ctx context.Context, bot *tele.Bot, opts RunOptions) {
	if wh, ok := bot.Poller.(*tele.Webhook); ok {
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
		)
		return
	}
	logger.Info(ctx, "tg", "mode",
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("poll_timeout", pollTimeout(opts.Config.Telegram)),
	)
	if opts.DisableWebhookCleanup {
		return
	}
	start := time.Now()
	err := bot.RemoveWebhook(false)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.Warn(ctx, "tg", "webhook.remove", append(attrs, slog.String("err", err.Error()))...)
		return
	}
	logger.Info(ctx, "tg", "webhook.remove", attrs...)
}

func install(bot *tele.Bot, mws []Middleware, routes []Route) {
	for _, mw := range mws {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
}

// serve runs the poller until it returns or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
		return ctx.Err()
	case <-stopped:
		return nil
	}
}
