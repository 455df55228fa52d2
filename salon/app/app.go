// Package app assembles the salon bot from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/salonbot/core/bootstrap"
	"github.com/m3rciful/salonbot/core/logger"
	"github.com/m3rciful/salonbot/core/metrics"
	"github.com/m3rciful/salonbot/core/session"
	tg "github.com/m3rciful/salonbot/core/telegram"
	"github.com/m3rciful/salonbot/core/telegram/router"
	tgsender "github.com/m3rciful/salonbot/core/telegram/sender"
	"github.com/m3rciful/salonbot/salon/booking"
	"github.com/m3rciful/salonbot/salon/bot"
	"github.com/m3rciful/salonbot/salon/catalog"
	"github.com/m3rciful/salonbot/salon/config"
	"github.com/m3rciful/salonbot/salon/storage"
)

const component = "app"

// App holds the wired salon bot.
type App struct {
	cfg *config.Config

	db    *sqlx.DB
	redis *redis.Client

	collector  *metrics.Collector
	metricsSrv *metrics.Server

	sessions *session.Store
	sweeper  *session.Sweeper

	tgbot      *tele.Bot
	dispatcher *tgsender.Dispatcher
	registry   *tg.Registry
	bot        *bot.Bot
}

// New bootstraps infrastructure and wires the booking flow.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	loc := cfg.Booking.Location()
	seeder := storage.ScheduleSeeder{Path: cfg.Booking.Schedule, Location: loc}

	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Seeders:  []bootstrap.Seeder{seeder},
	})
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, db: res.DB}

	if cfg.Redis.Enabled() {
		a.redis, err = catalog.Dial(ctx, cfg.Redis)
		if err != nil {
			_ = a.close(ctx)
			return nil, err
		}
	}

	a.tgbot, err = tg.NewBot(cfg.CoreConfig())
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	if err := a.wire(seeder, loc); err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) wire(seeder storage.ScheduleSeeder, loc *time.Location) error {
	cfg := a.cfg
	if cfg.Metrics.Listen != "" {
		a.collector = metrics.New()
	}

	repo := storage.New(a.db, storage.WithLocation(loc))
	cache := catalog.New(repo, catalog.Options{
		Redis: a.redis,
		Key:   cfg.Redis.Key,
		TTL:   cfg.Redis.TTL,
	})

	a.sessions = session.NewStore()
	a.sweeper = session.NewSweeper(a.sessions, session.SweeperOptions{
		Period:      cfg.Session.IdleTTL,
		MaxAttempts: cfg.Session.SweepAttempts,
		RetryDelay:  cfg.Session.RetryDelay,
		OnSweep:     a.collector.Sweep,
	})
	if err := a.collector.WatchSessions(a.sessions); err != nil {
		return err
	}

	a.dispatcher = tgsender.NewDispatcher(tgsender.Options{OnDone: a.collector.Outbound})
	transport := bot.NewTransport(a.tgbot, a.dispatcher, a.collector)

	machine, err := booking.NewMachine(booking.Deps{
		Store:        a.sessions,
		Transport:    transport,
		Catalog:      cache,
		Availability: repo,
		Log:          repo,
		Observer:     a.collector,
	}, booking.Options{
		RequestTimeout: cfg.Booking.RequestTimeout,
		Location:       loc,
	})
	if err != nil {
		return err
	}

	a.bot, err = bot.New(bot.Options{
		Flow:          machine,
		Phones:        repo,
		Sessions:      a.sessions,
		Sweeper:       a.sweeper,
		Occupancy:     repo,
		LookupTimeout: cfg.Booking.RequestTimeout,
		Reloaders: []func(context.Context) error{
			func(ctx context.Context) error { return seeder.Seed(ctx, a.db) },
			cache.Invalidate,
		},
	})
	if err != nil {
		return err
	}

	a.registry = tg.NewRegistry()
	return a.bot.Register(a.registry)
}

func (a *App) onLimited(c tele.Context) error {
	a.collector.RateLimited()
	return a.bot.OnLimited(c)
}

// TelegramRunOptions describes routes, middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	var fallback router.Fallbacks = a.bot
	routes := []tg.Route{router.CallbackRoute(a.registry, router.CallbackOptions{
		NotFound: fallback.UnknownCallback(),
	})}
	routes = append(routes, router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.bot.AdminReject,
	})...)
	routes = append(routes, router.TextRoutes(a.registry, router.TextOptions{
		UnknownText:     fallback.UnknownText(),
		UnknownDocument: fallback.UnknownDocument(),
	})...)
	routes = append(routes, a.bot.Routes()...)

	return tg.RunOptions{
		Config:     core,
		Registry:   a.registry,
		Bot:        a.tgbot,
		Dispatcher: a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareOptions{
			OnLimited: a.onLimited,
			OnPanic:   a.bot.OnPanic,
			Recorder:  a.collector,
		}),
		Routes:  routes,
		OnStart: a.start,
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			return a.close(ctx)
		},
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	if a.collector != nil {
		srv, err := a.collector.Listen(ctx, a.cfg.Metrics.Listen, a.cfg.Metrics.Path)
		if err != nil {
			return err
		}
		a.metricsSrv = srv
	}
	return a.sweeper.Start(ctx)
}

// close releases everything New acquired. It is safe on a partially built App.
func (a *App) close(ctx context.Context) error {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	var errs []error
	if a.metricsSrv != nil {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		errs = append(errs, a.metricsSrv.Shutdown(sctx))
		cancel()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	err := errors.Join(errs...)
	logger.Info(ctx, component, "app.close", slog.String("status", logger.Status(err)))
	if err != nil {
		return fmt.Errorf("app close: %w", err)
	}
	return nil
}
