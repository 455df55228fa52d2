package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/salonbot/core/logger"
	tg "github.com/m3rciful/salonbot/core/telegram"
	"github.com/m3rciful/salonbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures admin gating of commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command. AdminOnly
// commands are wrapped with the admin check.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, cmd := range cmds {
		h := HandlerRoute(name, "command."+handlerName(name), cmd.Handler).Handler
		if cmd.AdminOnly {
			h = admin(h)
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.Info(context.Background(), "tg.wire", "routes.commands",
		slog.String("status", logger.StatusOK),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// HandlerRoute binds h to endpoint and logs a summary line per update.
func HandlerRoute(endpoint any, name string, h tele.HandlerFunc) tg.Route {
	name = handlerName(name)
	return tg.Route{
		Endpoint: endpoint,
		Handler: func(c tele.Context) error {
			return newSummary(name).run(c, h)
		},
	}
}
