package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/salonbot/core/telegram"
)

// quiet answers callbacks locally.
type quiet struct{ tele.Context }

func (quiet) Respond(...*tele.CallbackResponse) error { return nil }

func newBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return b
}

func text(b *tele.Bot, userID int64, s string) tele.Context {
	return quiet{b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		Text:   s,
	}})}
}

func press(b *tele.Bot, data string) tele.Context {
	return quiet{b.NewContext(tele.Update{ID: 2, Callback: &tele.Callback{
		Sender: &tele.User{ID: 1},
		Data:   data,
	}})}
}

func recorder(calls *[]string, name string) tele.HandlerFunc {
	return func(tele.Context) error {
		*calls = append(*calls, name)
		return nil
	}
}

func routeFor(routes []tg.Route, endpoint any) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestCallbackRoute(t *testing.T) {
	b := newBot(t)
	reg := tg.NewRegistry()
	var calls []string
	require.NoError(t, reg.RegisterCallback("book", recorder(&calls, "book")))
	reg.SetCallbackNotFound(recorder(&calls, "missing"))

	route := CallbackRoute(reg, CallbackOptions{})
	assert.Equal(t, tele.OnCallback, route.Endpoint)

	require.NoError(t, route.Handler(press(b, "\fbook|")))
	require.NoError(t, route.Handler(press(b, "\fgone|x")))
	assert.Equal(t, []string{"book", "missing"}, calls)
}

func TestCommandRoutes_AdminOnly(t *testing.T) {
	b := newBot(t)
	reg := tg.NewRegistry()
	var calls []string
	require.NoError(t, reg.RegisterCommand("/start", tg.Command{Handler: recorder(&calls, "start"), Description: "start"}))
	require.NoError(t, reg.RegisterCommand("/stats", tg.Command{Handler: recorder(&calls, "stats"), Description: "stats", AdminOnly: true}))

	routes := CommandRoutes(reg, CommandRouteOptions{AdminID: 42, OnAdminReject: recorder(&calls, "rejected")})
	require.Len(t, routes, 2)

	require.NoError(t, routeFor(routes, "/start")(text(b, 7, "/start")))
	require.NoError(t, routeFor(routes, "/stats")(text(b, 7, "/stats")))
	require.NoError(t, routeFor(routes, "/stats")(text(b, 42, "/stats")))
	assert.Equal(t, []string{"start", "rejected", "stats"}, calls)

	assert.Nil(t, CommandRoutes(nil, CommandRouteOptions{}))
}

func TestTextRoutes(t *testing.T) {
	b := newBot(t)
	reg := tg.NewRegistry()
	var calls []string
	require.NoError(t, reg.RegisterCommand("/menu", tg.Command{Handler: recorder(&calls, "menu"), Description: "menu", Aliases: []string{"меню"}}))
	require.NoError(t, reg.RegisterCommand("/stats", tg.Command{Handler: recorder(&calls, "stats"), Description: "stats", AdminOnly: true}))

	routes := TextRoutes(reg, TextOptions{
		UnknownText:     recorder(&calls, "unknown"),
		UnknownDocument: recorder(&calls, "document"),
	})
	onText := routeFor(routes, tele.OnText)
	require.NotNil(t, onText)

	require.NoError(t, onText(text(b, 1, "меню")))
	require.NoError(t, onText(text(b, 1, "stats")))
	require.NoError(t, onText(text(b, 1, "hello")))
	require.NoError(t, routeFor(routes, tele.OnDocument)(text(b, 1, "")))
	assert.Equal(t, []string{"menu", "unknown", "unknown", "document"}, calls,
		"admin commands are not reachable as plain text")

	reg.SetTextFallback(recorder(&calls, "fallback"))
	require.NoError(t, onText(text(b, 1, "hello")))
	assert.Equal(t, "fallback", calls[len(calls)-1])
}

func TestHandlerRoute_PropagatesErrors(t *testing.T) {
	b := newBot(t)
	boom := errors.New("boom")
	route := HandlerRoute(tele.OnContact, "Contact", func(tele.Context) error { return boom })

	assert.Equal(t, tele.OnContact, route.Endpoint)
	assert.ErrorIs(t, route.Handler(text(b, 1, "")), boom)
}

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "unknown", handlerName("  "))
	assert.Equal(t, "cancel_list", handlerName("/Cancel List"))
}
