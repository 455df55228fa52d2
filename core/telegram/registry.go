package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/salonbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const wireComponent = "tg.wire"

const textButtonExpired = "Кнопка устарела"

// Command is a slash command and how it is offered to users.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are reachable by the configured admin only.
	AdminOnly bool
	// Hidden commands are left out of the Telegram command menu.
	Hidden bool
	// Aliases match plain text such as "меню" without the slash.
	Aliases []string
}

// Registry maps commands and callback keys to handlers. It is filled once
// at startup and read concurrently by the update workers.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]Command
	aliases          map[string]string
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry whose unknown callbacks answer with a toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: textButtonExpired})
		},
	}
}

// RegisterCommand adds cmd under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	var reason string
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		reason = "invalid"
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		reason = "no_slash_prefix"
	}
	if reason != "" {
		logger.Warn(context.Background(), wireComponent, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", reason),
		)
		return fmt.Errorf("command %q: %s", name, reason)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command already registered: %s", name)
	}
	for _, alias := range cmd.Aliases {
		key := strings.ToLower(strings.TrimSpace(alias))
		if owner, taken := r.aliases[key]; taken {
			return fmt.Errorf("alias %q of %s already used by %s", alias, name, owner)
		}
		r.aliases[key] = name
	}
	r.commands[name] = cmd
	return nil
}

// LookupCommand resolves "/start", "start", "/start@SalonBot" or an alias
// to the registered command name.
func (r *Registry) LookupCommand(text string) (string, Command, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", Command{}, false
	}
	if strings.HasPrefix(text, "/") {
		if i := strings.IndexAny(text, " @"); i > 0 {
			text = text[:i]
		}
	}
	name := strings.ToLower(text)
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	if owner, ok := r.aliases[strings.TrimPrefix(name, "/")]; ok {
		return owner, r.commands[owner], true
	}
	return "", Command{}, false
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// ListCommands returns the commands sorted by name. With visibleOnly,
// hidden and admin commands are skipped.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

// RegisterCallback binds handler to the unique part of button data.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		logger.Warn(context.Background(), wireComponent, "register.callback.skip",
			slog.String("key", key),
			slog.Bool("handler_nil", handler == nil),
		)
		return errors.New("invalid callback registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys in order.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown keys; nil is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for text that is not a command.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// PublishCommands sets the Telegram command menu to the visible commands.
func PublishCommands(ctx context.Context, bot *tele.Bot, reg *Registry) error {
	if bot == nil || reg == nil {
		return nil
	}
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return nil
	}
	if err := bot.SetCommands(list); err != nil {
		logger.Error(ctx, wireComponent, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.Info(ctx, wireComponent, "register.commands.set",
		slog.Int("count", len(list)),
	)
	return nil
}
