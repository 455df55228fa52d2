package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/salonbot/core/logger"
	tghelpers "github.com/m3rciful/salonbot/core/telegram/helpers"
	"github.com/m3rciful/salonbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary logs one handler.handled line per routed update.
type summary struct {
	name   string
	start  time.Time
	extras []slog.Attr
	// status replaces the ok/fail derived from the handler error.
	status string
}

func newSummary(name string, extras ...slog.Attr) *summary {
	return &summary{name: name, start: time.Now(), extras: extras}
}

// run calls fn with the handler name attached to the update context.
// A nil fn is logged as skipped.
func (s *summary) run(c tele.Context, fn tele.HandlerFunc) error {
	tghelpers.WithHandler(c, s.name)
	if fn == nil {
		s.status = logger.StatusSkip
		s.log(c, nil)
		return nil
	}
	err := fn(c)
	s.log(c, err)
	return err
}

func (s *summary) log(c tele.Context, err error) {
	ctx := tghelpers.BuildContext(c)
	msgs, kb := middleware.GetCounters(c)
	status := s.status
	if status == "" {
		status = logger.Status(err)
	}
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(s.start)),
	}, s.extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.Clip(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
		logger.Warn(ctx, "tg", "handler.handled", attrs...)
		return
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

// handlerName turns "/Cancel List" into "cancel_list".
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode is the Code() of err when it has one, else its type name
// in upper snake case: *telebot.Error gives "TELEBOT.ERROR".
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return strings.ToUpper(strings.TrimPrefix(fmt.Sprintf("%T", err), "*"))
}
