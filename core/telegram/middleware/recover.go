package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/salonbot/core/logger"
	tghelpers "github.com/m3rciful/salonbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const stackLimit = 4096

// Recover stops a handler panic from reaching the poller. The panic is
// logged with its stack and onPanic, when set, answers the user.
func Recover(onPanic tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
					slog.String("status", logger.StatusFail),
					slog.String("err", fmt.Sprint(r)),
					slog.String("stack", logger.Clip(string(debug.Stack()), stackLimit)),
				)
				err = nil
				if onPanic != nil {
					err = onPanic(c)
				}
			}()
			return next(c)
		}
	}
}
