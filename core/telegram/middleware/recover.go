package middleware

import (
	"runtime/debug"

	"herald/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// PanicNotice, when set, is invoked after a recovered panic if the
// handler had not produced any reply yet. Wired once at startup.
var PanicNotice tele.HandlerFunc

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing.
// The session (if any) is intentionally left untouched so the operator can resume.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.TG.Error("panic recovered",
					slog.String("event", "tg.panic"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				if PanicNotice != nil {
					if msgs, _ := GetCounters(c); msgs == 0 {
						_ = PanicNotice(c)
					}
				}
			}
		}()
		return next(c)
	}
}
