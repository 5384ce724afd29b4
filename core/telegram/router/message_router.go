package router

import (
	"strings"
	"time"

	tg "herald/core/telegram"
	"herald/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Collector consumes plain text messages for a user with a pending prompt.
// Collecting reports whether the user has one; Collect handles the message.
type Collector interface {
	Collecting(userID int64) bool
	Collect(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoute builds the handler for plain text messages. A pending collector
// for the sender always wins over command lookup and fallbacks.
func TextRoute(collector Collector, reg *tg.Registry, opts TextOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if collector != nil && c.Sender() != nil && collector.Collecting(c.Sender().ID) {
			return handleWithSummary(c, "collector", start, "", "", func() error {
				return collector.Collect(c)
			})
		}

		if reg != nil {
			// Commands may carry arguments; match on the first token only.
			cmdName := text
			if i := strings.IndexByte(cmdName, ' '); i > 0 {
				cmdName = cmdName[:i]
			}
			if key, cmd, ok := reg.LookupCommand(cmdName); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	return tg.Route{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
