package middleware

import (
	"context"

	"herald/core/logger"
	tghelpers "herald/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// SupportChecker reports whether a user may run restricted commands.
type SupportChecker interface {
	IsSupport(ctx context.Context, userID int64) (bool, error)
}

// AccessOptions defines how support-only checks behave.
type AccessOptions struct {
	Checker  SupportChecker
	OnReject tele.HandlerFunc
}

// SupportOnlyMiddleware ensures only members of the support group reach downstream handlers.
// A checker failure is treated as a denial; broadcasting is never fail-open.
func SupportOnlyMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Checker == nil {
				return next(c)
			}
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			ctx := tghelpers.BuildContext(c)
			ok, err := opts.Checker.IsSupport(ctx, sender.ID)
			if err != nil {
				logger.TG.LogAttrs(ctx, slog.LevelError, "access.check_failed",
					slog.Int64("user_id", sender.ID),
					slog.String("err", err.Error()),
				)
				ok = false
			}
			if !ok {
				logger.TG.LogAttrs(ctx, slog.LevelWarn, "access.denied",
					slog.Int64("user_id", sender.ID),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
