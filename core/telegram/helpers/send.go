package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"herald/core/logger"
	"herald/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends a message with Markdown parse mode and optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm}
	return SendText(c, text, opts)
}

// EditMD edits a message with Markdown parse mode and optional reply markup.
func EditMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return c.Edit(text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm})
}

// SendNotice sends an ephemeral notice and schedules its self-deletion after ttl.
// The returned error covers the send only; deletion failures are logged and swallowed.
func SendNotice(c tele.Context, text string, ttl time.Duration) error {
	msg, err := c.Bot().Send(c.Recipient(), text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	if err != nil {
		return err
	}
	DeleteAfter(c, msg, ttl)
	return nil
}

// DeleteAfter schedules deletion of msg once ttl elapses. A zero or negative
// ttl leaves the message in place.
func DeleteAfter(c tele.Context, msg tele.Editable, ttl time.Duration) {
	if msg == nil || ttl <= 0 {
		return
	}
	bot := c.Bot()
	ctx := BuildContext(c)
	time.AfterFunc(ttl, func() {
		run := func() error { return bot.Delete(msg) }
		disp := currentDispatcher()
		if disp == nil {
			if err := run(); err != nil {
				logger.Warn(ctx, "tg", "notice.delete_failed", slog.String("err", err.Error()))
			}
			return
		}
		if err := disp.Enqueue(ctx, "delete.notice", "deleteMessage", run); err != nil {
			if err := run(); err != nil {
				logger.Warn(ctx, "tg", "notice.delete_failed", slog.String("err", err.Error()))
			}
		}
	})
}
