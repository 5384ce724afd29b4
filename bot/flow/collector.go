package flow

import (
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"herald/bot/session"
	"herald/core/logger"
	"herald/core/telegram/helpers"
)

// Collecting reports whether the user's next plain text message should
// be consumed as replacement broadcast text.
func (f *Flow) Collecting(userID int64) bool {
	s, ok := f.store.Get(userID)
	return ok && s.State == session.Editing
}

// Collect consumes exactly one message: it replaces the broadcast
// text, deletes the triggering message, and re-renders the preview.
// Messages from other chats are left alone so the edit stays pending.
func (f *Flow) Collect(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)

	s, ok := f.store.Get(sender.ID)
	if !ok || s.State != session.Editing {
		return nil
	}
	if c.Chat() == nil || c.Chat().ID != s.ChatID {
		logger.Debug(ctx, "flow", "edit.foreign_chat_ignored", slog.Int64("user_id", sender.ID))
		return nil
	}

	text := strings.TrimSpace(c.Text())
	if text == "" {
		return nil
	}

	f.store.Update(sender.ID, func(s *session.Session) {
		s.MessageText = text
		s.State = session.AwaitingConfirmation
		s.StopEditTimer()
	})

	if err := c.Delete(); err != nil {
		logger.Warn(ctx, "flow", "edit.message_delete_failed", slog.Any("err", err))
	}

	logger.Info(ctx, "flow", "edit.applied",
		slog.Int64("user_id", sender.ID),
		slog.Int("text_len", len(text)),
	)

	group := s.Group
	if group == nil {
		return f.failSession(ctx, sender.ID, s, ErrNoGroupSelected)
	}
	return f.renderPreview(s, group, "")
}
