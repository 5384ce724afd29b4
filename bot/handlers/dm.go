package handlers

import (
	"context"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

// dmSender delivers broadcast messages as private sends. The bot
// client is bound at startup, before the poller delivers updates.
type dmSender struct {
	bot atomic.Pointer[tele.Bot]
}

func (d *dmSender) bind(bot *tele.Bot) {
	d.bot.Store(bot)
}

// SendDM makes exactly one delivery attempt to the user.
func (d *dmSender) SendDM(ctx context.Context, userID int64, text string) error {
	bot := d.bot.Load()
	if bot == nil {
		return tele.ErrBadRecipient
	}
	_, err := bot.Send(&tele.User{ID: userID}, text)
	return err
}
