package handlers

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"

	"herald/bot/directory"
	"herald/core/telegram/helpers"

	"herald/bot/views"
)

// joinCommand handles /join <group>: the member is upserted, so a
// repeat join just refreshes the stored profile.
func (a *App) joinCommand(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)

	handle := commandArg(c.Text())
	if handle == "" {
		return helpers.SendMD(c, views.MembershipUsage("join"))
	}

	group, err := a.dir.GroupByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, directory.ErrGroupNotFound) {
			return helpers.SendMD(c, views.UnknownGroup(handle))
		}
		return err
	}

	member := directory.Member{
		UserID:    sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
		IsBot:     sender.IsBot,
	}
	if err := a.dir.AddMember(ctx, group.ID, member); err != nil {
		return err
	}
	return helpers.SendMD(c, views.Joined(group))
}

// leaveCommand handles /leave <group>.
func (a *App) leaveCommand(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)

	handle := commandArg(c.Text())
	if handle == "" {
		return helpers.SendMD(c, views.MembershipUsage("leave"))
	}

	group, err := a.dir.GroupByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, directory.ErrGroupNotFound) {
			return helpers.SendMD(c, views.UnknownGroup(handle))
		}
		return err
	}

	if err := a.dir.RemoveMember(ctx, group.ID, sender.ID); err != nil {
		if errors.Is(err, directory.ErrNotMember) {
			return helpers.SendMD(c, views.NotAMember(group))
		}
		return err
	}
	return helpers.SendMD(c, views.Left(group))
}

func commandArg(text string) string {
	_, rest, _ := strings.Cut(text, " ")
	return strings.TrimSpace(rest)
}
