// Package flow drives the per-operator broadcast workflow: select a
// group, preview and edit the message, confirm or cancel, then fan out
// and report. Each operator has at most one session at a time; every
// step after the picker edits the same live view message.
package flow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"herald/bot/broadcast"
	"herald/bot/directory"
	"herald/bot/session"
	coreconfig "herald/core/config"
	"herald/core/logger"
	"herald/core/telegram/helpers"
	"herald/core/telegram/keyboard"
	"herald/core/telegram/middleware"

	"herald/bot/views"
)

// Directory is the audience lookup surface the workflow needs.
type Directory interface {
	EligibleGroups(ctx context.Context, minMembers int) ([]directory.Group, error)
	GroupByID(ctx context.Context, id int64) (*directory.Group, error)
	Members(ctx context.Context, groupID int64) ([]directory.Member, error)
}

// Broadcaster runs one fan-out and reports the outcome.
type Broadcaster interface {
	Run(ctx context.Context, members []directory.Member, text string) broadcast.Result
}

// API is the slice of the bot client the workflow uses. *tele.Bot
// satisfies it.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
}

// Options wire the workflow's dependencies.
type Options struct {
	Store       *session.Store
	Directory   Directory
	Broadcaster Broadcaster
	Config      coreconfig.BroadcastConfig
}

// Flow owns the broadcast state machine. Bind must be called with the
// bot client before any handler runs.
type Flow struct {
	store *session.Store
	dir   Directory
	bcast Broadcaster
	cfg   coreconfig.BroadcastConfig
	api   API
}

func New(opts Options) *Flow {
	return &Flow{
		store: opts.Store,
		dir:   opts.Directory,
		bcast: opts.Broadcaster,
		cfg:   opts.Config,
	}
}

// Bind attaches the bot client. Called once at startup, before the
// poller delivers updates.
func (f *Flow) Bind(api API) {
	f.api = api
}

// Store exposes the session store for diagnostics.
func (f *Flow) Store() *session.Store {
	return f.store
}

var mdOpts = &tele.SendOptions{ParseMode: tele.ModeMarkdown}

func liveView(s *session.Session) tele.Editable {
	return &tele.StoredMessage{MessageID: s.Preview.MessageID, ChatID: s.Preview.ChatID}
}

// StartCommand handles /message <content>: authorization is enforced
// by the access middleware before this runs.
func (f *Flow) StartCommand(c tele.Context) error {
	operator := c.Sender()
	if operator == nil || c.Chat() == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)

	content := commandPayload(c.Text())
	if content == "" {
		logger.Debug(ctx, "flow", "start.rejected",
			slog.Int64("user_id", operator.ID),
			slog.String("reason", ErrEmptyMessage.Error()),
		)
		return helpers.SendNotice(c, views.Usage(), f.cfg.NoticeTTL())
	}

	if f.store.Has(operator.ID) {
		logger.Debug(ctx, "flow", "start.rejected",
			slog.Int64("user_id", operator.ID),
			slog.String("reason", ErrSessionExists.Error()),
		)
		return helpers.SendNotice(c, views.AlreadyActive(), f.cfg.NoticeTTL())
	}

	groups, err := f.dir.EligibleGroups(ctx, f.cfg.MinGroupMembers)
	if err != nil {
		logger.Error(ctx, "flow", "start.groups_failed", slog.Any("err", err))
		return helpers.SendNotice(c, views.GenericError(), f.cfg.NoticeTTL())
	}
	if len(groups) == 0 {
		logger.Info(ctx, "flow", "start.rejected",
			slog.Int64("user_id", operator.ID),
			slog.String("reason", ErrNoEligibleGroups.Error()),
		)
		return helpers.SendNotice(c, views.NoEligibleGroups(f.cfg.MinGroupMembers), f.cfg.NoticeTTL())
	}

	buttons := make([]keyboard.InlineBtn, 0, len(groups))
	for _, g := range groups {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   g.Title,
			Unique: CallbackGroupSelect,
			Data:   Action{OperatorID: operator.ID, GroupID: g.ID}.Encode(),
		})
	}
	markup := keyboard.InlineButtons(buttons)

	msg, err := f.api.Send(tele.ChatID(c.Chat().ID), views.Picker(), &tele.SendOptions{
		ParseMode:   tele.ModeMarkdown,
		ReplyMarkup: markup,
	})
	if err != nil {
		logger.Error(ctx, "flow", "start.picker_failed", slog.Any("err", err))
		return err
	}

	f.store.Set(operator.ID, &session.Session{
		OperatorID:  operator.ID,
		ChatID:      c.Chat().ID,
		MessageText: content,
		State:       session.AwaitingGroupSelection,
		Preview: session.Preview{
			ChatID:    msg.Chat.ID,
			MessageID: strconv.Itoa(msg.ID),
		},
	})

	logger.Info(ctx, "flow", "session.started",
		slog.Int64("user_id", operator.ID),
		slog.Int("groups", len(groups)),
	)
	return nil
}

// SelectGroupCallback stores the chosen group and renders the preview.
func (f *Flow) SelectGroupCallback(c tele.Context) error {
	return f.withSession(c, session.AwaitingGroupSelection, func(ctx context.Context, a Action, s *session.Session) error {
		group, err := f.dir.GroupByID(ctx, a.GroupID)
		if err != nil {
			logger.Error(ctx, "flow", "group.lookup_failed",
				slog.Int64("group_id", a.GroupID),
				slog.Any("err", err),
			)
			_, editErr := f.api.Edit(liveView(s), views.GenericError(), mdOpts)
			f.store.Delete(a.OperatorID)
			return editErr
		}

		f.store.Update(a.OperatorID, func(s *session.Session) {
			s.Group = group
			s.State = session.AwaitingConfirmation
		})

		logger.Info(ctx, "flow", "group.selected",
			slog.Int64("user_id", a.OperatorID),
			slog.String("group", group.Handle),
			slog.Int("members", group.MemberCount),
		)
		return f.renderPreview(s, group, "")
	})
}

// EditCallback switches the session into the Editing state and prompts
// for replacement text.
func (f *Flow) EditCallback(c tele.Context) error {
	return f.withSession(c, session.AwaitingConfirmation, func(ctx context.Context, a Action, s *session.Session) error {
		group := s.Group
		if group == nil {
			return f.failSession(ctx, a.OperatorID, s, ErrNoGroupSelected)
		}

		f.store.Update(a.OperatorID, func(s *session.Session) {
			s.State = session.Editing
			if d := f.cfg.EditTimeout(); d > 0 {
				s.SetEditTimer(time.AfterFunc(d, func() {
					f.editTimedOut(a.OperatorID)
				}))
			}
		})

		logger.Debug(ctx, "flow", "edit.requested", slog.Int64("user_id", a.OperatorID))
		_, err := f.api.Edit(liveView(s), views.EditPrompt(group), mdOpts)
		return err
	})
}

// ConfirmCallback starts the fan-out. The session ends when the report
// has been rendered.
func (f *Flow) ConfirmCallback(c tele.Context) error {
	return f.withSession(c, session.AwaitingConfirmation, func(ctx context.Context, a Action, s *session.Session) error {
		group := s.Group
		if group == nil {
			return f.failSession(ctx, a.OperatorID, s, ErrNoGroupSelected)
		}

		f.store.Update(a.OperatorID, func(s *session.Session) {
			s.State = session.Sending
		})
		logger.Info(ctx, "flow", "confirmed",
			slog.Int64("user_id", a.OperatorID),
			slog.String("group", group.Handle),
		)

		if _, err := f.api.Edit(liveView(s), views.Sending(group), mdOpts); err != nil {
			logger.Warn(ctx, "flow", "sending_view_failed", slog.Any("err", err))
		}

		// The fan-out outlives the update that triggered it.
		go f.runFanout(context.WithoutCancel(ctx), a.OperatorID, s, group)
		return nil
	})
}

func (f *Flow) runFanout(ctx context.Context, operatorID int64, s *session.Session, group *directory.Group) {
	members, err := f.dir.Members(ctx, group.ID)
	if err != nil {
		logger.Error(ctx, "flow", "fanout.members_failed",
			slog.Int64("group_id", group.ID),
			slog.Any("err", err),
		)
		_, _ = f.api.Edit(liveView(s), views.GenericError(), mdOpts)
		f.store.Delete(operatorID)
		return
	}

	res := f.bcast.Run(ctx, members, s.MessageText)

	if _, err := f.api.Edit(liveView(s), views.Report(group, res, s.MessageText), mdOpts); err != nil {
		logger.Error(ctx, "flow", "report.render_failed", slog.Any("err", err))
	}
	for _, chunk := range broadcast.ChunkFailed(res.Failed, f.cfg.ReportChunkSize) {
		if _, err := f.api.Send(tele.ChatID(s.ChatID), views.FailedChunk(chunk), mdOpts); err != nil {
			logger.Error(ctx, "flow", "report.chunk_failed",
				slog.String("chunk", chunk.Label),
				slog.Any("err", err),
			)
		}
	}

	f.store.Delete(operatorID)
	logger.Info(ctx, "flow", "session.finished",
		slog.Int64("user_id", operatorID),
		slog.String("group", group.Handle),
		slog.Int("delivered", len(res.Delivered)),
		slog.Int("failed", len(res.Failed)),
	)
}

// CancelCallback handles the Cancel button. A second press after the
// session is gone is a no-op.
func (f *Flow) CancelCallback(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	_, payload := middleware.ParseCallback(c.Callback())
	a, err := DecodeAction(payload)
	if err != nil || a.OperatorID != sender.ID {
		return nil
	}
	return f.cancel(c, sender.ID)
}

// CancelCommand handles /cancel.
func (f *Flow) CancelCommand(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return f.cancel(c, c.Sender().ID)
}

func (f *Flow) cancel(c tele.Context, operatorID int64) error {
	ctx := helpers.BuildContext(c)
	s, ok := f.store.Get(operatorID)
	if !ok {
		return helpers.SendNotice(c, views.NothingActive(), f.cfg.NoticeTTL())
	}
	if s.State == session.Sending {
		// Too late: the fan-out already started.
		return helpers.SendNotice(c, views.NothingActive(), f.cfg.NoticeTTL())
	}
	f.store.Delete(operatorID)

	msg, err := f.api.Edit(liveView(s), views.Cancelled(), mdOpts)
	if err != nil {
		logger.Warn(ctx, "flow", "cancel.view_failed", slog.Any("err", err))
	} else {
		helpers.DeleteAfter(c, msg, f.cfg.NoticeTTL())
	}

	logger.Info(ctx, "flow", "cancelled", slog.Int64("user_id", operatorID))
	return nil
}

func (f *Flow) editTimedOut(operatorID int64) {
	ctx := logger.Background()
	var expired *session.Session
	f.store.Update(operatorID, func(s *session.Session) {
		if s.State != session.Editing {
			return
		}
		s.State = session.AwaitingConfirmation
		s.StopEditTimer()
		expired = s
	})
	if expired == nil || expired.Group == nil {
		return
	}

	logger.Info(ctx, "flow", "edit.timeout", slog.Int64("user_id", operatorID))
	if err := f.renderPreview(expired, expired.Group, views.EditTimedOut()); err != nil {
		logger.Warn(ctx, "flow", "edit.timeout_view_failed", slog.Any("err", err))
	}
}

func (f *Flow) renderPreview(s *session.Session, group *directory.Group, note string) error {
	text := views.Preview(group, s.MessageText)
	if note != "" {
		text += "\n_" + note + "_"
	}
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Send", Unique: CallbackConfirm, Data: Action{OperatorID: s.OperatorID}.Encode()},
		{Text: "✏️ Edit", Unique: CallbackEdit, Data: Action{OperatorID: s.OperatorID}.Encode()},
		{Text: "✖️ Cancel", Unique: CallbackCancel, Data: Action{OperatorID: s.OperatorID}.Encode()},
	})
	_, err := f.api.Edit(liveView(s), text, &tele.SendOptions{
		ParseMode:   tele.ModeMarkdown,
		ReplyMarkup: markup,
	})
	return err
}

func (f *Flow) failSession(ctx context.Context, operatorID int64, s *session.Session, cause error) error {
	logger.Error(ctx, "flow", "session.failed",
		slog.Int64("user_id", operatorID),
		slog.Any("err", cause),
	)
	_, err := f.api.Edit(liveView(s), views.NoGroupSelected(), mdOpts)
	f.store.Delete(operatorID)
	return err
}

// withSession decodes the button action, drops presses by anyone but
// the session owner, and checks the expected state before running fn.
func (f *Flow) withSession(c tele.Context, want session.State, fn func(ctx context.Context, a Action, s *session.Session) error) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)

	_, payload := middleware.ParseCallback(c.Callback())
	a, err := DecodeAction(payload)
	if err != nil {
		logger.Warn(ctx, "flow", "action.decode_failed", slog.Any("err", err))
		return nil
	}
	if a.OperatorID != sender.ID {
		logger.Debug(ctx, "flow", "action.foreign_ignored",
			slog.Int64("user_id", sender.ID),
			slog.Int64("owner_id", a.OperatorID),
		)
		return nil
	}

	s, ok := f.store.Get(a.OperatorID)
	if !ok {
		logger.Debug(ctx, "flow", "action.no_session",
			slog.Int64("user_id", a.OperatorID),
			slog.String("reason", ErrNoSession.Error()),
		)
		return helpers.SendNotice(c, views.NothingActive(), f.cfg.NoticeTTL())
	}
	if s.State != want {
		logger.Debug(ctx, "flow", "action.wrong_state",
			slog.Int64("user_id", a.OperatorID),
			slog.String("state", s.State.String()),
		)
		return nil
	}
	return fn(ctx, a, s)
}

func commandPayload(text string) string {
	_, rest, _ := strings.Cut(text, " ")
	return strings.TrimSpace(rest)
}
