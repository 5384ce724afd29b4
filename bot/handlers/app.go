// Package handlers assembles the bot: registry entries, routes,
// middleware, and the runtime wiring between flow, directory, and the
// fan-out sender.
package handlers

import (
	"context"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"herald/bot/broadcast"
	"herald/bot/directory"
	"herald/bot/flow"
	coreconfig "herald/core/config"
	coretelegram "herald/core/telegram"
	"herald/core/telegram/commands"
	"herald/core/telegram/helpers"
	"herald/core/telegram/middleware"
	"herald/core/telegram/router"
	tgsender "herald/core/telegram/sender"

	"herald/bot/session"
	"herald/bot/views"
)

// App owns the bot's domain services and builds its run options.
type App struct {
	cfg  *coreconfig.Config
	dir  *directory.Service
	flow *flow.Flow
	dm   *dmSender
}

// New wires the domain services on top of the connected database.
func New(cfg *coreconfig.Config, db *sqlx.DB) *App {
	dir := directory.NewService(db)
	dm := &dmSender{}
	bcast := broadcast.NewService(dm, broadcast.Options{
		Workers:    cfg.Broadcast.Workers,
		RatePerSec: float64(cfg.Broadcast.RatePerSec),
	})

	return &App{
		cfg: cfg,
		dir: dir,
		dm:  dm,
		flow: flow.New(flow.Options{
			Store:       session.NewStore(),
			Directory:   dir,
			Broadcaster: bcast,
			Config:      cfg.Broadcast,
		}),
	}
}

// TelegramRunOptions builds the registry, routes, and middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/message", commands.Command{
		Handler:     a.flow.StartCommand,
		Description: "Broadcast a message to a group",
		SupportOnly: true,
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.flow.CancelCommand,
		Description: "Cancel the broadcast in progress",
		SupportOnly: true,
	})
	reg.RegisterCommand("/join", commands.Command{
		Handler:     a.joinCommand,
		Description: "Join an audience group",
	})
	reg.RegisterCommand("/leave", commands.Command{
		Handler:     a.leaveCommand,
		Description: "Leave an audience group",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     helpCommand(reg),
		Description: "List available commands",
		Aliases:     []string{"start"},
	})

	_ = reg.RegisterCallback(flow.CallbackGroupSelect, a.flow.SelectGroupCallback)
	_ = reg.RegisterCallback(flow.CallbackConfirm, a.flow.ConfirmCallback)
	_ = reg.RegisterCallback(flow.CallbackEdit, a.flow.EditCallback)
	_ = reg.RegisterCallback(flow.CallbackCancel, a.flow.CancelCallback)

	checker := &supportChecker{dir: a.dir, group: a.cfg.Broadcast.SupportGroup}
	rejectNotice := func(c tele.Context) error {
		return helpers.SendNotice(c, views.NotAuthorized(), a.cfg.Broadcast.NoticeTTL())
	}
	middleware.PanicNotice = func(c tele.Context) error {
		return helpers.SendNotice(c, views.GenericError(), a.cfg.Broadcast.NoticeTTL())
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		Support:         checker,
		OnSupportReject: rejectNotice,
	})
	routes = append(routes,
		router.CallbackRoute(reg, router.CallbackOptions{}),
		router.TextRoute(a.flow, reg, router.TextOptions{}),
	)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		DispatcherOptions: tgsender.Options{
			Workers: a.cfg.Broadcast.Workers,
		},
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.flow.Bind(rt.Bot)
			a.dm.bind(rt.Bot)
			return nil
		},
	}, nil
}
