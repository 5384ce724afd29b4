package handlers

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	coretelegram "herald/core/telegram"
	"herald/core/telegram/helpers"
)

// helpCommand lists the commands visible to regular users.
func helpCommand(reg *coretelegram.Registry) tele.HandlerFunc {
	return func(c tele.Context) error {
		var b strings.Builder
		b.WriteString("*Available commands*\n")
		for _, cmd := range reg.ListCommands(true) {
			b.WriteString(cmd.Text + " - " + cmd.Description + "\n")
		}
		return helpers.SendMD(c, strings.TrimRight(b.String(), "\n"))
	}
}
