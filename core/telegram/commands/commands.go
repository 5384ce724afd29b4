package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// SupportOnly restricts the command to members of the configured support group.
	SupportOnly bool
	Hidden      bool
	Aliases     []string
}
