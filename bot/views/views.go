// Package views renders every user-facing text of the broadcast
// workflow. All templates use Telegram MarkdownV1; user-supplied text
// is escaped before interpolation.
package views

import (
	"fmt"
	"strings"

	"herald/bot/broadcast"
	"herald/bot/directory"
	"herald/core/telegram/format"
)

func esc(s string) string {
	return format.EscapeMarkdown(s, format.MarkdownV1)
}

// Picker is the header above the group selection keyboard.
func Picker() string {
	return "*New broadcast*\nChoose the group to message:"
}

// NoEligibleGroups explains why no picker could be shown.
func NoEligibleGroups(minMembers int) string {
	return fmt.Sprintf("No group has %d or more members yet. Nothing to broadcast to.", minMembers)
}

// AlreadyActive rejects a second /message while one is in flight.
func AlreadyActive() string {
	return "You already have a broadcast in progress. Finish or /cancel it first."
}

// NotAuthorized rejects operators outside the support group.
func NotAuthorized() string {
	return "You are not allowed to send broadcasts."
}

// Usage is shown when /message comes without content.
func Usage() string {
	return "Usage: `/message <text to broadcast>`"
}

// Preview renders the live view in the confirmation step.
func Preview(g *directory.Group, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Broadcast to %s* (%d members)\n\n", esc(g.Title), g.MemberCount)
	b.WriteString(esc(text))
	b.WriteString("\n\nSend this message?")
	return b.String()
}

// EditPrompt renders the live view while waiting for replacement text.
func EditPrompt(g *directory.Group) string {
	return fmt.Sprintf("*Broadcast to %s*\n\nSend the new message text. Your next message here replaces the current one.", esc(g.Title))
}

// Sending replaces the live view while the fan-out runs.
func Sending(g *directory.Group) string {
	return fmt.Sprintf("Sending to *%s*…", esc(g.Title))
}

// Report summarizes a finished fan-out: counts plus the exact text sent.
func Report(g *directory.Group, res broadcast.Result, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Broadcast to %s finished*\n", esc(g.Title))
	fmt.Fprintf(&b, "Delivered: %d\nFailed: %d\n", len(res.Delivered), len(res.Failed))
	if res.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped bots: %d\n", res.Skipped)
	}
	b.WriteString("\nMessage:\n")
	b.WriteString(esc(text))
	return b.String()
}

// FailedChunk renders one page of failed recipients.
func FailedChunk(c broadcast.Chunk) string {
	var b strings.Builder
	b.WriteString("*Could not deliver to*")
	if c.Label != "" {
		b.WriteString(" " + c.Label)
	}
	b.WriteString(":\n")
	for _, m := range c.Members {
		b.WriteString("• " + esc(m.DisplayName()) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Cancelled is the self-deleting notice after a cancel.
func Cancelled() string {
	return "Broadcast cancelled."
}

// NothingActive answers /cancel (or a stale button) with no session.
func NothingActive() string {
	return "No broadcast in progress."
}

// NoGroupSelected is shown if confirm arrives with no group stored.
func NoGroupSelected() string {
	return "Something went wrong: no group was selected. Start over with /message."
}

// EditTimedOut is appended to the preview after an expired edit window.
func EditTimedOut() string {
	return "Edit window expired, keeping the previous text."
}

// GenericError is the self-deleting notice after an unexpected failure.
func GenericError() string {
	return "Something went wrong. Please try again."
}

// Joined confirms a /join.
func Joined(g *directory.Group) string {
	return fmt.Sprintf("You joined *%s*.", esc(g.Title))
}

// Left confirms a /leave.
func Left(g *directory.Group) string {
	return fmt.Sprintf("You left *%s*.", esc(g.Title))
}

// NotAMember answers /leave for a group the user is not in.
func NotAMember(g *directory.Group) string {
	return fmt.Sprintf("You are not a member of *%s*.", esc(g.Title))
}

// UnknownGroup answers /join or /leave with an unknown handle.
func UnknownGroup(handle string) string {
	return fmt.Sprintf("Unknown group `%s`.", esc(handle))
}

// MembershipUsage is shown when /join or /leave comes without a handle.
func MembershipUsage(command string) string {
	return fmt.Sprintf("Usage: `/%s <group>`", command)
}
