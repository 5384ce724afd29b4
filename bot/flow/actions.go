package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback keys for the workflow buttons. The key selects the handler;
// the payload carries the typed action.
const (
	CallbackGroupSelect = "bc_group"
	CallbackConfirm     = "bc_confirm"
	CallbackEdit        = "bc_edit"
	CallbackCancel      = "bc_cancel"
)

// Action is the decoded payload of a workflow button. Every button
// names the operator who owns the session, so presses by anyone else
// can be ignored; GroupID is zero for buttons not tied to a group.
type Action struct {
	OperatorID int64
	GroupID    int64
}

// Encode packs the action into a callback payload.
func (a Action) Encode() string {
	if a.GroupID == 0 {
		return strconv.FormatInt(a.OperatorID, 10)
	}
	return fmt.Sprintf("%d:%d", a.OperatorID, a.GroupID)
}

// DecodeAction parses a callback payload produced by Encode.
func DecodeAction(payload string) (Action, error) {
	var a Action
	opPart, groupPart, hasGroup := strings.Cut(payload, ":")

	op, err := strconv.ParseInt(opPart, 10, 64)
	if err != nil {
		return Action{}, fmt.Errorf("flow: bad action operator %q: %w", payload, err)
	}
	a.OperatorID = op

	if hasGroup {
		g, err := strconv.ParseInt(groupPart, 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("flow: bad action group %q: %w", payload, err)
		}
		a.GroupID = g
	}
	return a, nil
}
