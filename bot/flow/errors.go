package flow

import "errors"

var (
	// ErrSessionExists rejects a second /message while one is active.
	ErrSessionExists = errors.New("flow: broadcast already in progress")
	// ErrNoSession marks an action that needs an active session.
	ErrNoSession = errors.New("flow: no broadcast in progress")
	// ErrNoEligibleGroups means no group meets the member threshold.
	ErrNoEligibleGroups = errors.New("flow: no eligible groups")
	// ErrNoGroupSelected marks a confirm with no group stored.
	ErrNoGroupSelected = errors.New("flow: no group selected")
	// ErrEmptyMessage rejects /message without content.
	ErrEmptyMessage = errors.New("flow: empty message text")
)
