// Package session holds the per-operator broadcast workflow state.
// Sessions live in memory only and do not survive a restart.
package session

import (
	"sync"
	"time"

	"herald/bot/directory"
)

// State is the position of a session in the broadcast workflow.
type State int

const (
	// AwaitingGroupSelection: group picker shown, no group chosen yet.
	AwaitingGroupSelection State = iota
	// AwaitingConfirmation: preview shown with Confirm / Edit / Cancel.
	AwaitingConfirmation
	// Editing: waiting for the operator's replacement message text.
	Editing
	// Sending: fan-out in progress; the session ends when it completes.
	Sending
)

func (s State) String() string {
	switch s {
	case AwaitingGroupSelection:
		return "awaiting_group_selection"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Editing:
		return "editing"
	case Sending:
		return "sending"
	default:
		return "unknown"
	}
}

// Preview identifies the single live view message that every workflow
// step edits in place.
type Preview struct {
	ChatID    int64
	MessageID string
}

// Session is one operator's in-flight broadcast. MessageText is never
// empty; Group stays nil until the operator picks one.
type Session struct {
	OperatorID  int64
	ChatID      int64
	MessageText string
	Group       *directory.Group
	Preview     Preview
	State       State

	// editTimer bounds the Editing state when an edit timeout is
	// configured. Guarded by the owning Store's mutex.
	editTimer *time.Timer
}

// SetEditTimer replaces the pending edit-timeout timer, stopping any
// previous one.
func (s *Session) SetEditTimer(t *time.Timer) {
	if s.editTimer != nil {
		s.editTimer.Stop()
	}
	s.editTimer = t
}

// StopEditTimer cancels a pending edit timeout, if any.
func (s *Session) StopEditTimer() {
	if s.editTimer != nil {
		s.editTimer.Stop()
		s.editTimer = nil
	}
}

// Store keeps at most one session per operator. Handlers run on
// separate goroutines, so every access goes through the mutex.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Set stores (or replaces) the operator's session.
func (st *Store) Set(operatorID int64, s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[operatorID] = s
}

// Get returns the operator's session, if one exists.
func (st *Store) Get(operatorID int64) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[operatorID]
	return s, ok
}

// Has reports whether the operator has an active session.
func (st *Store) Has(operatorID int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[operatorID]
	return ok
}

// Delete removes the operator's session and stops its edit timer.
// Deleting an absent session is a no-op, so cancel stays idempotent.
func (st *Store) Delete(operatorID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[operatorID]; ok {
		s.StopEditTimer()
		delete(st.sessions, operatorID)
	}
}

// Update runs fn against the operator's session under the store lock.
// It reports false without calling fn when no session exists.
func (st *Store) Update(operatorID int64, fn func(*Session)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[operatorID]
	if !ok {
		return false
	}
	fn(s)
	return true
}

// Len returns the number of active sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
