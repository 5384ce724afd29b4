package session

import (
	"sync"
	"testing"
	"time"
)

func TestStoreOneSessionPerOperator(t *testing.T) {
	st := NewStore()

	if st.Has(1) {
		t.Fatal("empty store reports a session")
	}
	if _, ok := st.Get(1); ok {
		t.Fatal("Get on empty store returned a session")
	}

	st.Set(1, &Session{OperatorID: 1, MessageText: "first"})
	st.Set(1, &Session{OperatorID: 1, MessageText: "second"})

	if st.Len() != 1 {
		t.Fatalf("Len = %d, want 1", st.Len())
	}
	s, ok := st.Get(1)
	if !ok {
		t.Fatal("session missing after Set")
	}
	if s.MessageText != "second" {
		t.Fatalf("MessageText = %q, want the replacing session", s.MessageText)
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	st := NewStore()
	st.Set(7, &Session{OperatorID: 7, MessageText: "hi"})

	st.Delete(7)
	if st.Has(7) {
		t.Fatal("session survived Delete")
	}
	// Second delete must be a no-op.
	st.Delete(7)
	st.Delete(404)
}

func TestStoreDeleteStopsEditTimer(t *testing.T) {
	st := NewStore()
	fired := make(chan struct{}, 1)

	s := &Session{OperatorID: 3, MessageText: "hi", State: Editing}
	s.SetEditTimer(time.AfterFunc(30*time.Millisecond, func() {
		fired <- struct{}{}
	}))
	st.Set(3, s)
	st.Delete(3)

	select {
	case <-fired:
		t.Fatal("edit timer fired after the session was deleted")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestStoreUpdate(t *testing.T) {
	st := NewStore()

	if st.Update(9, func(*Session) { t.Fatal("fn called without a session") }) {
		t.Fatal("Update reported success for a missing session")
	}

	st.Set(9, &Session{OperatorID: 9, MessageText: "old", State: AwaitingConfirmation})
	ok := st.Update(9, func(s *Session) {
		s.MessageText = "new"
		s.State = Editing
	})
	if !ok {
		t.Fatal("Update failed for an existing session")
	}
	s, _ := st.Get(9)
	if s.MessageText != "new" || s.State != Editing {
		t.Fatalf("session not updated: text=%q state=%v", s.MessageText, s.State)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			st.Set(id, &Session{OperatorID: id, MessageText: "x"})
			st.Has(id)
			st.Update(id, func(s *Session) { s.State = AwaitingGroupSelection })
			st.Delete(id)
		}(int64(i % 8))
	}
	wg.Wait()
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		AwaitingGroupSelection: "awaiting_group_selection",
		AwaitingConfirmation:   "awaiting_confirmation",
		Editing:                "editing",
		Sending:                "sending",
		State(99):              "unknown",
	}
	for st, want := range cases {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", st, got, want)
		}
	}
}
