package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestSanitizeErrorMessageRedactsToken(t *testing.T) {
	err := errors.New("Post \"https://api.telegram.org/bot123456:AAHdqwe_rty/sendMessage\": timeout")
	got := sanitizeErrorMessage(err)
	if got != "Post \"https://api.telegram.org/bot<redacted>/sendMessage\": timeout" {
		t.Fatalf("token not redacted: %q", got)
	}
	if sanitizeErrorMessage(nil) != "" {
		t.Fatal("nil error should sanitize to empty string")
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{&net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, "dial"},
		{&tele.Error{Code: 502}, "http_5xx"},
		{&tele.Error{Code: 403}, "http_4xx"},
		{errors.New("telegram: Bad Request (400)"), "http_4xx"},
		{errors.New("boom"), "unknown"},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Errorf("classifyError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	d := NewDispatcher(Options{
		QueueSize:    4,
		Workers:      1,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
	defer d.Close()

	var attempts atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send.test", "sendMessage", func() error {
		if attempts.Add(1) == 1 {
			return &net.OpError{Op: "read", Err: syscall.ECONNRESET}
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	if n := attempts.Load(); n != 2 {
		t.Fatalf("attempts = %d, want 2", n)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("error count = %d, want 0 after eventual success", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	d.Close()
	err := d.Enqueue(context.Background(), "send.test", "sendMessage", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}
