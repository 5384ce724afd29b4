package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"herald/bot/directory"
)

// recordingSender fails the user IDs listed in fail and remembers every
// attempt it saw.
type recordingSender struct {
	mu       sync.Mutex
	fail     map[int64]bool
	attempts []int64
}

func (r *recordingSender) SendDM(ctx context.Context, userID int64, text string) error {
	r.mu.Lock()
	r.attempts = append(r.attempts, userID)
	r.mu.Unlock()
	if r.fail[userID] {
		return errors.New("blocked by user")
	}
	return nil
}

func members(n int) []directory.Member {
	out := make([]directory.Member, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, directory.Member{
			UserID:   int64(i + 1),
			Username: fmt.Sprintf("user%d", i+1),
		})
	}
	return out
}

func fastOptions() Options {
	return Options{Workers: 4, RatePerSec: 10000}
}

func TestRunPreservesInputOrder(t *testing.T) {
	sender := &recordingSender{fail: map[int64]bool{3: true, 7: true}}
	svc := NewService(sender, fastOptions())

	in := members(10)
	res := svc.Run(context.Background(), in, "hello")

	if len(res.Delivered) != 8 {
		t.Fatalf("delivered = %d, want 8", len(res.Delivered))
	}
	if len(res.Failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(res.Failed))
	}

	// Both lists keep the member order of the input.
	var prev int64
	for _, m := range res.Delivered {
		if m.UserID <= prev {
			t.Fatalf("delivered out of order: %d after %d", m.UserID, prev)
		}
		prev = m.UserID
	}
	if res.Failed[0].UserID != 3 || res.Failed[1].UserID != 7 {
		t.Fatalf("failed order = %d,%d, want 3,7", res.Failed[0].UserID, res.Failed[1].UserID)
	}
}

func TestRunSkipsBotsWithoutAttempt(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, fastOptions())

	in := members(4)
	in[1].IsBot = true
	in[3].IsBot = true

	res := svc.Run(context.Background(), in, "hello")

	if res.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", res.Skipped)
	}
	if len(res.Delivered) != 2 {
		t.Fatalf("delivered = %d, want 2", len(res.Delivered))
	}
	for _, id := range sender.attempts {
		if id == in[1].UserID || id == in[3].UserID {
			t.Fatalf("send attempted for bot user %d", id)
		}
	}
}

func TestRunFailureDoesNotAbortBatch(t *testing.T) {
	sender := &recordingSender{fail: map[int64]bool{1: true}}
	svc := NewService(sender, Options{Workers: 1, RatePerSec: 10000})

	res := svc.Run(context.Background(), members(5), "hello")

	if len(sender.attempts) != 5 {
		t.Fatalf("attempts = %d, want all 5 despite the first failing", len(sender.attempts))
	}
	if len(res.Delivered) != 4 || len(res.Failed) != 1 {
		t.Fatalf("delivered/failed = %d/%d, want 4/1", len(res.Delivered), len(res.Failed))
	}
}

func TestRunEmptyMemberList(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, fastOptions())

	res := svc.Run(context.Background(), nil, "hello")
	if len(res.Delivered) != 0 || len(res.Failed) != 0 || res.Skipped != 0 {
		t.Fatalf("unexpected result for empty input: %+v", res)
	}
	if len(sender.attempts) != 0 {
		t.Fatalf("attempts = %d, want 0", len(sender.attempts))
	}
}
