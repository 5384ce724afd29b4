package broadcast

import (
	"testing"

	"herald/bot/directory"
)

func TestChunkFailedSinglePageHasNoLabel(t *testing.T) {
	chunks := ChunkFailed(members(25), 25)
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Label != "" {
		t.Fatalf("single chunk labeled %q, want no label", chunks[0].Label)
	}
	if len(chunks[0].Members) != 25 {
		t.Fatalf("chunk size = %d, want 25", len(chunks[0].Members))
	}
}

func TestChunkFailedSplitsAndLabels(t *testing.T) {
	chunks := ChunkFailed(members(60), 25)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}

	wantLabels := []string{"(1/3)", "(2/3)", "(3/3)"}
	wantSizes := []int{25, 25, 10}
	var expect int64 = 1
	for i, c := range chunks {
		if c.Label != wantLabels[i] {
			t.Errorf("chunk %d label = %q, want %q", i, c.Label, wantLabels[i])
		}
		if len(c.Members) != wantSizes[i] {
			t.Errorf("chunk %d size = %d, want %d", i, len(c.Members), wantSizes[i])
		}
		for _, m := range c.Members {
			if m.UserID != expect {
				t.Fatalf("chunk %d broke ordering: got user %d, want %d", i, m.UserID, expect)
			}
			expect++
		}
	}
}

func TestChunkFailedEmpty(t *testing.T) {
	if chunks := ChunkFailed(nil, 25); chunks != nil {
		t.Fatalf("chunks = %v, want nil", chunks)
	}
	if chunks := ChunkFailed([]directory.Member{}, 25); chunks != nil {
		t.Fatalf("chunks = %v, want nil", chunks)
	}
}

func TestChunkFailedBadSizeFallsBack(t *testing.T) {
	chunks := ChunkFailed(members(30), 0)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 with the default size", len(chunks))
	}
}
