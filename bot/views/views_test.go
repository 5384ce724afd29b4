package views

import (
	"strings"
	"testing"

	"herald/bot/broadcast"
	"herald/bot/directory"
)

var devs = &directory.Group{ID: 1, Handle: "devs", Title: "Developers", MemberCount: 3}

func TestPreviewEscapesUserText(t *testing.T) {
	got := Preview(devs, "run `rm -rf` *now*")
	if !strings.Contains(got, "\\`rm -rf\\`") || !strings.Contains(got, "\\*now\\*") {
		t.Fatalf("user text not escaped: %q", got)
	}
	if !strings.Contains(got, "Developers") || !strings.Contains(got, "(3 members)") {
		t.Fatalf("preview missing group header: %q", got)
	}
}

func TestReportCountsAndText(t *testing.T) {
	res := broadcast.Result{
		Delivered: []directory.Member{{UserID: 1}, {UserID: 2}},
		Failed:    []directory.Member{{UserID: 3}},
		Skipped:   1,
	}
	got := Report(devs, res, "release tonight")
	for _, want := range []string{"Delivered: 2", "Failed: 1", "Skipped bots: 1", "release tonight"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestFailedChunkListsRecipients(t *testing.T) {
	chunk := broadcast.Chunk{
		Label: "(2/3)",
		Members: []directory.Member{
			{UserID: 5, Username: "eve"},
			{UserID: 6, FirstName: "Frank"},
			{UserID: 7},
		},
	}
	got := FailedChunk(chunk)
	for _, want := range []string{"(2/3)", "@eve", "Frank", "id:7"} {
		if !strings.Contains(got, want) {
			t.Errorf("chunk missing %q:\n%s", want, got)
		}
	}
}
