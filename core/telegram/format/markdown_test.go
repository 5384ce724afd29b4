package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		in      string
		version int
		want    string
	}{
		{"plain text", MarkdownV1, "plain text"},
		{"a_b*c[d`e", MarkdownV1, `a\_b\*c\[d` + "\\`e"},
		{"a.b!c#d", MarkdownV1, "a.b!c#d"},
		{"a.b!c#d", MarkdownV2, `a\.b\!c\#d`},
		{"(x)", MarkdownV2, `\(x\)`},
	}
	for _, tc := range cases {
		if got := EscapeMarkdown(tc.in, tc.version); got != tc.want {
			t.Errorf("EscapeMarkdown(%q, v%d) = %q, want %q", tc.in, tc.version, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"hello", 1, "…"},
		{"hello", 0, ""},
		{"héllo", 4, "hél…"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.limit); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}
