// Package format contains small text helpers for Telegram output.
package format

import "strings"

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

var (
	mdV1Replacer = buildReplacer("_*[`")
	mdV2Replacer = buildReplacer("_*[]()~`>#+-=|{}.!")
)

func buildReplacer(specials string) *strings.Replacer {
	pairs := make([]string, 0, len(specials)*2)
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes special characters so arbitrary user input can
// be embedded into MarkdownV1 or V2 formatted messages. Unknown
// versions fall back to V1.
func EscapeMarkdown(text string, version int) string {
	if version == MarkdownV2 {
		return mdV2Replacer.Replace(text)
	}
	return mdV1Replacer.Replace(text)
}

// Truncate shortens s to at most limit runes, appending an ellipsis
// when anything was cut. Limit values below 1 return an empty string.
func Truncate(s string, limit int) string {
	if limit < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
