package engine

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/anatolykoptev/go-kit/strutil"
)

// Ellipsis marks text cut at the character limit.
const Ellipsis = "…"

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot    = "go_transcript/1.0"
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

var (
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// CleanHTML strips tags, unescapes entities and collapses whitespace.
func CleanHTML(s string) string {
	return CollapseSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(s, " ")))
}

// CollapseSpace folds every whitespace run into one space and trims the ends.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// TrimText caps text at limit runes. A cut result has trailing whitespace
// removed and the ellipsis appended; partial reports whether a cut happened.
func TrimText(text string, limit int) (trimmed string, partial bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	cut := strutil.TruncateWith(text, limit, "")
	return strings.TrimRightFunc(cut, unicode.IsSpace) + Ellipsis, true
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}
