package document

import (
	"regexp"
	"strings"
)

// fenceTokens are interchangeable in the dialect produced by the generation
// API; models switch between them mid-document.
var fenceTokens = []string{"```", "~~~", "'''"}

var (
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	boldRe       = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*\n]+)\*`)
)

// FormatInline converts Markdown inline spans to the formatted representation
// the editable surface displays. It is idempotent: formatted output contains
// none of the span tokens, so a second pass is a no-op. The serializer relies
// on this when it re-runs formatting on round-tripped content.
func FormatInline(s string) string {
	s = stripStrayFences(s)
	s = inlineCodeRe.ReplaceAllString(s, "<code>$1</code>")
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	return s
}

// UnformatInline is the inverse of FormatInline, used when the serializer
// turns surface text back into Markdown spans.
func UnformatInline(s string) string {
	s = strings.ReplaceAll(s, "<strong>", "**")
	s = strings.ReplaceAll(s, "</strong>", "**")
	s = strings.ReplaceAll(s, "<em>", "*")
	s = strings.ReplaceAll(s, "</em>", "*")
	s = strings.ReplaceAll(s, "<code>", "`")
	s = strings.ReplaceAll(s, "</code>", "`")
	return UnescapeMarkup(s)
}

// stripStrayFences drops leftover single-line fence markers that survived
// block-level stripping in malformed generation output.
func stripStrayFences(s string) string {
	if !strings.ContainsAny(s, "`~'") {
		return s
	}
	lines := strings.Split(s, "\n")
	result := lines[:0]
	for _, line := range lines {
		if isBareFence(strings.TrimSpace(line)) {
			continue
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}

func isBareFence(s string) bool {
	for _, tok := range fenceTokens {
		if s == tok {
			return true
		}
	}
	return false
}

// fenceToken returns the fence token opening or closing a code block on this
// line, plus the trailing language tag, if any.
func fenceToken(line string) (lang string, ok bool) {
	trimmed := strings.TrimSpace(line)
	for _, tok := range fenceTokens {
		if strings.HasPrefix(trimmed, tok) {
			return strings.TrimSpace(trimmed[len(tok):]), true
		}
	}
	return "", false
}

// EscapeMarkup escapes markup-significant characters so code-block content is
// displayed verbatim, never interpreted.
func EscapeMarkup(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// UnescapeMarkup is the inverse of EscapeMarkup. The ampersand comes last so
// doubly-escaped sequences are not over-expanded.
func UnescapeMarkup(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}
