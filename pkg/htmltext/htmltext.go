// Package htmltext has small text helpers for feed content: feed summaries
// and tags often arrive with embedded markup that has to go before
// classification or display.
package htmltext

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	wsRe        = regexp.MustCompile(`\s+`)
	stripPolicy = bluemonday.StrictPolicy()
)

// NormalizeSpace collapses all whitespace runs to single spaces and trims
func NormalizeSpace(text string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(text, " "))
}

// StripTags removes all HTML markup and entities, returning plain
// whitespace-normalized text
func StripTags(text string) string {
	return NormalizeSpace(html.UnescapeString(stripPolicy.Sanitize(text)))
}

// SplitSentences splits normalized text on sentence-ending punctuation
// followed by whitespace. Good enough for summary bullets; not a linguistic
// sentence segmenter.
func SplitSentences(text string) []string {
	text = NormalizeSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	var cur strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && runes[i+1] == ' ' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
