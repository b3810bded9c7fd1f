// Package cache implements the tiered query cache for the ask pipeline.
//
// Tier 0 caches full responses for 30 minutes. Tier 1 is a library of
// common questions whose SQL is pre-generated at startup. Tier 2 caches
// generated SQL with no expiry. Everything else runs the full pipeline.
package cache

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumPattern   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, strips accents, removes punctuation and collapses
// whitespace. The same normalization runs on both the read and the write
// path, so phrasing variants of one question share a cache key.
func Normalize(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = stripAccents(q)
	q = nonAlnumPattern.ReplaceAllString(q, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(q, " "))
}

func stripAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeSensitivePattern matches periods whose underlying data changes while
// a cached response would still be live, such as "sales today" asked at
// 8am versus 10am. Matched against the normalized question so the accent
// free Norwegian forms line up.
var timeSensitivePattern = regexp.MustCompile(
	`\b(today|i\s*dag|yesterday|i\s*gar|this\s*week|denne\s*uken|` +
		`this\s*month|denne\s*maneden|right\s*now|akkurat\s*na|` +
		`last\s*hour|siste\s*timen?)\b`,
)

// IsTimeSensitive reports whether the question references a time period
// that moves. Time-sensitive questions are never served from or written to
// the response cache.
func IsTimeSensitive(question string) bool {
	return timeSensitivePattern.MatchString(Normalize(question))
}
