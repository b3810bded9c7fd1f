package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFencePattern = regexp.MustCompile("(?s)```(?:sql|json)?\\s*\n?(.*?)```")

// ExtractSQL strips markdown fences, surrounding prose, and the
// trailing semicolon from model SQL output.
func ExtractSQL(text string) string {
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))
}

// ExtractJSON pulls a JSON document out of model output that may wrap
// it in fences or prose. Tries, in order: the raw text, a fenced
// block, the first balanced object or array.
func ExtractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		fenced := strings.TrimSpace(m[1])
		if json.Valid([]byte(fenced)) {
			return fenced, nil
		}
	}

	// Try the structure whose opener appears first, so an object inside
	// an array is not mistaken for the document.
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	if objStart >= 0 && (arrStart < 0 || objStart < arrStart) {
		if doc, ok := extractBalanced(text, '{', '}'); ok && json.Valid([]byte(doc)) {
			return doc, nil
		}
	}
	if arrStart >= 0 {
		if doc, ok := extractBalanced(text, '[', ']'); ok && json.Valid([]byte(doc)) {
			return doc, nil
		}
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// extractBalanced finds the first balanced structure opened by openCh,
// tracking nesting depth and string literals.
func extractBalanced(s string, openCh, closeCh byte) (string, bool) {
	start := strings.IndexByte(s, openCh)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Insight is the narrative and chart spec produced from query results.
type Insight struct {
	Insight   string `json:"insight"`
	ChartType string `json:"chart_type"`
	XKey      string `json:"x_key"`
	YKey      string `json:"y_key"`
	Title     string `json:"title"`
}

const insightFallbackLimit = 500

// ParseInsight parses model output into an Insight. Malformed output
// never escapes: the raw text, truncated, becomes the insight with no
// chart.
func ParseInsight(text string) Insight {
	doc, err := ExtractJSON(text)
	if err == nil {
		var ins Insight
		if json.Unmarshal([]byte(doc), &ins) == nil && ins.Insight != "" {
			return ins
		}
	}

	fallback := strings.TrimSpace(text)
	if runes := []rune(fallback); len(runes) > insightFallbackLimit {
		fallback = string(runes[:insightFallbackLimit])
	}
	return Insight{Insight: fallback, ChartType: "none"}
}
