// Package sqlguard enforces the two hard invariants on generated SQL
// before execution: the statement is read-only, and it is scoped to the
// caller's tenants. Both checks are textual; this is a safety net on
// top of prompt-level constraints, not a SQL parser.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/munuiq/insights-engine/pkg/apperrors"
)

var (
	selectPrefix = regexp.MustCompile(`(?i)^(SELECT|WITH)\b`)

	// Mutating and DDL keywords rejected anywhere in the statement,
	// including inside CTE bodies and string literals.
	blockedKeywords = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|REPLACE|MERGE|GRANT|REVOKE|EXEC|EXECUTE|CALL)\b`)
)

// ValidateReadOnly checks that sql is a single read-only statement and
// returns it normalized (trimmed, trailing semicolon stripped). Any
// violation wraps apperrors.ErrRejectedQuery; rejected queries are
// never auto-repaired.
func ValidateReadOnly(sql string) (string, error) {
	normalized := stripTrailingSemicolon(strings.TrimSpace(sql))

	if normalized == "" {
		return "", fmt.Errorf("empty statement: %w", apperrors.ErrRejectedQuery)
	}
	if !selectPrefix.MatchString(normalized) {
		return "", fmt.Errorf("only SELECT and WITH statements are allowed: %w", apperrors.ErrRejectedQuery)
	}
	if hasSemicolonOutsideStrings(normalized) {
		return "", fmt.Errorf("multiple statements are not allowed: %w", apperrors.ErrRejectedQuery)
	}
	if m := blockedKeywords.FindString(normalized); m != "" {
		return "", fmt.Errorf("blocked keyword %s: %w", strings.ToUpper(m), apperrors.ErrRejectedQuery)
	}
	return normalized, nil
}

func stripTrailingSemicolon(sql string) string {
	sql = strings.TrimRight(sql, " \t\n\r")
	if strings.HasSuffix(sql, ";") {
		sql = strings.TrimRight(strings.TrimSuffix(sql, ";"), " \t\n\r")
	}
	return sql
}

// hasSemicolonOutsideStrings reports whether any semicolon remains
// outside string literals. The trailing semicolon is already stripped,
// so any hit means a second statement.
func hasSemicolonOutsideStrings(sql string) bool {
	return strings.ContainsRune(maskStringLiterals(sql), ';')
}

// maskStringLiterals replaces the contents of single- and double-quoted
// literals with spaces, preserving length and positions, so the semicolon
// scan and the scope splice cannot match quoted data. Handles both
// backslash and SQL doubled-quote escapes.
func maskStringLiterals(sql string) string {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	out := []rune(sql)
	state := stateNormal
	prev := rune(0)

	for i, ch := range out {
		switch state {
		case stateNormal:
			switch ch {
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			if ch == '\'' && prev != '\\' {
				state = stateNormal
			} else {
				out[i] = ' '
			}
		case stateDoubleQuote:
			if ch == '"' && prev != '\\' {
				state = stateNormal
			} else {
				out[i] = ' '
			}
		}
		prev = ch
	}
	return string(out)
}
