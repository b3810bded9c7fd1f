package sqlguard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Schema prefixes whose tables carry a customer_id column and must be
// filtered to the caller's scope.
var scopedSchemaPrefixes = []string{
	"munu.", "admin.", "cakeiteasy.", "planday.", "reference.", "munuiq.",
}

var (
	whereKeyword = regexp.MustCompile(`(?i)\bWHERE\b`)

	// Clause keywords a new WHERE must precede, in priority order.
	trailingClauses = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bORDER\s+BY\b`),
		regexp.MustCompile(`(?i)\bGROUP\s+BY\b`),
		regexp.MustCompile(`(?i)\bHAVING\b`),
		regexp.MustCompile(`(?i)\bLIMIT\b`),
	}
)

// BuildScopeConstraint renders the prompt-level scope instruction, the
// soft first layer of tenant enforcement. Empty scope means the caller
// is unrestricted and gets no constraint.
func BuildScopeConstraint(scope []int) string {
	if len(scope) == 0 {
		return ""
	}
	return fmt.Sprintf("\n\nCRITICAL: Every query MUST include WHERE customer_id IN (%s) "+
		"on ALL tables from munu, munuiq, admin, cakeiteasy, planday, and reference schemas. "+
		"This is mandatory and must not be omitted.", joinIDs(scope))
}

// InjectTenantScope is the hard second layer: it verifies that a
// customer_id filter is present in SQL touching scoped schemas and
// splices one in when missing. Idempotent; re-running on already scoped
// SQL returns it unchanged.
func InjectTenantScope(sql string, scope []int) string {
	if len(scope) == 0 {
		return sql
	}

	lower := strings.ToLower(sql)
	scoped := false
	for _, prefix := range scopedSchemaPrefixes {
		if strings.Contains(lower, prefix) {
			scoped = true
			break
		}
	}
	if !scoped {
		return sql
	}

	filter := fmt.Sprintf("customer_id IN (%s)", joinIDs(scope))
	if strings.Contains(lower, strings.ToLower(filter)) {
		return sql
	}
	if len(scope) == 1 && strings.Contains(lower, fmt.Sprintf("customer_id = %d", scope[0])) {
		return sql
	}

	// Keyword positions are located on quote-masked text so literals
	// cannot fool the splice.
	masked := maskStringLiterals(sql)

	if loc := whereKeyword.FindStringIndex(masked); loc != nil {
		pos := loc[1]
		return sql[:pos] + " " + filter + " AND" + sql[pos:]
	}

	for _, clause := range trailingClauses {
		if loc := clause.FindStringIndex(masked); loc != nil {
			pos := loc[0]
			return sql[:pos] + "WHERE " + filter + " " + sql[pos:]
		}
	}

	return strings.TrimRight(strings.TrimSuffix(strings.TrimRight(sql, " \t\n\r"), ";"), " \t\n\r") +
		" WHERE " + filter
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
