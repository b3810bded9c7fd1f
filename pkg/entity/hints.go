package entity

import (
	"fmt"
	"strings"
)

// FormatLocationHints renders resolved locations as a prompt block telling
// the model exactly which filters to use. Returns "" when nothing matched.
func (r *Resolver) FormatLocationHints(matches []LocationMatch) string {
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("RESOLVED LOCATIONS (use these exact filters):")
	for _, m := range matches {
		fmt.Fprintf(&b, "\n- %q = ru.name = '%s' (revenue_unit_id = '%s', display: %s)",
			m.AliasMatched, m.DBName, m.RUID, m.DisplayName)
		fmt.Fprintf(&b, "\n  Use: WHERE o.revenue_unit_id = '%s' AND o.customer_id = %d",
			m.RUID, m.CustomerID)
		if m.Status == StatusMerged && m.MergedInto != "" {
			target, ok := r.locations.Entity(m.MergedInto)
			name := "?"
			if ok {
				name = target.DBName
			}
			fmt.Fprintf(&b, "\n  Note: Merged into %s (ruid %s). Include both for historical data.",
				name, m.MergedInto)
		}
	}
	return b.String()
}

// FormatProductHints renders resolved products as a prompt block.
// Returns "" when nothing matched.
func (r *Resolver) FormatProductHints(matches []ProductMatch) string {
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("RESOLVED PRODUCTS (use these exact filters):")
	for _, m := range matches {
		if m.Category != "" {
			fmt.Fprintf(&b, "\n- %q -> category: %s", m.AliasMatched, m.Category)
		} else {
			fmt.Fprintf(&b, "\n- %q ->", m.AliasMatched)
		}
		fmt.Fprintf(&b, "\n  Use: ol.article_name ILIKE '%%%s%%'", m.Name)
	}
	return b.String()
}
