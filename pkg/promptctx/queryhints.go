package promptctx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/munuiq/insights-engine/pkg/timeperiod"
)

// Intent regexes for the pre-model hint pass. Cheaper and blunter than
// domain detection; they pick concrete tables and joins, not domains.
var (
	salesIntent    = regexp.MustCompile(`(?i)\b(sol[gd]t|sell|sold|sale[s]?|salg|kj[øo]p|bought|order|bestill|antall|quantity|how\s+many)\b`)
	locationIntent = regexp.MustCompile(`(?i)\b(location|lokasjoner?|butik[k]?|outlet|sted|avdeling|installation|per\s+sted|by\s+location)\b`)
	revenueIntent  = regexp.MustCompile(`(?i)\b(revenue|omsetning|inntekt|turnover|income|earnings)\b`)
	categoryIntent = regexp.MustCompile(`(?i)\b(categor(?:y|ies)|kategori(?:er)?|group|gruppe)\b`)
	paymentIntent  = regexp.MustCompile(`(?i)\b(payment|betaling|vipps|kort|cash|kontant)\b`)
	wasteIntent    = regexp.MustCompile(`(?i)\b(waste|svinn|kast(?:et)?|thrown\s+away)\b`)
	laborIntent    = regexp.MustCompile(`(?i)\b(shift|skift|vakt|arbeid|timer|hours?\s+worked|labor|labour)\b`)
)

// Aliased date predicates for query hints. Keyed by the time resolver's
// base period labels; periods without an entry get no date hint.
var aliasedDateHints = map[string]string{
	"today":      "o.order_date = CURRENT_DATE",
	"yesterday":  "o.order_date = CURRENT_DATE - INTERVAL '1 day'",
	"this_week":  "o.order_date >= DATE_TRUNC('week', CURRENT_DATE)",
	"last_week":  "o.order_date >= DATE_TRUNC('week', CURRENT_DATE) - INTERVAL '7 days' AND o.order_date < DATE_TRUNC('week', CURRENT_DATE)",
	"this_month": "o.order_date >= DATE_TRUNC('month', CURRENT_DATE)",
	"last_month": "o.order_date >= DATE_TRUNC('month', CURRENT_DATE) - INTERVAL '1 month' AND o.order_date < DATE_TRUNC('month', CURRENT_DATE)",
	"this_year":  "o.order_date >= DATE_TRUNC('year', CURRENT_DATE)",
	"last_year":  "o.order_date >= DATE_TRUNC('year', CURRENT_DATE) - INTERVAL '1 year' AND o.order_date < DATE_TRUNC('year', CURRENT_DATE)",
}

// QueryHints builds concrete table and join hints from the question,
// appended to the prompt after the context block. Returns "" when the
// question gives nothing to anchor on.
func (a *Assembler) QueryHints(question string) string {
	locations := a.resolver.ResolveLocations(question)
	products := a.resolver.ResolveProducts(question)
	timeRes := timeperiod.Resolve(question)

	isSales := salesIntent.MatchString(question)
	isLocation := locationIntent.MatchString(question)
	isRevenue := revenueIntent.MatchString(question)
	isWaste := wasteIntent.MatchString(question)
	isLabor := laborIntent.MatchString(question)

	var hints []string

	if isSales || isRevenue || isLocation || len(locations) > 0 || len(products) > 0 {
		hints = append(hints, "Sales data: munu.order_lines ol "+
			"JOIN munu.orders o ON ol.customer_id = o.customer_id AND ol.soid = o.soid")
	}

	// revenue_units carries the location names; orders.inid is always
	// empty so installations cannot be joined directly.
	if isLocation || len(locations) > 0 {
		hints = append(hints, "Location names: JOIN munu.revenue_units ru "+
			"ON o.customer_id = ru.customer_id AND o.revenue_unit_id = ru.revenue_unit_id — use ru.name for location")
	}

	// Only the first matched location becomes a filter.
	if len(locations) > 0 {
		hints = append(hints, fmt.Sprintf("Location filter: ru.name = '%s'", locations[0].DBName))
	}

	for _, p := range products {
		hints = append(hints, fmt.Sprintf("Product filter: ol.article_name ILIKE '%%%s%%'", p.Name))
	}

	if isRevenue {
		hints = append(hints, "Revenue: SUM(ol.net_amount) or o.total_amount")
	}
	if isSales && !isRevenue {
		hints = append(hints, "Quantity: SUM(ol.quantity)")
	}

	if filter, ok := aliasedDateHints[timeRes.Period]; ok {
		hints = append(hints, fmt.Sprintf("Date filter: %s", filter))
	}

	if categoryIntent.MatchString(question) {
		hints = append(hints, "Categories: JOIN munu.articles a ON ol.article_id = a.article_id "+
			"AND ol.customer_id = a.customer_id — use a.article_group_name")
	}

	if paymentIntent.MatchString(question) {
		hints = append(hints, "Payments: munu.order_payments op "+
			"JOIN munu.payment_types pt ON op.ptid = pt.ptid AND op.customer_id = pt.customer_id")
	}

	if isWaste {
		hints = append(hints, "Waste data: munu.article_waste — has article_name, quantity, total_cost, reason")
	}
	if isLabor {
		hints = append(hints, "Labor: munu.labor_shifts or planday.punchclock_shifts")
	}

	// Comparisons and periods the aliased table cannot express get the
	// full time-hint block with CTE guidance instead of a one-line filter.
	timeBlock := ""
	if _, aliased := aliasedDateHints[timeRes.Period]; timeRes.Comparison != "" || !aliased {
		timeBlock = timeperiod.FormatHints(timeRes)
	}

	domains := DetectDomains(question)
	trailing := timeperiod.FormatTrailingHints(domains.Has(DomainAnalytics) && !HasRawSignals(question))

	if len(hints) == 0 && timeBlock == "" && trailing == "" {
		return ""
	}

	var b strings.Builder
	if len(hints) > 0 {
		b.WriteString("\n\nQUERY HINTS (use these tables and joins):")
		for _, h := range hints {
			b.WriteString("\n- ")
			b.WriteString(h)
		}
	}
	if timeBlock != "" {
		b.WriteString("\n\n")
		b.WriteString(timeBlock)
	}
	if trailing != "" {
		b.WriteString("\n\n")
		b.WriteString(trailing)
	}
	return b.String()
}
