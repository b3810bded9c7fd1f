// Package promptctx assembles the per-question context block injected
// into the LLM prompt. It combines domain detection, entity and time
// hints, curated schema metadata, join recipes, few-shot patterns, and
// a live data dictionary into a single deterministic text block.
package promptctx

import (
	"regexp"
	"sort"
)

// Business domains a question can touch.
const (
	DomainAnalytics  = "analytics"
	DomainSales      = "sales"
	DomainProducts   = "products"
	DomainLocations  = "locations"
	DomainLabor      = "labor"
	DomainWaste      = "waste"
	DomainExternal   = "external"
	DomainCakeItEasy = "cakeiteasy"
)

// DomainSet is the set of domains detected for a question.
type DomainSet map[string]bool

// Has reports whether the domain is in the set.
func (s DomainSet) Has(domain string) bool { return s[domain] }

// Add inserts the domain into the set.
func (s DomainSet) Add(domain string) { s[domain] = true }

// Sorted returns the member domains in lexical order, for logging.
func (s DomainSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

type domainRule struct {
	domain  string
	pattern *regexp.Regexp
}

// Analytics is evaluated first so aggregated tables win the routing
// decision before the raw-table domains get a say.
var domainRules = []domainRule{
	{DomainAnalytics, regexp.MustCompile(`(?i)\b(trend(?:ing|s)?|trailing|rolling|benchmark|fleet\s+avg|` +
		`how(?:'s|s)?\s+\w+\s+(?:doing|performing|trending)|` +
		`mix.{0,10}(?:vs|versus|fleet)|overall|summary|overview|kpi|` +
		`daypart|week[\s-]*over[\s-]*week|growth\s+rate|best.{0,5}(?:store|worst)|worst.{0,5}store|` +
		`labor\s+cost|efficiency|staffing|overstaffed|understaffed|` +
		`sick\s+leave|sykefrav[æe]r|egenmelding|absence\s+rate)\b`)},
	{DomainSales, regexp.MustCompile(`(?i)\b(revenue|omsetning|inntekt|turnover|sale[s]?|salg|sol[gd]t|sell|sold|order[s]?|bestill|net_amount|order_total|average\s+ticket|avg\s+ticket|payment|betaling|vipps|kort|cash|kontant)\b`)},
	{DomainProducts, regexp.MustCompile(`(?i)\b(product|produkt|article|artikkel|categor(?:y|ies)|kategori(?:er)?|bolle[r]?|sandwich|brod|kake[r]?|drikke|kaffe|latte|croissant|menu|meny|item[s]?|bundle)\b`)},
	{DomainLocations, regexp.MustCompile(`(?i)\b(location|lokasjoner?|butik[k]?|outlet|store[s]?|sted|avdeling|by\s+store|by\s+location|per\s+sted|revenue.?unit|madla|kvadrat|majorstuen|skoyen|forus)\b`)},
	{DomainLabor, regexp.MustCompile(`(?i)\b(labor|labour|shift|skift|vakt|arbeid|timer|hours?\s+worked|punchclock|punch.?clock|employee|ansatt|staffing|staff|efficiency|per\s+hour|per\s+time|overtid|overtime)\b`)},
	{DomainWaste, regexp.MustCompile(`(?i)\b(waste|svinn|kast(?:et)?|thrown\s+away|shrinkage|discarded)\b`)},
	{DomainExternal, regexp.MustCompile(`(?i)\b(weather|v[æe]r|temperature|temperatur|rain|regn|precipitation|cruise|school\s+holiday|ferie|skolefri)\b`)},
	{DomainCakeItEasy, regexp.MustCompile(`(?i)\b(cakeiteasy|cake\s*it\s*easy|web\s+order|nettbestilling|cake\s+order)\b`)},
}

// Raw-signal detection. A hit vetoes analytics routing because the
// question needs transaction-level rows the aggregates no longer carry.
var rawSignals = regexp.MustCompile(`(?i)\b(specific\s+order|receipt|transaction\s+at\s+\d|individual\s+(?:order|item)|` +
	`who\s+(?:sold|served)|order\s+number|basket.{0,10}bought\s+together|` +
	`payment\s+type|vipps|kort|kontant|` +
	`specific\s+employee|individual\s+shift)\b`)

// Raw tables superseded by aggregated analytics tables, hidden from the
// schema block when analytics routing is active.
var analyticsSuppresses = map[string]bool{
	"munu.orders":               true,
	"munu.order_lines":          true,
	"planday.punchclock_shifts": true,
}

// DetectDomains classifies the question into business domains.
//
// Labor and waste reporting both need the location bridge tables, so
// those domains pull in locations. An unclassified question defaults to
// sales plus locations rather than an empty scope.
func DetectDomains(question string) DomainSet {
	domains := make(DomainSet)
	for _, r := range domainRules {
		if r.pattern.MatchString(question) {
			domains.Add(r.domain)
		}
	}

	if domains.Has(DomainLabor) {
		domains.Add(DomainLocations)
	}
	if domains.Has(DomainWaste) {
		domains.Add(DomainLocations)
	}

	if len(domains) == 0 {
		domains.Add(DomainSales)
		domains.Add(DomainLocations)
	}
	return domains
}

// HasRawSignals reports whether the question asks for row-level detail.
func HasRawSignals(question string) bool {
	return rawSignals.MatchString(question)
}
