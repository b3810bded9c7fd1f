package promptctx

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/apperrors"
	"github.com/munuiq/insights-engine/pkg/entity"
)

// Mention entity types supplied by the caller's mention UI.
const (
	MentionLocation = "location"
	MentionProduct  = "product"
)

// Mention is a pre-resolved entity reference. Mentions bypass fuzzy
// resolution for their entity type and are trusted as-is.
type Mention struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DictionaryProvider supplies the live data dictionary built from
// warehouse introspection. A nil provider omits the block.
type DictionaryProvider interface {
	DataDictionary() string
}

// Assembler builds the per-question prompt context. Construction fails
// on malformed artifacts, so a non-nil Assembler is always ready.
type Assembler struct {
	catalog  *Catalog
	resolver *entity.Resolver
	dict     DictionaryProvider
	triggers []patternTrigger
	logger   *zap.Logger
}

type patternTrigger struct {
	key     string
	pattern *regexp.Regexp
}

// Trigger regexes map question phrasing to few-shot pattern keys.
// Declaration order is the match priority.
var patternTriggers = []patternTrigger{
	{"revenue_per_labor_hour_monthly", regexp.MustCompile(`(?i)\b(revenue\s+per\s+(labor|labour)\s+hour|per\s+time|per\s+hour.*(store|location|butik)|efficiency.*(store|location)|labor.*revenue|labour.*revenue|sales\s+per\s+(labor|labour))\b`)},
	{"category_trends_by_store", regexp.MustCompile(`(?i)\b((?:weekly|monthly|daily)\s+(?:sales|revenue|trend).*(?:store|location|butik)|(?:store|location|butik).*(?:weekly|monthly|daily)|category\s+(?:trend|performance).*(?:store|location))\b`)},
	{"store_vs_store", regexp.MustCompile(`(?i)\b(compare\s+(?:\w+\s+){0,3}(?:and|vs|versus|mot)|side\s+by\s+side|(?:madla|kvadrat|forus|majorstuen)\s+(?:vs|versus|mot|and)\s+(?:madla|kvadrat|forus|majorstuen))\b`)},
	{"yoy_category_by_store", regexp.MustCompile(`(?i)\b(year[\s-]+over[\s-]+year|yoy|vs\s+last\s+year|compared\s+to\s+(?:same\s+period\s+)?last\s+year|growth\s*%|i\s+fjor|mot\s+forrige\s+[åa]r)\b`)},
	{"basket_analysis_product", regexp.MustCompile(`(?i)\b(basket|orders?\s+(?:contain|with|includ)|order\s+size\s+when|average\s+order.*(?:contain|includ)|how\s+many\s+orders)\b`)},
	{"products_sold_together", regexp.MustCompile(`(?i)\b(sold\s+together|bought\s+(?:together|with)|co[\s-]*occurrence|pair(?:ed|ing)?\s+with|what\s+(?:goes|products?).*(?:together|with))\b`)},
	{"waste_trends_by_location", regexp.MustCompile(`(?i)\b(waste|svinn|shrinkage).*\b(store|location|butik|weekly|monthly|trend)\b`)},
	{"peak_hours_by_store", regexp.MustCompile(`(?i)\b(busiest\s+hour|peak\s+(?:hour|time)|hourly\s+(?:pattern|sales|revenue)|by\s+hour|weekday\s+vs\s+weekend|per\s+time\s+p[åa]\s+dagen)\b`)},
	{"seasonal_product_performance", regexp.MustCompile(`(?i)\b(seasonal|sesong|jul|christmas|p[åa]ske|easter|fastelavn|halloween|valentines?).*\b(product|perform|revenue|sale|compare)\b`)},
	{"cumulative_revenue_by_store", regexp.MustCompile(`(?i)\b(cumulative|running\s+total|ytd|year\s+to\s+date|accumulated|akkumulert)\b`)},
	{"analytics_location_trend", regexp.MustCompile(`(?i)\b(how(?:'s|s)?\s+\w+\s+(?:doing|performing|trending)|location\s+trend|store\s+performance|butikk.{0,10}(?:g[åa]r|trend))\b`)},
	{"analytics_mix_vs_fleet", regexp.MustCompile(`(?i)\b(mix\s+(?:vs|versus|compared|mot)\s+fleet|product\s+mix.{0,15}fleet|group\s+mix|category\s+share\s+vs)\b`)},
	{"analytics_fleet_ranking", regexp.MustCompile(`(?i)\b(best.{0,5}(?:store|worst|performing)|worst.{0,5}(?:store|performing)|rank(?:ing)?\s+(?:store|location)|top.{0,5}(?:store|location)|bottom.{0,5}(?:store|location))\b`)},
	{"analytics_labor_efficiency", regexp.MustCompile(`(?i)\b(labor\s+efficiency|labour\s+efficiency|most\s+efficient\s+store|labor\s+cost\s+(?:by|per)\s+(?:store|location)|overtime\s+(?:by|per)\s+(?:store|location))\b`)},
	{"analytics_staffing", regexp.MustCompile(`(?i)\b(overstaffed|understaffed|staffing\s+(?:level|recommend|benchmark)|right\s+staff|too\s+many\s+staff|not\s+enough\s+staff)\b`)},
	{"analytics_sick_leave", regexp.MustCompile(`(?i)\b(sick\s+leave|sykefrav[æe]r|egenmelding|sykemelding|absence\s+rate|frav[æe]rs?\s*(?:prosent|rate|%))\b`)},
}

// NewAssembler loads the catalog from dir and wires the entity resolver
// and data dictionary provider. dict may be nil.
func NewAssembler(dir string, resolver *entity.Resolver, dict DictionaryProvider, logger *zap.Logger) (*Assembler, error) {
	catalog, err := LoadCatalog(dir)
	if err != nil {
		return nil, fmt.Errorf("loading prompt catalog: %w", err)
	}

	// Only keep triggers whose pattern actually exists in the catalog.
	triggers := make([]patternTrigger, 0, len(patternTriggers))
	for _, t := range patternTriggers {
		if _, ok := catalog.Patterns[t.key]; ok {
			triggers = append(triggers, t)
		}
	}

	logger = logger.Named("promptctx")
	logger.Info("prompt catalog loaded",
		zap.Int("tables", len(catalog.Tables)),
		zap.Int("patterns", len(catalog.Patterns)),
		zap.Int("recipes", len(catalog.Recipes)))

	return &Assembler{
		catalog:  catalog,
		resolver: resolver,
		dict:     dict,
		triggers: triggers,
		logger:   logger,
	}, nil
}

// Catalog exposes the loaded artifacts to callers that need them, such
// as startup cache warming.
func (a *Assembler) Catalog() *Catalog { return a.catalog }

// AssembleContext builds the prompt context block for the question.
//
// Block order is part of the contract: schema, location hints, product
// hints, rules, join recipes, syntax reference, taxonomy, few-shot
// patterns, data dictionary. Non-empty blocks are joined with blank
// lines. forceRaw skips analytics routing regardless of detection, used
// by the SQL repair fallback.
func (a *Assembler) AssembleContext(question string, forceRaw bool, mentions []Mention) (string, error) {
	if a == nil || a.catalog == nil {
		return "", fmt.Errorf("assembler: %w", apperrors.ErrNotLoaded)
	}

	domains := DetectDomains(question)

	locationMatches, productMatches := a.resolveEntities(question, mentions, domains)
	locationHints := a.resolver.FormatLocationHints(locationMatches)
	productHints := a.resolver.FormatProductHints(productMatches)

	useAnalytics := domains.Has(DomainAnalytics) && !forceRaw && !HasRawSignals(question)

	tables := a.selectTables(domains, useAnalytics)

	a.logger.Debug("context assembled",
		zap.Strings("domains", domains.Sorted()),
		zap.Bool("analytics", useAnalytics),
		zap.Int("tables", len(tables)),
		zap.Int("locations", len(locationMatches)),
		zap.Int("products", len(productMatches)))

	parts := []string{renderSchemaBlock(tables)}
	if locationHints != "" {
		parts = append(parts, locationHints)
	}
	if productHints != "" {
		parts = append(parts, productHints)
	}
	parts = append(parts, a.renderRules())
	if recipes := a.selectRecipes(domains); recipes != "" {
		parts = append(parts, recipes)
	}
	parts = append(parts, a.catalog.Syntax)
	if a.catalog.Taxonomy != "" {
		parts = append(parts, a.catalog.Taxonomy)
	}
	if patterns := a.matchPatterns(question); patterns != "" {
		parts = append(parts, patterns)
	}
	if a.dict != nil {
		if dict := a.dict.DataDictionary(); dict != "" {
			parts = append(parts, dict)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// resolveEntities resolves locations and products, letting explicit
// mentions bypass fuzzy resolution per entity type. Mentions also force
// the corresponding domain so table selection reflects user intent.
func (a *Assembler) resolveEntities(question string, mentions []Mention, domains DomainSet) ([]entity.LocationMatch, []entity.ProductMatch) {
	var locationIDs, productIDs []string
	for _, m := range mentions {
		switch m.Type {
		case MentionLocation:
			locationIDs = append(locationIDs, m.ID)
		case MentionProduct:
			productIDs = append(productIDs, m.ID)
		}
	}

	var locations []entity.LocationMatch
	if len(locationIDs) > 0 {
		domains.Add(DomainLocations)
		for _, id := range locationIDs {
			loc, ok := a.resolver.Location(id)
			if !ok {
				a.logger.Warn("mention references unknown location", zap.String("ruid", id))
				continue
			}
			locations = append(locations, entity.LocationMatch{
				Location:     loc,
				AliasMatched: loc.DisplayName,
			})
		}
	} else {
		locations = a.resolver.ResolveLocations(question)
	}

	var products []entity.ProductMatch
	if len(productIDs) > 0 {
		domains.Add(DomainProducts)
		for _, id := range productIDs {
			prod, ok := a.resolver.Product(id)
			if !ok {
				a.logger.Warn("mention references unknown product", zap.String("id", id))
				continue
			}
			products = append(products, entity.ProductMatch{
				Product:      prod,
				AliasMatched: prod.Name,
			})
		}
	} else {
		products = a.resolver.ResolveProducts(question)
	}

	return locations, products
}

// selectTables filters tables to the active domains, drops tables
// hidden from the LLM or currently empty, and suppresses raw tables
// superseded by analytics aggregates when analytics routing is on.
func (a *Assembler) selectTables(domains DomainSet, useAnalytics bool) []Table {
	var selected []Table
	for _, t := range a.catalog.Tables {
		if t.ExcludeFromLLM || t.RowCount == 0 {
			continue
		}
		if !domains.Has(t.Domain) {
			continue
		}
		if useAnalytics && analyticsSuppresses[t.Name] {
			continue
		}
		selected = append(selected, t)
	}
	return selected
}

var typeAbbreviations = []struct{ long, short string }{
	{"INTEGER", "INT"},
	{"BIGINT", "INT"},
	{"VARCHAR", "STR"},
	{"BOOLEAN", "BOOL"},
	{"TIMESTAMPTZ", "TSTZ"},
	{"TIMESTAMP", "TS"},
}

func shortType(t string) string {
	upper := strings.ToUpper(t)
	for _, ab := range typeAbbreviations {
		if strings.HasPrefix(upper, ab.long) {
			return ab.short
		}
	}
	if strings.HasPrefix(upper, "DECIMAL") {
		return "DEC"
	}
	return t
}

func renderSchemaBlock(tables []Table) string {
	var b strings.Builder
	b.WriteString("SCHEMA (filtered to relevant tables):")

	for _, t := range tables {
		desc := t.Description
		if i := strings.Index(desc, "\n"); i >= 0 {
			desc = desc[:i]
		}
		desc = strings.TrimSpace(desc)
		fmt.Fprintf(&b, "\n\n%s — %s", t.Name, desc)
		if t.RowCount > 0 {
			fmt.Fprintf(&b, " ~%s rows.", groupThousands(t.RowCount))
		}

		if len(t.Columns) > 0 {
			cols := make([]string, 0, len(t.Columns))
			for _, c := range t.Columns {
				if strings.HasPrefix(c.Name, "_") {
					continue
				}
				cols = append(cols, fmt.Sprintf("%s:%s", c.Name, shortType(c.Type)))
			}
			fmt.Fprintf(&b, "\n  (%s)", strings.Join(cols, ", "))
		}

		for _, j := range t.Joins {
			sql := strings.TrimSpace(j.SQL)
			if strings.Contains(sql, "\n") {
				sql = strings.ReplaceAll(sql, "\n", "\n    ")
			}
			fmt.Fprintf(&b, "\n  JOIN %s: %s", j.Name, sql)
		}

		for _, g := range t.Gotchas {
			fmt.Fprintf(&b, "\n  ! %s", g)
		}
	}
	return b.String()
}

// groupThousands formats n with comma separators.
func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteString(",")
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func (a *Assembler) renderRules() string {
	lines := []string{"RULES:"}
	for _, r := range a.catalog.Rules {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Key, strings.TrimSpace(r.Text)))
	}
	return strings.Join(lines, "\n")
}

// selectRecipes returns recipes whose required domain set is fully
// contained in the active domains.
func (a *Assembler) selectRecipes(domains DomainSet) string {
	var parts []string
	for _, r := range a.catalog.Recipes {
		qualified := true
		for _, d := range r.Domains {
			if !domains.Has(d) {
				qualified = false
				break
			}
		}
		if !qualified {
			continue
		}
		desc := r.Description
		if desc == "" {
			desc = r.Key
		}
		parts = append(parts, fmt.Sprintf("\nJOIN RECIPE — %s:\n%s", desc, strings.TrimSpace(r.SQL)))
	}
	return strings.Join(parts, "\n")
}

// matchPatterns returns up to two few-shot examples whose trigger
// matches the question, in declared trigger order.
func (a *Assembler) matchPatterns(question string) string {
	var matched []string
	for _, t := range a.triggers {
		if t.pattern.MatchString(question) {
			matched = append(matched, t.key)
		}
		if len(matched) >= 2 {
			break
		}
	}
	if len(matched) == 0 {
		return ""
	}

	var lines []string
	for _, key := range matched {
		p := a.catalog.Patterns[key]
		lines = append(lines, "\nFEW-SHOT EXAMPLE:")
		lines = append(lines, fmt.Sprintf("Example: %q", p.Question))
		if notes := strings.TrimSpace(p.Notes); notes != "" {
			lines = append(lines, fmt.Sprintf("Notes: %s", notes))
		}
		lines = append(lines, fmt.Sprintf("SQL:\n%s", strings.TrimSpace(p.SQL)))
	}
	return strings.Join(lines, "\n")
}
