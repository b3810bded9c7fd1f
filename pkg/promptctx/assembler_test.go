package promptctx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/entity"
)

type staticDict string

func (d staticDict) DataDictionary() string { return string(d) }

func newTestAssembler(t *testing.T, dict DictionaryProvider) *Assembler {
	t.Helper()
	resolver, err := entity.NewResolver("../entity/testdata/lookups.yaml", zap.NewNop())
	require.NoError(t, err)
	a, err := NewAssembler("testdata", resolver, dict, zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("testdata")
	require.NoError(t, err)

	assert.Len(t, c.Tables, 7)
	assert.Equal(t, "munu.orders", c.Tables[0].Name)
	assert.Len(t, c.Rules, 2)
	assert.Equal(t, "tenant_scope", c.Rules[0].Key)
	assert.Len(t, c.Recipes, 2)
	assert.Len(t, c.Patterns, 3)
	assert.Contains(t, c.Syntax, "DUCKDB SYNTAX:")
	assert.Contains(t, c.Syntax, "! CURRENT_TIME is TIMETZ")
	assert.Contains(t, c.Syntax, "date_trunc: DATE_TRUNC('week', col) starts Monday")
	assert.Contains(t, c.Taxonomy, "PRODUCT TAXONOMY")
}

func TestLoadCatalog_MissingDir(t *testing.T) {
	_, err := LoadCatalog("testdata/nope")
	assert.Error(t, err)
}

func TestAssembleContext_BlockOrder(t *testing.T) {
	a := newTestAssembler(t, staticDict("DATA DICTIONARY:\n48 locations known"))

	out, err := a.AssembleContext("compare Verksgata and Kvadrat revenue this month", false, nil)
	require.NoError(t, err)

	markers := []string{
		"SCHEMA (filtered to relevant tables):",
		"RESOLVED LOCATIONS (use these exact filters):",
		"RULES:",
		"JOIN RECIPE — Revenue per location:",
		"DUCKDB SYNTAX:",
		"PRODUCT TAXONOMY",
		"FEW-SHOT EXAMPLE:",
		"DATA DICTIONARY:",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(out, m)
		require.GreaterOrEqual(t, idx, 0, "missing block %q", m)
		assert.Greater(t, idx, last, "block %q out of order", m)
		last = idx
	}

	// Both mentioned locations resolved.
	assert.Contains(t, out, "ru.name = 'KS Verksgata'")
	assert.Contains(t, out, "ru.name = 'KS Kvadrat'")
}

func TestAssembleContext_TableSelection(t *testing.T) {
	a := newTestAssembler(t, nil)

	out, err := a.AssembleContext("revenue by day of week last month", false, nil)
	require.NoError(t, err)

	assert.Contains(t, out, "munu.orders")
	assert.Contains(t, out, "munu.order_lines")
	// Wrong domain, LLM-hidden, and empty tables stay out.
	assert.NotContains(t, out, "munuiq.daily_location_sales")
	assert.NotContains(t, out, "munu.archived_orders")
	assert.NotContains(t, out, "munu.terminal_events")
	// Type names are shortened in the schema block.
	assert.Contains(t, out, "soid:INT")
	assert.Contains(t, out, "article_name:STR")
	assert.Contains(t, out, "net_amount:DEC")
	// Internal columns are hidden.
	assert.NotContains(t, out, "_ingested_at")
	assert.Contains(t, out, "~1,250,000 rows")
}

func TestAssembleContext_AnalyticsSuppression(t *testing.T) {
	a := newTestAssembler(t, nil)

	// Analytics plus sales wording routes to the aggregate and hides
	// the raw tables it supersedes.
	out, err := a.AssembleContext("revenue trend by week", false, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "munuiq.daily_location_sales")
	assert.NotContains(t, out, "munu.orders —")
	assert.NotContains(t, out, "munu.order_lines —")

	// forceRaw keeps the raw tables visible.
	out, err = a.AssembleContext("revenue trend by week", true, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "munu.orders —")

	// A raw signal vetoes analytics routing the same way.
	out, err = a.AssembleContext("revenue trend by week and payment type", false, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "munu.orders —")
}

func TestAssembleContext_Mentions(t *testing.T) {
	a := newTestAssembler(t, nil)

	mentions := []Mention{
		{Type: MentionLocation, ID: "371", Label: "Kvadrat"},
		{Type: MentionProduct, ID: "croissant", Label: "Croissant"},
	}
	out, err := a.AssembleContext("how much did we make", false, mentions)
	require.NoError(t, err)

	assert.Contains(t, out, "ru.name = 'KS Kvadrat'")
	assert.Contains(t, out, "ILIKE '%Croissant%'")
	// Mentions must not fuzzy-match unrelated entities.
	assert.NotContains(t, out, "Verksgata")

	// Unknown mention IDs degrade to omission, not failure.
	out, err = a.AssembleContext("how much did we make", false, []Mention{{Type: MentionLocation, ID: "999"}})
	require.NoError(t, err)
	assert.NotContains(t, out, "RESOLVED LOCATIONS")
}

func TestAssembleContext_Deterministic(t *testing.T) {
	a := newTestAssembler(t, nil)

	first, err := a.AssembleContext("waste cost by store last week", false, nil)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		out, err := a.AssembleContext("waste cost by store last week", false, nil)
		require.NoError(t, err)
		assert.Equal(t, first, out)
	}
}

func TestAssembleContext_PatternLimit(t *testing.T) {
	a := newTestAssembler(t, nil)

	// Trips store_vs_store, peak_hours_by_store, and waste triggers;
	// only the first two declared make the prompt.
	out, err := a.AssembleContext("compare waste and revenue by hour side by side weekly", false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "FEW-SHOT EXAMPLE:"))
}

func TestAssembleContext_NilAssembler(t *testing.T) {
	var a *Assembler
	_, err := a.AssembleContext("revenue today", false, nil)
	assert.Error(t, err)
}

func TestQueryHints(t *testing.T) {
	a := newTestAssembler(t, nil)

	hints := a.QueryHints("hvor mye omsetning hadde Verksgata forrige måned")
	assert.Contains(t, hints, "QUERY HINTS")
	assert.Contains(t, hints, "Sales data: munu.order_lines ol")
	assert.Contains(t, hints, "Location names: JOIN munu.revenue_units ru")
	assert.Contains(t, hints, "Location filter: ru.name = 'KS Verksgata'")
	assert.Contains(t, hints, "Revenue: SUM(ol.net_amount)")
	assert.Contains(t, hints, "Date filter: o.order_date >= DATE_TRUNC('month', CURRENT_DATE) - INTERVAL '1 month'")

	hints = a.QueryHints("how many kanelsnurr did we sell today")
	assert.Contains(t, hints, "Quantity: SUM(ol.quantity)")
	assert.Contains(t, hints, "Date filter: o.order_date = CURRENT_DATE")
	assert.Contains(t, hints, "Product filter: ol.article_name ILIKE '%")

	assert.Empty(t, a.QueryHints("hva skjer"))
}

func TestQueryHints_TimeBlocks(t *testing.T) {
	a := newTestAssembler(t, nil)

	hints := a.QueryHints("sales yesterday versus same day last year")
	assert.Contains(t, hints, "TIME HINTS:")
	assert.Contains(t, hints, "Comparison detected: same_day_last_year")
	assert.Contains(t, hints, "current_period: WHERE order_date = CURRENT_DATE")
	assert.Contains(t, hints, "previous_period: WHERE order_date = CURRENT_DATE - INTERVAL '1 year'")

	hints = a.QueryHints("revenue last twelve months")
	assert.Contains(t, hints, "Period: ltm")
	assert.Contains(t, hints, "CURRENT_DATE - INTERVAL '12 months'")

	// Aliased base periods keep the one-line date filter only.
	hints = a.QueryHints("revenue yesterday")
	assert.Contains(t, hints, "Date filter: o.order_date = CURRENT_DATE - INTERVAL '1 day'")
	assert.NotContains(t, hints, "TIME HINTS:")

	hints = a.QueryHints("revenue trend by week")
	assert.Contains(t, hints, "TRAILING METRICS")
	assert.Contains(t, hints, "t7/t28/t90")
}
