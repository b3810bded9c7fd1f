package timeperiod

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_BasePeriods(t *testing.T) {
	tests := []struct {
		name     string
		question string
		period   string
	}{
		{"today english", "revenue today", "today"},
		{"today norwegian", "omsetning i dag", "today"},
		{"so far today beats today", "sales so far today", "today_sofar"},
		{"yesterday", "how did we do yesterday", "yesterday"},
		{"yesterday norwegian compact", "salg igår", "yesterday"},
		{"this week", "orders this week", "this_week"},
		{"last week norwegian", "forrige uke", "last_week"},
		{"last month", "revenue last month", "last_month"},
		{"last quarter", "waste last quarter", "last_quarter"},
		{"ytd", "revenue year to date", "ytd"},
		{"ltm", "trailing 12 months revenue", "ltm"},
		{"last year norwegian", "omsetning i fjor", "last_year"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.question)
			assert.Equal(t, tt.period, res.Period)
			assert.Empty(t, res.Comparison)
			assert.NotEmpty(t, res.MatchedText)
		})
	}
}

func TestResolve_LastNDays(t *testing.T) {
	res := Resolve("show sales for the last 14 days")
	assert.Equal(t, "last_n_days", res.Period)
	assert.Equal(t, 14, res.NDays)

	res = Resolve("de siste 7 dagene")
	assert.Equal(t, "last_n_days", res.Period)
	assert.Equal(t, 7, res.NDays)
}

func TestResolve_SamePatterns(t *testing.T) {
	res := Resolve("same day last week")
	assert.Equal(t, "same_day_last_week", res.Comparison)
	// "last week" inside the phrase also satisfies the base period scan.
	assert.Equal(t, "last_week", res.Period)

	res = Resolve("samme uke for to år siden")
	assert.Equal(t, "same_week_two_years_ago", res.Comparison)
	assert.Equal(t, "today", res.Period)

	res = Resolve("samme tid forrige uke")
	assert.Equal(t, "same_time_last_week", res.Comparison)
	assert.Equal(t, "last_week", res.Period)

	// Explicit base period in the same text wins over the default.
	res = Resolve("sales yesterday versus same day last year")
	assert.Equal(t, "same_day_last_year", res.Comparison)
	assert.Equal(t, "yesterday", res.Period)
}

func TestResolve_ComparisonPrefix(t *testing.T) {
	res := Resolve("sales compared to yesterday")
	assert.Equal(t, "vs_yesterday", res.Comparison)
	assert.Equal(t, "today", res.Period)

	res = Resolve("omsetning sammenlignet med forrige måned")
	assert.Equal(t, "vs_last_month", res.Comparison)

	res = Resolve("this week vs last week")
	assert.Equal(t, "vs_last_week", res.Comparison)
	assert.Equal(t, "this_week", res.Period)
}

func TestResolve_NoMatch(t *testing.T) {
	res := Resolve("top selling products by category")
	assert.True(t, res.IsZero())
	assert.Empty(t, res.MatchedText)
}

func TestResolve_ComparisonPrefixWithoutComparableBase(t *testing.T) {
	// "compared to this week" has a comparison prefix but "this_week" has
	// no derived comparison label; falls through to the bare base period.
	res := Resolve("how does it compare this week")
	assert.Empty(t, res.Comparison)
	assert.Equal(t, "this_week", res.Period)
}

func TestWindow(t *testing.T) {
	w, ok := Window("vs_yesterday")
	assert.True(t, ok)
	assert.Equal(t, "WHERE order_date = CURRENT_DATE", w.Current)
	assert.Equal(t, "WHERE order_date = CURRENT_DATE - INTERVAL '1 day'", w.Previous)

	_, ok = Window("nope")
	assert.False(t, ok)
}

func TestFormatHints(t *testing.T) {
	assert.Empty(t, FormatHints(Resolution{}))

	hints := FormatHints(Resolve("sales compared to yesterday"))
	assert.Contains(t, hints, "Comparison detected: vs_yesterday")
	assert.Contains(t, hints, "current_period: WHERE order_date = CURRENT_DATE")
	assert.Contains(t, hints, "previous_period: WHERE order_date = CURRENT_DATE - INTERVAL '1 day'")

	hints = FormatHints(Resolve("revenue last 30 days"))
	assert.Contains(t, hints, "last 30 days")
	assert.Contains(t, hints, "INTERVAL '30 days'")

	hints = FormatHints(Resolve("revenue today"))
	assert.Contains(t, hints, "Period: today")
	assert.Contains(t, hints, "CURRENT_TIME::TIME")

	hints = FormatHints(Resolve("revenue last month"))
	assert.True(t, strings.Contains(hints, "DATE_TRUNC('month', CURRENT_DATE)"))
}

func TestFormatTrailingHints(t *testing.T) {
	assert.Empty(t, FormatTrailingHints(false))
	assert.Contains(t, FormatTrailingHints(true), "t7/t28/t90")
}
