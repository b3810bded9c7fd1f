package timeperiod

import (
	"fmt"
	"strings"
)

// dateFilters maps each base period label to a literal date predicate.
var dateFilters = map[string]string{
	"today":        "WHERE order_date = CURRENT_DATE",
	"today_sofar":  "WHERE order_date = CURRENT_DATE AND order_time <= CURRENT_TIME::TIME",
	"yesterday":    "WHERE order_date = CURRENT_DATE - INTERVAL '1 day'",
	"this_week":    "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE)",
	"last_week":    "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE) - INTERVAL '7 days' AND order_date < DATE_TRUNC('week', CURRENT_DATE)",
	"this_weekend": "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE) + INTERVAL '5 days' AND order_date <= DATE_TRUNC('week', CURRENT_DATE) + INTERVAL '6 days'",
	"this_month":   "WHERE order_date >= DATE_TRUNC('month', CURRENT_DATE)",
	"last_month":   "WHERE order_date >= DATE_TRUNC('month', CURRENT_DATE) - INTERVAL '1 month' AND order_date < DATE_TRUNC('month', CURRENT_DATE)",
	"last_quarter": "WHERE order_date >= DATE_TRUNC('quarter', CURRENT_DATE) - INTERVAL '3 months' AND order_date < DATE_TRUNC('quarter', CURRENT_DATE)",
	"this_year":    "WHERE order_date >= DATE_TRUNC('year', CURRENT_DATE)",
	"last_year":    "WHERE YEAR(order_date) = YEAR(CURRENT_DATE) - 1",
	"ytd":          "WHERE order_date >= DATE_TRUNC('year', CURRENT_DATE) AND order_date <= CURRENT_DATE",
	"ltm":          "WHERE order_date >= CURRENT_DATE - INTERVAL '12 months'",
}

// ComparisonWindow holds the predicate pair for a comparison label.
type ComparisonWindow struct {
	Current  string
	Previous string
	Note     string
}

var comparisonFilters = map[string]ComparisonWindow{
	"same_time_last_week": {
		Current:  "WHERE order_date = CURRENT_DATE AND order_time <= CURRENT_TIME::TIME",
		Previous: "WHERE order_date = CURRENT_DATE - INTERVAL '7 days' AND order_time <= CURRENT_TIME::TIME",
		Note:     "Both CTEs filter to same time-of-day. order_time is TIME, CURRENT_TIME is TIMETZ — cast with ::TIME.",
	},
	"same_day_last_week": {
		Current:  "WHERE order_date = CURRENT_DATE",
		Previous: "WHERE order_date = CURRENT_DATE - INTERVAL '7 days'",
		Note:     "Same weekday, one week apart.",
	},
	"same_day_last_year": {
		Current:  "WHERE order_date = CURRENT_DATE",
		Previous: "WHERE order_date = CURRENT_DATE - INTERVAL '1 year'",
		Note:     "Same calendar date last year.",
	},
	"same_week_last_year": {
		Current:  "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE) AND order_date < DATE_TRUNC('week', CURRENT_DATE) + INTERVAL '7 days'",
		Previous: "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE) - INTERVAL '1 year' AND order_date < DATE_TRUNC('week', CURRENT_DATE) - INTERVAL '1 year' + INTERVAL '7 days'",
		Note:     "Same ISO week, one year apart.",
	},
	"same_week_two_years_ago": {
		Current:  "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE) AND order_date < DATE_TRUNC('week', CURRENT_DATE) + INTERVAL '7 days'",
		Previous: "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE) - INTERVAL '2 years' AND order_date < DATE_TRUNC('week', CURRENT_DATE) - INTERVAL '2 years' + INTERVAL '7 days'",
		Note:     "Same ISO week, two years apart.",
	},
	"same_month_last_year": {
		Current:  "WHERE order_date >= DATE_TRUNC('month', CURRENT_DATE) AND order_date < DATE_TRUNC('month', CURRENT_DATE) + INTERVAL '1 month'",
		Previous: "WHERE order_date >= DATE_TRUNC('month', CURRENT_DATE) - INTERVAL '1 year' AND order_date < DATE_TRUNC('month', CURRENT_DATE) - INTERVAL '1 year' + INTERVAL '1 month'",
		Note:     "Same calendar month, one year apart.",
	},
	"vs_yesterday": {
		Current:  "WHERE order_date = CURRENT_DATE",
		Previous: "WHERE order_date = CURRENT_DATE - INTERVAL '1 day'",
		Note:     "Today vs yesterday.",
	},
	"vs_last_week": {
		Current:  "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE)",
		Previous: "WHERE order_date >= DATE_TRUNC('week', CURRENT_DATE) - INTERVAL '7 days' AND order_date < DATE_TRUNC('week', CURRENT_DATE)",
		Note:     "This week vs last week.",
	},
	"vs_last_month": {
		Current:  "WHERE order_date >= DATE_TRUNC('month', CURRENT_DATE)",
		Previous: "WHERE order_date >= DATE_TRUNC('month', CURRENT_DATE) - INTERVAL '1 month' AND order_date < DATE_TRUNC('month', CURRENT_DATE)",
		Note:     "This month vs last month.",
	},
	"vs_last_year": {
		Current:  "WHERE order_date >= DATE_TRUNC('year', CURRENT_DATE)",
		Previous: "WHERE YEAR(order_date) = YEAR(CURRENT_DATE) - 1",
		Note:     "This year vs last year.",
	},
}

// Window returns the predicate pair for a comparison label.
func Window(comparison string) (ComparisonWindow, bool) {
	w, ok := comparisonFilters[comparison]
	return w, ok
}

// DateFilter returns the literal predicate for a base period label.
func DateFilter(period string) (string, bool) {
	f, ok := dateFilters[period]
	return f, ok
}

// FormatHints renders a resolution into an LLM-injectable hint block.
// Returns "" when nothing was detected.
func FormatHints(res Resolution) string {
	if res.IsZero() {
		return ""
	}

	var b strings.Builder
	b.WriteString("TIME HINTS:")

	if res.Comparison != "" {
		if w, ok := comparisonFilters[res.Comparison]; ok {
			fmt.Fprintf(&b, "\nComparison detected: %s", res.Comparison)
			fmt.Fprintf(&b, "\n  Note: %s", w.Note)
			b.WriteString("\n  Use two CTEs to compare periods:")
			fmt.Fprintf(&b, "\n    current_period: %s", w.Current)
			fmt.Fprintf(&b, "\n    previous_period: %s", w.Previous)
			b.WriteString("\n  Then JOIN or UNION the CTEs to show both side by side.")
			if strings.Contains(res.Comparison, "time") {
				b.WriteString("\n  ! order_time is TIME, CURRENT_TIME is TIMETZ. Cast: CURRENT_TIME::TIME")
			}
			return b.String()
		}
	}

	if res.Period == "last_n_days" && res.NDays > 0 {
		fmt.Fprintf(&b, "\nPeriod: last %d days", res.NDays)
		fmt.Fprintf(&b, "\n  Filter: WHERE order_date >= CURRENT_DATE - INTERVAL '%d days'", res.NDays)
	} else if f, ok := dateFilters[res.Period]; ok {
		fmt.Fprintf(&b, "\nPeriod: %s", res.Period)
		fmt.Fprintf(&b, "\n  Filter: %s", f)
	}

	if res.Period == "today" || res.Period == "today_sofar" {
		b.WriteString("\n  ! order_time is TIME, CURRENT_TIME is TIMETZ. Cast: CURRENT_TIME::TIME")
	}

	return b.String()
}

// FormatTrailingHints notes the trailing-metric columns available when the
// analytics domain is active, so trend questions avoid scanning raw orders.
func FormatTrailingHints(analyticsActive bool) string {
	if !analyticsActive {
		return ""
	}
	return "TRAILING METRICS (analytics tables):\n" +
		"  t7/t28/t90 columns = rolling 7/28/90-day averages (no date filter needed)\n" +
		"  wow_pct/mom_pct = week-over-week / month-over-month deltas\n" +
		"  fleet_avg columns = chain-wide average for benchmarking\n" +
		"  Use trailing tables for trend/benchmark questions — avoids scanning raw orders."
}
