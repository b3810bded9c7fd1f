// Package timeperiod detects time periods and period-over-period
// comparison intent in free-text questions, in English and Norwegian, and
// maps them to canonical labels with ready-to-use date predicates.
//
// Detection is layered, first match wins:
//  1. "Same X" patterns ("same day last week")
//  2. Comparison prefix + base period ("sammenlignet med i går")
//  3. Dynamic "last N days"
//  4. Base period alone ("yesterday", "i dag")
//
// Pure regex over static rule tables; no I/O. An unmatched question
// yields a zero Resolution, which is a valid "no temporal constraint"
// outcome, not an error.
package timeperiod

import (
	"regexp"
	"strconv"
	"strings"
)

// Resolution is the per-question result. All fields may be empty.
type Resolution struct {
	Period      string // canonical base period label, e.g. "today", "last_week"
	Comparison  string // comparison label, e.g. "same_day_last_week", "vs_yesterday"
	NDays       int    // for Period == "last_n_days"
	MatchedText string // the text span that triggered the match
}

// IsZero reports whether nothing temporal was detected.
func (r Resolution) IsZero() bool {
	return r.Period == "" && r.Comparison == ""
}

// rule pairs a canonical label with the pattern that detects it. Rule
// tables are evaluated top to bottom; order is part of the contract.
type rule struct {
	label   string
	pattern *regexp.Regexp
}

// Base periods, more specific phrasings first.
var basePeriods = []rule{
	{"today_sofar", regexp.MustCompile(`(?i)\b(so\s+far\s+today|hittil\s+i\s+dag|s[åa]\s+langt\s+i\s+dag)\b`)},
	{"today", regexp.MustCompile(`(?i)\b(today|i\s+dag)\b`)},
	{"yesterday", regexp.MustCompile(`(?i)\b(yesterday|ig[åa]r|i\s+g[åa]r)\b`)},
	{"ytd", regexp.MustCompile(`(?i)\b(year\s+to\s+date|YTD|hittil\s+i\s+[åa]r|s[åa]\s+langt\s+i\s+[åa]r)\b`)},
	{"ltm", regexp.MustCompile(`(?i)\b(last\s+twelve\s+months|LTM|trailing\s+12\s+months|siste\s+(?:tolv|12)\s+m[åa]neder)\b`)},
	{"this_week", regexp.MustCompile(`(?i)\b(this\s+week|denne\s+uk(?:a|en))\b`)},
	{"last_week", regexp.MustCompile(`(?i)\b(last\s+week|forrige\s+uke|siste\s+uke(?:n)?)\b`)},
	{"this_weekend", regexp.MustCompile(`(?i)\b(this\s+weekend|i\s+helgen)\b`)},
	{"this_month", regexp.MustCompile(`(?i)\b(this\s+month|denne\s+m[åa]neden)\b`)},
	{"last_month", regexp.MustCompile(`(?i)\b(last\s+month|forrige\s+m[åa]ned|siste\s+m[åa]ned(?:en)?)\b`)},
	{"last_quarter", regexp.MustCompile(`(?i)\b(last\s+quarter|forrige\s+kvartal|siste\s+kvartal)\b`)},
	{"this_year", regexp.MustCompile(`(?i)\b(this\s+year|i\s+[åa]r)\b`)},
	{"last_year", regexp.MustCompile(`(?i)\b(last\s+year|i\s+fjor|forrige\s+[åa]r)\b`)},
}

var lastNDays = regexp.MustCompile(`(?i)\b(?:last|past|siste|de\s+siste)\s+(\d+)\s+(?:days?|dager?|dagene)\b`)

var comparisonPrefix = regexp.MustCompile(`(?i)\b(sammenlignet\s+med|i\s+forhold\s+til|opp?\s+mot|versus|vs\.?|kontra|compared?\s+(?:to|with)|how\s+does\s+(?:that|this|it)\s+compare)\b`)

// "Same X" patterns are the most specific layer and run first.
var samePatterns = []rule{
	{"same_time_last_week", regexp.MustCompile(`(?i)\b(same\s+(?:day\s+and\s+)?time\s+last\s+week|samme\s+tid\s+forrige\s+uke)\b`)},
	{"same_day_last_week", regexp.MustCompile(`(?i)\b(same\s+(?:day|weekday)\s+last\s+week|samme\s+(?:dag|ukedag)\s+forrige\s+uke)\b`)},
	{"same_day_last_year", regexp.MustCompile(`(?i)\b(same\s+(?:day|date)\s+last\s+year|samme\s+(?:dag|dato)\s+i\s+fjor)\b`)},
	{"same_week_last_year", regexp.MustCompile(`(?i)\b(same\s+week\s+last\s+year|(?:samme|tilsvarende)\s+uke\s+i\s+fjor)\b`)},
	{"same_week_two_years_ago", regexp.MustCompile(`(?i)\b(same\s+week\s+two\s+years?\s+ago|samme\s+uke\s+for\s+to\s+[åa]r\s+siden)\b`)},
	{"same_month_last_year", regexp.MustCompile(`(?i)\b(same\s+month\s+last\s+year|(?:samme|tilsvarende)\s+m[åa]ned\s+i\s+fjor)\b`)},
}

// baseToComparison derives a compositional comparison label from a base
// period when a comparison prefix is present.
var baseToComparison = map[string]string{
	"yesterday":  "vs_yesterday",
	"last_week":  "vs_last_week",
	"last_month": "vs_last_month",
	"last_year":  "vs_last_year",
}

// Resolve detects time period and comparison intent in the question.
func Resolve(question string) Resolution {
	// Layer 1: "Same X" patterns.
	for _, r := range samePatterns {
		m := r.pattern.FindString(question)
		if m == "" {
			continue
		}
		res := Resolution{Comparison: r.label, MatchedText: m}
		// Opportunistically pick up an accompanying base period.
		for _, p := range basePeriods {
			if pm := p.pattern.FindString(question); pm != "" {
				res.Period = p.label
				break
			}
		}
		if res.Period == "" {
			if strings.Contains(r.label, "time") {
				res.Period = "today_sofar"
			} else {
				res.Period = "today"
			}
		}
		return res
	}

	// Layer 2: comparison prefix + base period.
	if comparisonPrefix.MatchString(question) {
		for _, p := range basePeriods {
			pm := p.pattern.FindString(question)
			if pm == "" {
				continue
			}
			comp, ok := baseToComparison[p.label]
			if !ok {
				continue
			}
			res := Resolution{Comparison: comp, MatchedText: pm}
			// The primary period is any other base period in the text,
			// defaulting to today.
			for _, p2 := range basePeriods {
				if p2.label == p.label {
					continue
				}
				if p2.pattern.MatchString(question) {
					res.Period = p2.label
					break
				}
			}
			if res.Period == "" {
				res.Period = "today"
			}
			return res
		}
	}

	// Layer 3: dynamic "last N days".
	if m := lastNDays.FindStringSubmatch(question); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return Resolution{Period: "last_n_days", NDays: n, MatchedText: m[0]}
		}
	}

	// Layer 4: base period alone.
	for _, p := range basePeriods {
		if pm := p.pattern.FindString(question); pm != "" {
			return Resolution{Period: p.label, MatchedText: pm}
		}
	}

	return Resolution{}
}
