package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortType(t *testing.T) {
	tests := []struct {
		dtype string
		want  string
	}{
		{"BIGINT", "INT"},
		{"integer", "INT"},
		{"DECIMAL(12,2)", "DEC"},
		{"numeric(10,4)", "DEC"},
		{"VARCHAR", "STR"},
		{"character varying", "STR"},
		{"TIMESTAMP WITH TIME ZONE", "TSTZ"},
		{"timestamp without time zone", "TS"},
		{"BOOLEAN", "BOOL"},
		{"DATE", "DATE"},
		{"uuid", "uuid"},
		{"double precision", "FLOAT"},
		{"some_exotic_type", "some_exo"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shortType(tt.dtype), "shortType(%q)", tt.dtype)
	}
}

func TestBuildDictionary(t *testing.T) {
	rows := []columnRow{
		{"munu", "orders", "soid", "BIGINT"},
		{"munu", "orders", "order_date", "DATE"},
		{"munu", "orders", "net_amount", "NUMERIC(12,2)"},
		{"munu", "order_lines", "article_name", "character varying"},
		{"public", "settings", "key", "text"},
	}

	dict, count := buildDictionary(rows)

	assert.Equal(t, 3, count)
	assert.Equal(t,
		"SCHEMA:\n"+
			"munu.orders(soid:INT, order_date:DATE, net_amount:DEC)\n"+
			"munu.order_lines(article_name:STR)\n"+
			"settings(key:STR)",
		dict)
}

func TestBuildDictionary_Empty(t *testing.T) {
	dict, count := buildDictionary(nil)
	assert.Equal(t, "SCHEMA:", dict)
	assert.Equal(t, 0, count)
}
