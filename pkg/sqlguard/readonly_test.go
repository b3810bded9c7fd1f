package sqlguard

import (
	"errors"
	"strings"
	"testing"

	"github.com/munuiq/insights-engine/pkg/apperrors"
)

func TestValidateReadOnly_Accepts(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "plain select",
			sql:  "SELECT 1",
			want: "SELECT 1",
		},
		{
			name: "trailing semicolon stripped",
			sql:  "SELECT * FROM munu.orders;  ",
			want: "SELECT * FROM munu.orders",
		},
		{
			name: "leading whitespace",
			sql:  "\n  select name from munu.revenue_units",
			want: "select name from munu.revenue_units",
		},
		{
			name: "cte",
			sql:  "WITH t AS (SELECT 1) SELECT * FROM t",
			want: "WITH t AS (SELECT 1) SELECT * FROM t",
		},
		{
			name: "semicolon inside string literal",
			sql:  "SELECT * FROM munu.order_lines WHERE article_name = 'a;b'",
			want: "SELECT * FROM munu.order_lines WHERE article_name = 'a;b'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateReadOnly(tt.sql)
			if err != nil {
				t.Fatalf("ValidateReadOnly(%q) error: %v", tt.sql, err)
			}
			if got != tt.want {
				t.Errorf("ValidateReadOnly(%q) = %q, want %q", tt.sql, got, tt.want)
			}
		})
	}
}

func TestValidateReadOnly_Rejects(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", "   "},
		{"bare semicolon", ";"},
		{"insert", "INSERT INTO munu.orders VALUES (1)"},
		{"delete", "DELETE FROM munu.orders"},
		{"does not start with select", "EXPLAIN SELECT 1"},
		{"update disguised in select", "SELECT 1; UPDATE munu.orders SET total_amount = 0"},
		{"drop after semicolon", "SELECT 1; DROP TABLE munu.orders"},
		{"modifying cte", "WITH gone AS (DELETE FROM munu.orders RETURNING *) SELECT * FROM gone"},
		{"truncate keyword", "SELECT 1 FROM x WHERE TRUNCATE"},
		{"exec", "SELECT EXEC('x')"},
		{"blocked keyword inside string literal", "SELECT * FROM munu.order_lines WHERE article_name = 'DROP Cake'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateReadOnly(tt.sql)
			if err == nil {
				t.Fatalf("ValidateReadOnly(%q) expected error", tt.sql)
			}
			if !errors.Is(err, apperrors.ErrRejectedQuery) {
				t.Errorf("error %v is not ErrRejectedQuery", err)
			}
		})
	}
}

func TestMaskStringLiterals(t *testing.T) {
	in := `SELECT 'a;b', "we;ird" FROM t WHERE x = 'it''s; fine'`
	masked := maskStringLiterals(in)

	if len(masked) != len(in) {
		t.Fatalf("masking changed length: %d != %d", len(masked), len(in))
	}
	if strings.ContainsRune(masked, ';') {
		t.Errorf("masked text still contains quoted semicolon: %q", masked)
	}
}
