package warehouse

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/promptctx"
)

var _ promptctx.DictionaryProvider = (*Warehouse)(nil)

const introspectQuery = `
SELECT table_schema, table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
ORDER BY table_schema, table_name, ordinal_position`

// typeAbbreviations shortens verbose warehouse type names to save prompt
// tokens. Matched by prefix in order, so the timezone variant must come
// before plain TIMESTAMP.
var typeAbbreviations = []struct{ prefix, short string }{
	{"BIGINT", "INT"},
	{"INTEGER", "INT"},
	{"SMALLINT", "INT"},
	{"TINYINT", "INT"},
	{"HUGEINT", "INT"},
	{"DOUBLE", "FLOAT"},
	{"FLOAT", "FLOAT"},
	{"DECIMAL", "DEC"},
	{"NUMERIC", "DEC"},
	{"VARCHAR", "STR"},
	{"CHARACTER", "STR"},
	{"TEXT", "STR"},
	{"BOOLEAN", "BOOL"},
	{"TIMESTAMP WITH TIME ZONE", "TSTZ"},
	{"TIMESTAMP", "TS"},
	{"DATE", "DATE"},
	{"TIME", "TIME"},
	{"BLOB", "BLOB"},
}

func shortType(dtype string) string {
	upper := strings.ToUpper(dtype)
	for _, t := range typeAbbreviations {
		if strings.HasPrefix(upper, t.prefix) {
			return t.short
		}
	}
	if len(dtype) > 8 {
		return dtype[:8]
	}
	return dtype
}

type columnRow struct {
	schema, table, column, dtype string
}

// buildDictionary renders the compact one-line-per-table schema block:
// TABLE_NAME(col1:TYPE, col2:TYPE, ...). Rows must arrive ordered by
// schema, table, ordinal position.
func buildDictionary(rows []columnRow) (string, int) {
	var order []string
	columns := make(map[string][]string)

	for _, r := range rows {
		key := r.table
		if r.schema != "public" {
			key = r.schema + "." + r.table
		}
		if _, ok := columns[key]; !ok {
			order = append(order, key)
		}
		columns[key] = append(columns[key], fmt.Sprintf("%s:%s", r.column, shortType(r.dtype)))
	}

	lines := []string{"SCHEMA:"}
	for _, key := range order {
		lines = append(lines, fmt.Sprintf("%s(%s)", key, strings.Join(columns[key], ", ")))
	}
	return strings.Join(lines, "\n"), len(order)
}

// Introspect queries information_schema and rebuilds the compact data
// dictionary used in prompt context. Called once at startup and again
// whenever the cache is cleared.
func (w *Warehouse) Introspect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.conn.Query(ctx, introspectQuery)
	if err != nil {
		return fmt.Errorf("introspect warehouse: %w", err)
	}
	defer rows.Close()

	var collected []columnRow
	for rows.Next() {
		var r columnRow
		if err := rows.Scan(&r.schema, &r.table, &r.column, &r.dtype); err != nil {
			return fmt.Errorf("scan schema row: %w", err)
		}
		collected = append(collected, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read schema rows: %w", err)
	}

	w.dictionary, w.tableCount = buildDictionary(collected)
	w.logger.Info("warehouse schema discovered", zap.Int("tables", w.tableCount))
	return nil
}

// DataDictionary returns the compact schema block built by Introspect.
func (w *Warehouse) DataDictionary() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dictionary
}

// TableCount returns the number of tables found by Introspect.
func (w *Warehouse) TableCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tableCount
}
