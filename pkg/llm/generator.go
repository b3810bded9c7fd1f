package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/retry"
)

const (
	sqlTemperature     = 0
	insightTemperature = 0.3

	// Rows shown to the model when narrating results.
	insightPreviewRows = 15
)

// ClientProvider resolves a model name to a completion client.
// *Factory is the production implementation; tests provide stubs.
type ClientProvider interface {
	ClientFor(model string) (Client, error)
}

var _ ClientProvider = (*Factory)(nil)

// Generator runs the three completion operations of the pipeline: SQL
// generation, SQL repair, and insight narration. Transport failures
// retry per the bounded retry config; malformed output is handled by
// the extraction helpers, never retried.
type Generator struct {
	factory  ClientProvider
	rowLimit int
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewGenerator creates a Generator. rowLimit caps result sizes and is
// quoted in the prompts.
func NewGenerator(factory ClientProvider, rowLimit int, retryCfg *retry.Config, logger *zap.Logger) *Generator {
	return &Generator{
		factory:  factory,
		rowLimit: rowLimit,
		retryCfg: retryCfg,
		logger:   logger.Named("llm.generator"),
	}
}

func (g *Generator) complete(ctx context.Context, model, prompt, system string, temperature float64) (string, Usage, error) {
	client, err := g.factory.ClientFor(model)
	if err != nil {
		return "", Usage{}, err
	}

	type result struct {
		text  string
		usage Usage
	}
	res, err := retry.DoWithResult(ctx, g.retryCfg, func() (result, error) {
		text, usage, err := client.Complete(ctx, prompt, system, temperature)
		return result{text, usage}, err
	})
	if err != nil {
		return "", Usage{}, err
	}
	return res.text, res.usage, nil
}

// GenerateSQL produces one SELECT statement answering the question.
// contextBlock is the assembled prompt context, scopeConstraint the
// tenant instruction, hints the pre-model query hints; the latter two
// may be empty.
func (g *Generator) GenerateSQL(ctx context.Context, model, question, contextBlock, scopeConstraint, hints string) (string, Usage, error) {
	system := fmt.Sprintf(`SQL expert for DuckDB. Generate one SELECT query answering the question.

%s

Rules: ONLY the SQL, no explanation, no fences. SELECT only. LIMIT %d. DuckDB syntax.
When matching product/article names, use short root stems with ILIKE to catch all spelling variants.
Always use table aliases and qualify every column with its alias to avoid ambiguous references.%s`,
		contextBlock, g.rowLimit, scopeConstraint)

	text, usage, err := g.complete(ctx, model, question+hints, system, sqlTemperature)
	if err != nil {
		return "", usage, fmt.Errorf("generating sql: %w", err)
	}
	return ExtractSQL(text), usage, nil
}

// RepairSQL asks the model to fix a failed query given the engine's
// error text.
func (g *Generator) RepairSQL(ctx context.Context, model, question, badSQL, dbErr, contextBlock string) (string, Usage, error) {
	system := fmt.Sprintf(`SQL expert for DuckDB. Fix the SQL query that failed.

%s

Rules: ONLY the corrected SQL, no explanation, no fences. SELECT only. LIMIT %d. DuckDB syntax.
Always use table aliases and qualify every column with its alias.`,
		contextBlock, g.rowLimit)

	prompt := fmt.Sprintf("Question: %s\n\nFailed SQL:\n%s\n\nError: %s\n\nFix the SQL:", question, badSQL, dbErr)

	text, usage, err := g.complete(ctx, model, prompt, system, sqlTemperature)
	if err != nil {
		return "", usage, fmt.Errorf("repairing sql: %w", err)
	}
	return ExtractSQL(text), usage, nil
}

const insightSystem = `Analyze SQL results for restaurant dashboard. Return JSON only:
{"insight":"1-2 sentences","chart_type":"bar|line|none","x_key":"col","y_key":"col","title":"short"}
No fences. x_key/y_key must be actual column names. bar=categorical, line=time series, none=not chartable.`

// GenerateInsight narrates query results and picks a chart spec. The
// result always carries a usable Insight; malformed model output falls
// back to the raw text with no chart.
func (g *Generator) GenerateInsight(ctx context.Context, model, question, sql string, columns []string, rows [][]any) (Insight, Usage, error) {
	preview := rows
	if len(preview) > insightPreviewRows {
		preview = preview[:insightPreviewRows]
	}
	payload, err := json.Marshal(map[string]any{"columns": columns, "rows": preview})
	if err != nil {
		return Insight{}, Usage{}, fmt.Errorf("marshaling result preview: %w", err)
	}
	dataText := string(payload)
	if len(rows) > insightPreviewRows {
		dataText += fmt.Sprintf("\n...(%d rows total)", len(rows))
	}

	prompt := fmt.Sprintf("Q: %s\nSQL: %s\n%s", question, sql, dataText)

	text, usage, err := g.complete(ctx, model, prompt, insightSystem, insightTemperature)
	if err != nil {
		return Insight{}, usage, fmt.Errorf("generating insight: %w", err)
	}
	return ParseInsight(text), usage, nil
}
