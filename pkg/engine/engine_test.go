package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/apperrors"
	"github.com/munuiq/insights-engine/pkg/cache"
	"github.com/munuiq/insights-engine/pkg/config"
	"github.com/munuiq/insights-engine/pkg/entity"
	"github.com/munuiq/insights-engine/pkg/llm"
	"github.com/munuiq/insights-engine/pkg/promptctx"
)

type staticDict string

func (d staticDict) DataDictionary() string { return string(d) }

// fakeExecutor records executed SQL and serves canned results. failures
// counts down, failing executions until it reaches zero.
type fakeExecutor struct {
	columns  []string
	rows     [][]any
	failures int
	failErr  error
	executed []string
}

func (f *fakeExecutor) Execute(_ context.Context, sql string) ([]string, [][]any, error) {
	f.executed = append(f.executed, sql)
	if f.failures > 0 {
		f.failures--
		return nil, nil, apperrors.NewExecutionError(sql, f.failErr)
	}
	return f.columns, f.rows, nil
}

// stubGenerator serves canned SQL, repairs and insights.
type stubGenerator struct {
	sql        string
	sqlErr     error
	repaired   string
	repairErr  error
	insight    llm.Insight
	insightErr error

	generateCalls int
	repairCalls   int
	lastSystem    struct{ contextBlock, constraint, hints string }
}

func (s *stubGenerator) GenerateSQL(_ context.Context, _, _, contextBlock, constraint, hints string) (string, llm.Usage, error) {
	s.generateCalls++
	s.lastSystem.contextBlock = contextBlock
	s.lastSystem.constraint = constraint
	s.lastSystem.hints = hints
	return s.sql, llm.Usage{InputTokens: 100, OutputTokens: 20}, s.sqlErr
}

func (s *stubGenerator) RepairSQL(_ context.Context, _, _, _, _, _ string) (string, llm.Usage, error) {
	s.repairCalls++
	return s.repaired, llm.Usage{InputTokens: 50, OutputTokens: 10}, s.repairErr
}

func (s *stubGenerator) GenerateInsight(_ context.Context, _, _, _ string, _ []string, _ [][]any) (llm.Insight, llm.Usage, error) {
	return s.insight, llm.Usage{InputTokens: 30, OutputTokens: 15}, s.insightErr
}

func testConfig() *config.Config {
	return &config.Config{
		RepairRetries: 1,
		LLM:           config.LLMConfig{DefaultModel: "claude-sonnet-4-20250514"},
		Cache:         config.CacheConfig{ResponseTTLSeconds: 1800},
	}
}

func newTestEngine(t *testing.T, gen SQLGenerator, exec *fakeExecutor) *Engine {
	t.Helper()
	resolver, err := entity.NewResolver("../entity/testdata/lookups.yaml", zap.NewNop())
	require.NoError(t, err)
	assembler, err := promptctx.NewAssembler("../promptctx/testdata", resolver, staticDict("SCHEMA:\nmunu.orders(soid:INT)"), zap.NewNop())
	require.NoError(t, err)

	cfg := testConfig()
	c := cache.New(cfg.Cache, nil, zap.NewNop())
	return New(assembler, gen, exec, c, cfg, zap.NewNop())
}

func TestAsk_EndToEnd(t *testing.T) {
	gen := &stubGenerator{
		sql: "SELECT DAYNAME(o.order_date) AS day, SUM(o.net_amount) AS revenue\n" +
			"FROM munu.orders o\n" +
			"GROUP BY 1 ORDER BY revenue DESC",
		insight: llm.Insight{
			Insight:   "Saturday is the strongest day.",
			ChartType: "bar",
			XKey:      "day",
			YKey:      "revenue",
			Title:     "Revenue by day of week",
		},
	}
	exec := &fakeExecutor{
		columns: []string{"day", "revenue"},
		rows:    [][]any{{"Saturday", 120500.0}, {"Friday", 98200.0}},
	}
	e := newTestEngine(t, gen, exec)

	resp, err := e.Ask(context.Background(), AskRequest{
		Question: "revenue by day of week last month",
		Scope:    []int{42},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "claude-sonnet-4-20250514", resp.Model)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, []string{"day", "revenue"}, resp.Columns)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, "Saturday is the strongest day.", resp.Insight)
	assert.Equal(t, "bar", resp.Chart.ChartType)
	assert.False(t, resp.Cached)
	assert.Equal(t, 130, resp.InputTokens)
	assert.Equal(t, 35, resp.OutputTokens)

	// Sales question: raw order tables in context, analytics cube not forced.
	assert.Contains(t, gen.lastSystem.contextBlock, "munu.orders")
	assert.NotContains(t, gen.lastSystem.contextBlock, "munuiq.daily_location_sales")
	assert.Contains(t, gen.lastSystem.constraint, "customer_id IN (42)")
	assert.Contains(t, gen.lastSystem.hints, "Date filter")

	// The executed SQL carries the injected tenant filter.
	require.Len(t, exec.executed, 1)
	assert.Contains(t, exec.executed[0], "customer_id IN (42)")
	assert.Contains(t, resp.SQL, "customer_id IN (42)")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	e := newTestEngine(t, &stubGenerator{}, &fakeExecutor{})
	_, err := e.Ask(context.Background(), AskRequest{Question: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAsk_ScreensInjectedQuestion(t *testing.T) {
	gen := &stubGenerator{}
	exec := &fakeExecutor{}
	e := newTestEngine(t, gen, exec)

	_, err := e.Ask(context.Background(), AskRequest{Question: "' OR 1=1 --"})
	assert.ErrorIs(t, err, apperrors.ErrRejectedQuery)
	assert.Equal(t, 0, gen.generateCalls, "screened questions never reach the LLM")
}

func TestAsk_RejectsUnsafeSQL(t *testing.T) {
	gen := &stubGenerator{sql: "DELETE FROM munu.orders"}
	exec := &fakeExecutor{}
	e := newTestEngine(t, gen, exec)

	_, err := e.Ask(context.Background(), AskRequest{Question: "remove old orders please"})
	assert.ErrorIs(t, err, apperrors.ErrRejectedQuery)
	assert.Empty(t, exec.executed, "rejected SQL must never reach the warehouse")
}

func TestAsk_RepairLoop(t *testing.T) {
	gen := &stubGenerator{
		sql:      "SELECT no_such_col FROM munu.orders",
		repaired: "SELECT soid FROM munu.orders",
		insight:  llm.Insight{Insight: "ok", ChartType: "none"},
	}
	exec := &fakeExecutor{
		columns:  []string{"soid"},
		rows:     [][]any{{int64(1)}},
		failures: 1,
		failErr:  errors.New(`column "no_such_col" does not exist`),
	}
	e := newTestEngine(t, gen, exec)

	resp, err := e.Ask(context.Background(), AskRequest{Question: "order ids", Scope: []int{7}})
	require.NoError(t, err)

	assert.Equal(t, 1, gen.repairCalls)
	require.Len(t, exec.executed, 2)
	assert.Contains(t, exec.executed[1], "customer_id IN (7)", "repaired SQL must be re-scoped")
	assert.Equal(t, []string{"soid"}, resp.Columns)
}

func TestAsk_RepairExhaustedSurfacesOriginalError(t *testing.T) {
	origErr := errors.New("relation does not exist")
	gen := &stubGenerator{
		sql:      "SELECT x FROM missing",
		repaired: "SELECT x FROM still_missing",
	}
	exec := &fakeExecutor{failures: 10, failErr: origErr}
	e := newTestEngine(t, gen, exec)

	_, err := e.Ask(context.Background(), AskRequest{Question: "order ids"})
	require.Error(t, err)
	assert.True(t, apperrors.IsExecutionError(err))
	assert.ErrorContains(t, err, "relation does not exist")
	assert.Equal(t, 1, gen.repairCalls, "repair loop must be bounded")
}

func TestAsk_InsightFallback(t *testing.T) {
	gen := &stubGenerator{
		sql:        "SELECT soid FROM munu.orders",
		insightErr: errors.New("llm timeout"),
	}
	exec := &fakeExecutor{columns: []string{"soid"}, rows: [][]any{{int64(1)}, {int64(2)}}}
	e := newTestEngine(t, gen, exec)

	resp, err := e.Ask(context.Background(), AskRequest{Question: "order ids"})
	require.NoError(t, err)
	assert.Contains(t, resp.Insight, "Query returned 2 rows")
	assert.Equal(t, "none", resp.Chart.ChartType)
}

func TestAsk_ResponseCacheSecondCall(t *testing.T) {
	gen := &stubGenerator{
		sql:     "SELECT soid FROM munu.orders",
		insight: llm.Insight{Insight: "ok", ChartType: "none"},
	}
	exec := &fakeExecutor{columns: []string{"soid"}, rows: [][]any{{int64(1)}}}
	e := newTestEngine(t, gen, exec)

	first, err := e.Ask(context.Background(), AskRequest{Question: "order ids last year"})
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := e.Ask(context.Background(), AskRequest{Question: "Order IDs last year!"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "response", second.CacheTier)
	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, 1, gen.generateCalls, "cached response must skip the LLM")
	assert.Len(t, exec.executed, 1, "cached response must skip execution")
}

func TestAsk_ResponseCacheScopeIsolation(t *testing.T) {
	gen := &stubGenerator{
		sql:     "SELECT SUM(net_amount) FROM munu.orders",
		insight: llm.Insight{Insight: "ok", ChartType: "none"},
	}
	exec := &fakeExecutor{columns: []string{"sum"}, rows: [][]any{{100.0}}}
	e := newTestEngine(t, gen, exec)

	_, err := e.Ask(context.Background(), AskRequest{Question: "total revenue last year", Scope: []int{42}})
	require.NoError(t, err)

	resp, err := e.Ask(context.Background(), AskRequest{Question: "total revenue last year", Scope: []int{7}})
	require.NoError(t, err)
	assert.False(t, resp.Cached, "different scope must not share cached responses")
	assert.Contains(t, resp.SQL, "customer_id IN (7)")
}

func TestAsk_SQLCacheReusedAndRescoped(t *testing.T) {
	gen := &stubGenerator{
		sql:     "SELECT soid FROM munu.orders",
		insight: llm.Insight{Insight: "ok", ChartType: "none"},
	}
	exec := &fakeExecutor{columns: []string{"soid"}, rows: [][]any{{int64(1)}}}
	e := newTestEngine(t, gen, exec)

	_, err := e.Ask(context.Background(), AskRequest{Question: "order ids from march", Scope: []int{42}})
	require.NoError(t, err)

	// Different scope misses Tier 0 but hits the SQL cache, and the cached
	// SQL is re-scoped for the new caller.
	resp, err := e.Ask(context.Background(), AskRequest{Question: "order ids from march", Scope: []int{9, 11}})
	require.NoError(t, err)
	assert.Equal(t, "sql", resp.CacheTier)
	assert.Equal(t, 1, gen.generateCalls)
	assert.Contains(t, resp.SQL, "customer_id IN (9, 11)")
}

func TestAsk_CommonQuestionTier(t *testing.T) {
	gen := &stubGenerator{insight: llm.Insight{Insight: "ok", ChartType: "bar"}}
	exec := &fakeExecutor{columns: []string{"item"}, rows: [][]any{{"croissant"}}}
	e := newTestEngine(t, gen, exec)

	e.cache.InitCommon(context.Background(), func(_ context.Context, q string) (string, error) {
		if strings.Contains(q, "best selling") {
			return "SELECT article_name FROM munu.order_lines GROUP BY 1 ORDER BY SUM(number_of_articles) DESC LIMIT 20", nil
		}
		return "SELECT 1", nil
	})

	resp, err := e.Ask(context.Background(), AskRequest{Question: "top selling items", Scope: []int{42}})
	require.NoError(t, err)
	assert.Equal(t, "common", resp.CacheTier)
	assert.Equal(t, 0, gen.generateCalls, "common questions skip SQL generation")
	assert.Contains(t, resp.SQL, "customer_id IN (42)", "common SQL still gets scoped")
}
