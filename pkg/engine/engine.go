// Package engine runs the ask pipeline: cache tiers, context assembly,
// SQL generation, safety guarding, execution, repair and insight.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/cache"
	"github.com/munuiq/insights-engine/pkg/config"
	"github.com/munuiq/insights-engine/pkg/llm"
	"github.com/munuiq/insights-engine/pkg/logging"
	"github.com/munuiq/insights-engine/pkg/promptctx"
	"github.com/munuiq/insights-engine/pkg/sqlguard"
	"github.com/munuiq/insights-engine/pkg/warehouse"
)

// ErrEmptyQuestion rejects requests with no question text.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// SQLGenerator is the LLM surface the engine needs. Satisfied by
// llm.Generator.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, model, question, contextBlock, scopeConstraint, hints string) (string, llm.Usage, error)
	RepairSQL(ctx context.Context, model, question, badSQL, dbErr, contextBlock string) (string, llm.Usage, error)
	GenerateInsight(ctx context.Context, model, question, sql string, columns []string, rows [][]any) (llm.Insight, llm.Usage, error)
}

var _ SQLGenerator = (*llm.Generator)(nil)

// AskRequest carries one question through the pipeline. Scope is the set
// of customer IDs the caller may see; empty means unrestricted.
type AskRequest struct {
	Question string
	Model    string
	ForceRaw bool
	Mentions []promptctx.Mention
	Scope    []int
}

// ChartSpec tells the frontend how to visualize the result set.
type ChartSpec struct {
	ChartType string `json:"chart_type"`
	XKey      string `json:"x_key"`
	YKey      string `json:"y_key"`
	Title     string `json:"title"`
}

// AskResponse is the full answer to one question.
type AskResponse struct {
	RequestID     string    `json:"request_id"`
	Question      string    `json:"question"`
	SQL           string    `json:"sql"`
	Columns       []string  `json:"columns"`
	Data          [][]any   `json:"data"`
	Insight       string    `json:"insight"`
	Chart         ChartSpec `json:"chart"`
	Model         string    `json:"model"`
	Provider      string    `json:"provider"`
	Cached        bool      `json:"cached"`
	CacheTier     string    `json:"cache_tier,omitempty"`
	InputTokens   int       `json:"input_tokens"`
	OutputTokens  int       `json:"output_tokens"`
	SQLTimeMs     int64     `json:"sql_time_ms"`
	QueryTimeMs   int64     `json:"query_time_ms"`
	InsightTimeMs int64     `json:"insight_time_ms"`
}

// Engine wires the pipeline stages together.
type Engine struct {
	assembler *promptctx.Assembler
	generator SQLGenerator
	executor  warehouse.Executor
	cache     *cache.Cache

	defaultModel  string
	repairRetries int
	logger        *zap.Logger
}

// New builds the engine from its stages.
func New(
	assembler *promptctx.Assembler,
	generator SQLGenerator,
	executor warehouse.Executor,
	queryCache *cache.Cache,
	cfg *config.Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		assembler:     assembler,
		generator:     generator,
		executor:      executor,
		cache:         queryCache,
		defaultModel:  cfg.LLM.DefaultModel,
		repairRetries: cfg.RepairRetries,
		logger:        logger.Named("engine"),
	}
}

func provider(model string) string {
	if strings.HasPrefix(model, "openai:") || strings.HasPrefix(model, "local:") {
		return "openai"
	}
	return "anthropic"
}

// cacheModel isolates full-response cache entries per tenant scope so one
// caller's data is never served to another with a different scope.
func cacheModel(model string, scope []int) string {
	if len(scope) == 0 {
		return model
	}
	parts := make([]string, len(scope))
	for i, id := range scope {
		parts[i] = strconv.Itoa(id)
	}
	return model + "#" + strings.Join(parts, ",")
}

// Ask answers a question end to end.
func (e *Engine) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if err := sqlguard.ScreenFreeText("question", question); err != nil {
		return nil, err
	}
	for _, m := range req.Mentions {
		if err := sqlguard.ScreenFreeText("mention", m.Label); err != nil {
			return nil, err
		}
	}
	model := req.Model
	if model == "" {
		model = e.defaultModel
	}

	if payload, ok := e.cache.GetResponse(ctx, question, cacheModel(model, req.Scope)); ok {
		var resp AskResponse
		if err := json.Unmarshal(payload, &resp); err == nil {
			resp.Cached = true
			resp.CacheTier = "response"
			e.logger.Info("response cache hit", zap.String("question", question))
			return &resp, nil
		}
	}

	resp := &AskResponse{
		RequestID: uuid.NewString(),
		Question:  question,
		Model:     model,
		Provider:  provider(model),
	}

	var usage llm.Usage
	var contextBlock string

	sqlStart := time.Now()
	rawSQL, tier, err := e.resolveSQL(ctx, req, question, model, &usage, &contextBlock)
	if err != nil {
		return nil, err
	}
	resp.SQLTimeMs = time.Since(sqlStart).Milliseconds()
	resp.CacheTier = tier

	guarded, err := e.guard(rawSQL, req.Scope)
	if err != nil {
		return nil, err
	}

	queryStart := time.Now()
	columns, rows, execErr := e.executor.Execute(ctx, guarded)
	if execErr != nil {
		columns, rows, rawSQL, guarded, err = e.repair(ctx, req, question, model, guarded, execErr, &usage, &contextBlock)
		if err != nil {
			return nil, err
		}
	}
	resp.QueryTimeMs = time.Since(queryStart).Milliseconds()
	resp.SQL = guarded
	resp.Columns = columns
	resp.Data = rows

	insightStart := time.Now()
	insight, insightUsage, err := e.generator.GenerateInsight(ctx, model, question, guarded, columns, rows)
	if err != nil {
		insight = llm.Insight{
			Insight:   fmt.Sprintf("Query returned %d rows but insight generation failed: %v", len(rows), err),
			ChartType: "none",
		}
	}
	usage.Add(insightUsage)
	resp.InsightTimeMs = time.Since(insightStart).Milliseconds()
	resp.Insight = insight.Insight
	resp.Chart = ChartSpec{
		ChartType: insight.ChartType,
		XKey:      insight.XKey,
		YKey:      insight.YKey,
		Title:     insight.Title,
	}
	resp.InputTokens = usage.InputTokens
	resp.OutputTokens = usage.OutputTokens

	if tier == "" {
		e.cache.PutSQL(question, model, rawSQL)
	}
	if payload, err := json.Marshal(resp); err == nil {
		e.cache.PutResponse(ctx, question, cacheModel(model, req.Scope), payload)
	}

	return resp, nil
}

// PregenerateSQL produces unscoped SQL for the common-question library at
// startup. Tenant scoping is applied per request when the library entry is
// served, so one library works for every caller.
func (e *Engine) PregenerateSQL(ctx context.Context, model, question string) (string, error) {
	block, err := e.assembler.AssembleContext(question, false, nil)
	if err != nil {
		return "", fmt.Errorf("assemble context: %w", err)
	}
	sql, _, err := e.generator.GenerateSQL(ctx, model, question, block, "", e.assembler.QueryHints(question))
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}
	return sql, nil
}

// resolveSQL finds SQL for the question: the common-question library, the
// SQL cache, or a fresh LLM generation. The returned SQL is unscoped; the
// guard runs on every path. tier is "" when freshly generated.
func (e *Engine) resolveSQL(
	ctx context.Context,
	req AskRequest,
	question, model string,
	usage *llm.Usage,
	contextBlock *string,
) (sql, tier string, err error) {
	if sql, ok := e.cache.MatchCommon(question); ok {
		e.logger.Info("common question hit", zap.String("question", question))
		return sql, "common", nil
	}
	if sql, ok := e.cache.GetSQL(question, model); ok {
		e.logger.Info("sql cache hit", zap.String("question", question))
		return sql, "sql", nil
	}

	block, err := e.assembler.AssembleContext(question, req.ForceRaw, req.Mentions)
	if err != nil {
		return "", "", fmt.Errorf("assemble context: %w", err)
	}
	*contextBlock = block

	hints := e.assembler.QueryHints(question)
	constraint := sqlguard.BuildScopeConstraint(req.Scope)

	sql, genUsage, err := e.generator.GenerateSQL(ctx, model, question, block, constraint, hints)
	if err != nil {
		return "", "", fmt.Errorf("generate sql: %w", err)
	}
	usage.Add(genUsage)
	return sql, "", nil
}

// guard enforces the two safety invariants on any SQL regardless of where
// it came from.
func (e *Engine) guard(sql string, scope []int) (string, error) {
	validated, err := sqlguard.ValidateReadOnly(sql)
	if err != nil {
		return "", err
	}
	return sqlguard.InjectTenantScope(validated, scope), nil
}

// repair runs the bounded LLM repair loop after an execution failure. Each
// attempt re-passes validation and scoping before re-execution. When every
// attempt fails the original execution error is surfaced.
func (e *Engine) repair(
	ctx context.Context,
	req AskRequest,
	question, model, failedSQL string,
	execErr error,
	usage *llm.Usage,
	contextBlock *string,
) (columns []string, rows [][]any, rawSQL, guarded string, err error) {
	original := execErr

	for attempt := 1; attempt <= e.repairRetries; attempt++ {
		e.logger.Warn("query failed, attempting repair",
			zap.Int("attempt", attempt),
			zap.String("sql", logging.SanitizeQuery(failedSQL)),
			zap.Error(execErr))

		if *contextBlock == "" {
			block, aerr := e.assembler.AssembleContext(question, req.ForceRaw, req.Mentions)
			if aerr != nil {
				break
			}
			*contextBlock = block
		}

		fixed, fixUsage, rerr := e.generator.RepairSQL(ctx, model, question, failedSQL, execErr.Error(), *contextBlock)
		if rerr != nil {
			break
		}
		usage.Add(fixUsage)

		scoped, gerr := e.guard(fixed, req.Scope)
		if gerr != nil {
			break
		}

		cols, data, eerr := e.executor.Execute(ctx, scoped)
		if eerr == nil {
			return cols, data, fixed, scoped, nil
		}
		failedSQL, execErr = scoped, eerr
	}

	return nil, nil, "", "", original
}
