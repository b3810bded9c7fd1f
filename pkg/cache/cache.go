package cache

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/config"
)

const (
	responseKeyPrefix = "resp:"
	sqlKeyPrefix      = "sql:"
)

// SQLFunc generates SQL for a question through the full pipeline. The
// engine supplies it so common-question pre-generation runs with live
// schema context.
type SQLFunc func(ctx context.Context, question string) (string, error)

// commonQuestion pairs matching patterns with the description handed to
// the LLM when its SQL is pre-generated at startup.
type commonQuestion struct {
	patterns    []*regexp.Regexp
	description string
}

func compilePatterns(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile("(?i)" + p)
	}
	return compiled
}

// commonQuestions is the Tier 1 library. Patterns match the normalized
// question; SQL is generated once at startup, not hardcoded, so it tracks
// the live schema.
var commonQuestions = []commonQuestion{
	{
		patterns: compilePatterns(
			`(?:top|best)\s*sell(?:ing|er)?\s*(?:items?|products?|dishes?|menu)?`,
			`most\s*(?:popular|sold)\s*(?:items?|products?|dishes?|menu)?`,
		),
		description: "Top 20 best selling items ranked by total quantity sold",
	},
	{
		patterns: compilePatterns(
			`(?:worst|least|bottom)\s*sell(?:ing|er)?\s*(?:items?|products?|dishes?|menu)?`,
			`least\s*(?:popular|sold)\s*(?:items?|products?|dishes?|menu)?`,
		),
		description: "Bottom 20 least selling items ranked by total quantity sold ascending",
	},
	{
		patterns: compilePatterns(
			`(?:sales?|revenue)\s*(?:over\s*time|trend|by\s*(?:day|date))`,
			`daily\s*(?:sales?|revenue)`,
		),
		description: "Daily revenue trend over time, limit 200 days",
	},
	{
		patterns: compilePatterns(
			`revenue\s*by\s*(?:day\s*of\s*week|weekday)`,
			`busiest\s*day(?:s)?`,
			`(?:which|what)\s*day.*(?:most|busiest|highest)`,
		),
		description: "Total revenue and order count by day of week",
	},
	{
		patterns: compilePatterns(
			`revenue\s*by\s*(?:hour|time)`,
			`(?:peak|busiest)\s*hours?`,
			`(?:which|what)\s*(?:hour|time).*(?:most|busiest|peak)`,
		),
		description: "Total revenue and order count by hour of day",
	},
	{
		patterns: compilePatterns(
			`revenue\s*by\s*categor(?:y|ies)`,
			`categor(?:y|ies)\s*(?:breakdown|split|revenue)`,
		),
		description: "Revenue breakdown by product category",
	},
	{
		patterns: compilePatterns(
			`total\s*revenue`,
			`how\s*much\s*(?:revenue|sales|money)`,
			`(?:total|overall)\s*sales`,
		),
		description: "Summary statistics: total orders, total revenue, average order value",
	},
	{
		patterns: compilePatterns(
			`average\s*order\s*value`,
			`\baov\b`,
			`avg\s*order`,
		),
		description: "Average order value per day over time, limit 200 days",
	},
}

// Cache holds all three cache tiers.
type Cache struct {
	responses responseStore
	ttl       time.Duration
	logger    *zap.Logger

	mu        sync.Mutex
	sql       map[string]string
	commonSQL map[int]string
}

// New builds the tiered cache. rdb may be nil, in which case Tier 0 lives
// in process memory.
func New(cfg config.CacheConfig, rdb *redis.Client, logger *zap.Logger) *Cache {
	var responses responseStore
	if rdb != nil {
		responses = &redisStore{client: rdb}
	} else {
		responses = newMemoryStore()
	}
	return &Cache{
		responses: responses,
		ttl:       time.Duration(cfg.ResponseTTLSeconds) * time.Second,
		logger:    logger.Named("cache"),
		sql:       make(map[string]string),
		commonSQL: make(map[int]string),
	}
}

func responseKey(question, model string) string {
	return fmt.Sprintf("%s%s:%s", responseKeyPrefix, Normalize(question), model)
}

func sqlKey(question, model string) string {
	return fmt.Sprintf("%s%s:%s", sqlKeyPrefix, Normalize(question), model)
}

// GetResponse returns the Tier 0 cached response payload, if any.
// Time-sensitive questions always miss.
func (c *Cache) GetResponse(ctx context.Context, question, model string) ([]byte, bool) {
	if IsTimeSensitive(question) {
		return nil, false
	}
	return c.responses.Get(ctx, responseKey(question, model))
}

// PutResponse stores a full response payload for the TTL window.
// Time-sensitive questions are never stored, they go stale too quickly.
func (c *Cache) PutResponse(ctx context.Context, question, model string, payload []byte) {
	if IsTimeSensitive(question) {
		return
	}
	c.responses.Put(ctx, responseKey(question, model), payload, c.ttl)
}

// GetSQL returns Tier 2 cached SQL for the question and model.
func (c *Cache) GetSQL(question, model string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sql, ok := c.sql[sqlKey(question, model)]
	return sql, ok
}

// PutSQL stores generated SQL with no expiry.
func (c *Cache) PutSQL(question, model, sql string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sql[sqlKey(question, model)] = sql
}

// MatchCommon matches the question against the Tier 1 library and returns
// its pre-generated SQL. Entries whose startup generation failed never
// match.
func (c *Cache) MatchCommon(question string) (string, bool) {
	normalized := Normalize(question)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range commonQuestions {
		sql, ready := c.commonSQL[i]
		if !ready {
			continue
		}
		for _, pattern := range entry.patterns {
			if pattern.MatchString(normalized) {
				return sql, true
			}
		}
	}
	return "", false
}

// InitCommon pre-generates SQL for every common question. Failures are
// logged and skipped, that entry just will not match until the next
// regeneration.
func (c *Cache) InitCommon(ctx context.Context, generate SQLFunc) {
	count := 0
	for i, entry := range commonQuestions {
		sql, err := generate(ctx, entry.description)
		if err != nil {
			c.logger.Warn("common question init failed",
				zap.Int("index", i),
				zap.String("description", entry.description),
				zap.Error(err))
			continue
		}
		c.mu.Lock()
		c.commonSQL[i] = sql
		c.mu.Unlock()
		count++
	}
	c.logger.Info("common questions initialized",
		zap.Int("ready", count),
		zap.Int("total", len(commonQuestions)))
}

// ClearAll invalidates every tier and regenerates the common-question
// library. Called when category mappings or the schema change.
func (c *Cache) ClearAll(ctx context.Context, generate SQLFunc) {
	c.responses.Clear(ctx)

	c.mu.Lock()
	c.sql = make(map[string]string)
	c.commonSQL = make(map[int]string)
	c.mu.Unlock()

	c.InitCommon(ctx, generate)
}

// Stats reports cache sizes for monitoring.
type Stats struct {
	ResponseEntries      int `json:"response_cache_entries"`
	SQLEntries           int `json:"sql_cache_entries"`
	CommonQuestionsCount int `json:"common_questions_count"`
	CommonQuestionsReady int `json:"common_questions_ready"`
}

// Stats returns current sizes for each tier.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		ResponseEntries:      c.responses.Len(),
		SQLEntries:           len(c.sql),
		CommonQuestionsCount: len(commonQuestions),
		CommonQuestionsReady: len(c.commonSQL),
	}
}
