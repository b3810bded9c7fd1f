package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/munuiq/insights-engine/pkg/cache"
	"github.com/munuiq/insights-engine/pkg/config"
	"github.com/munuiq/insights-engine/pkg/engine"
	"github.com/munuiq/insights-engine/pkg/entity"
	"github.com/munuiq/insights-engine/pkg/llm"
	"github.com/munuiq/insights-engine/pkg/logging"
	"github.com/munuiq/insights-engine/pkg/promptctx"
	"github.com/munuiq/insights-engine/pkg/warehouse"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	model := flag.String("model", "", "model override for this session")
	scopeFlag := flag.String("scope", "", "comma-separated customer IDs to scope queries to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	scope, err := parseScope(*scopeFlag)
	if err != nil {
		log.Fatalf("Invalid -scope: %v", err)
	}

	ctx := context.Background()

	wh, err := warehouse.Connect(ctx, cfg.Warehouse, logger)
	if err != nil {
		log.Fatalf("Failed to connect to warehouse: %v", err)
	}
	defer func() { _ = wh.Close(context.Background()) }()

	if err := wh.Introspect(ctx); err != nil {
		log.Fatalf("Failed to discover warehouse schema: %v", err)
	}

	resolver, err := entity.NewResolver(cfg.ArtifactPath("lookups.yaml"), logger)
	if err != nil {
		log.Fatalf("Failed to load entity lookups: %v", err)
	}
	assembler, err := promptctx.NewAssembler(cfg.ArtifactsDir, resolver, wh, logger)
	if err != nil {
		log.Fatalf("Failed to load context artifacts: %v", err)
	}

	factory := llm.NewFactory(cfg.LLM, logger)
	generator := llm.NewGenerator(factory, cfg.Warehouse.RowLimit, nil, logger)

	rdb, err := cache.NewRedisClient(cfg.Cache.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	queryCache := cache.New(cfg.Cache, rdb, logger)

	eng := engine.New(assembler, generator, wh, queryCache, cfg, logger)

	queryCache.InitCommon(ctx, func(ctx context.Context, question string) (string, error) {
		return eng.PregenerateSQL(ctx, cfg.LLM.InitModel, question)
	})

	fmt.Printf("insights-engine %s ready (%d tables). Ask a question, Ctrl-D to exit.\n",
		Version, wh.TableCount())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		resp, err := eng.Ask(ctx, engine.AskRequest{
			Question: question,
			Model:    *model,
			Scope:    scope,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		payload, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(string(payload))
	}
}

func parseScope(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	scope := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("customer ID %q: %w", p, err)
		}
		scope = append(scope, id)
	}
	return scope, nil
}
