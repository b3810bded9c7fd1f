// Package warehouse executes validated read-only SQL against the analytics
// warehouse and discovers its live schema for prompt context.
package warehouse

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/munuiq/insights-engine/pkg/apperrors"
	"github.com/munuiq/insights-engine/pkg/config"
	"github.com/munuiq/insights-engine/pkg/logging"
)

// Executor runs a validated read-only query and returns column names plus
// row values. Failures are wrapped as apperrors.ExecutionError so callers
// can distinguish them from queries rejected before execution.
type Executor interface {
	Execute(ctx context.Context, sql string) (columns []string, rows [][]any, err error)
}

// Warehouse holds a single warehouse connection. The connection is not safe
// for concurrent use, so every operation serializes on an internal mutex.
type Warehouse struct {
	mu       sync.Mutex
	conn     *pgx.Conn
	rowLimit int
	logger   *zap.Logger

	dictionary string
	tableCount int
}

var _ Executor = (*Warehouse)(nil)

// Connect opens the warehouse connection and verifies it with a ping.
func Connect(ctx context.Context, cfg config.WarehouseConfig, logger *zap.Logger) (*Warehouse, error) {
	logger = logger.Named("warehouse")
	logger.Info("connecting to warehouse",
		zap.String("dsn", logging.SanitizeDSN(cfg.ConnectionString())))

	conn, err := pgx.Connect(ctx, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connect to warehouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}

	return &Warehouse{
		conn:     conn,
		rowLimit: cfg.RowLimit,
		logger:   logger,
	}, nil
}

// Execute runs sql and returns at most the configured row limit. The query
// must already have passed read-only validation and tenant scoping.
func (w *Warehouse) Execute(ctx context.Context, sql string) ([]string, [][]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.conn.Query(ctx, sql)
	if err != nil {
		return nil, nil, apperrors.NewExecutionError(sql, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	out := make([][]any, 0, 16)
	for rows.Next() {
		if len(out) >= w.rowLimit {
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, apperrors.NewExecutionError(sql, err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewExecutionError(sql, err)
	}

	return columns, out, nil
}

// Close closes the warehouse connection.
func (w *Warehouse) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close(ctx)
}
