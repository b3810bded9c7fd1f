package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded indicates a component was invoked before its startup
	// artifacts were loaded. This is a programming error, never recovered.
	ErrNotLoaded = errors.New("context artifacts not loaded")

	// ErrRejectedQuery indicates the generated SQL failed the read-only
	// check. Rejected queries are surfaced to the caller, never repaired.
	ErrRejectedQuery = errors.New("query rejected")

	// ErrInvalidModel indicates a model name no provider can serve.
	ErrInvalidModel = errors.New("invalid model")
)

// ExecutionError wraps a warehouse error for a query that passed validation
// but failed to execute (syntax, missing column, type mismatch). Execution
// errors are eligible for the bounded LLM repair loop.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps err with the SQL that triggered it.
func NewExecutionError(sql string, err error) *ExecutionError {
	return &ExecutionError{SQL: sql, Err: err}
}

// IsExecutionError reports whether err is (or wraps) an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
