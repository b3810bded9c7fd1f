// Package logging builds the process logger and sanitizes values before
// they are logged.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New creates the root logger for the given environment. "local" and "dev"
// get a human-readable development logger; anything else gets the JSON
// production logger.
func New(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch env {
	case "local", "dev", "development":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger, nil
}
