package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// NewLogger builds the process-wide structured logger. APP_ENV=development
// switches to the human-readable console encoder.
func NewLogger() (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if os.Getenv("APP_ENV") == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
