package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a production JSON logger writing at level and above.
func New(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	// Every failed event has to reach the log.
	cfg.Sampling = nil

	return cfg.Build()
}
