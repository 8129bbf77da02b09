package config

import (
	"fmt"
	"strings"
)

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the config after defaults are applied, collecting every
// problem before failing.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Engine.Workers < 1 {
		errs = append(errs, fmt.Sprintf("engine.workers must be >= 1, got %d", cfg.Engine.Workers))
	}
	if cfg.Engine.QueueDepth < 1 {
		errs = append(errs, fmt.Sprintf("engine.queue_depth must be >= 1, got %d", cfg.Engine.QueueDepth))
	}
	if cfg.Engine.SubmitTimeoutMs < 1 {
		errs = append(errs, fmt.Sprintf("engine.submit_timeout_ms must be >= 1, got %d", cfg.Engine.SubmitTimeoutMs))
	}
	if !logLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of debug/info/warn/error, got %q", cfg.Logging.Level))
	}
	if cfg.Readiness.QueueHighWatermark <= 0 || cfg.Readiness.QueueHighWatermark > 1 {
		errs = append(errs, fmt.Sprintf("readiness.queue_high_watermark must be in (0, 1], got %g", cfg.Readiness.QueueHighWatermark))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
