// Package config validates a loaded configuration before the engine is wired.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/doeshing/pmpilot/internal/application/ranking"
	"github.com/doeshing/pmpilot/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := validatePipeline(cfg.Pipeline); err != nil {
		return err
	}
	if err := validateHistory(cfg.History); err != nil {
		return err
	}
	if err := cfg.ValidateConsistency(); err != nil {
		return fmt.Errorf("stages: %w", err)
	}
	if err := validatePreferences(cfg.Preferences); err != nil {
		return err
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}
	return nil
}

func validatePipeline(p domain.PipelineSettings) error {
	if p.BaseURL != "" {
		u, err := url.Parse(p.BaseURL)
		if err != nil {
			return fmt.Errorf("pipeline.base_url invalid: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("pipeline.base_url must be http or https, got %q", p.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("pipeline.base_url has no host: %q", p.BaseURL)
		}
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("pipeline.timeout invalid: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("pipeline.timeout must be > 0")
		}
	}
	return nil
}

func validateHistory(h domain.HistorySettings) error {
	switch strings.ToLower(strings.TrimSpace(h.Backend)) {
	case "", domain.HistoryBackendSQLite, domain.HistoryBackendFile, domain.HistoryBackendRedis, domain.HistoryBackendMemory:
	default:
		return fmt.Errorf("history.backend must be sqlite|file|redis|memory, got %s", h.Backend)
	}
	if h.Redis.DB < 0 {
		return fmt.Errorf("history.redis.db must be >= 0")
	}
	return nil
}

func validatePreferences(p domain.Preferences) error {
	if _, err := ranking.ParseField(p.DefaultSort); err != nil {
		return fmt.Errorf("preferences.default_sort: %w", err)
	}
	if p.ListLimit < 0 {
		return fmt.Errorf("preferences.list_limit must be >= 0")
	}
	return nil
}

func validateLogging(l domain.LoggingSettings) error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug|info|warn|error, got %s", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console|json, got %s", l.Format)
	}
	return nil
}
