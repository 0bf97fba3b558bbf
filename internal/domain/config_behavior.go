package domain

import (
	"fmt"
	"strings"
	"time"
)

// Rich domain behaviour for Config. Accessors fall back to defaults so
// callers never branch on zero values.

// GetPipelineURL returns the configured pipeline base URL without a trailing slash.
func (c *Config) GetPipelineURL() string {
	if c.Pipeline.BaseURL == "" {
		return DefaultPipelineURL
	}
	return strings.TrimRight(c.Pipeline.BaseURL, "/")
}

// GetPipelineTimeout returns the per-request timeout.
// Invalid or non-positive values fall back to the default.
func (c *Config) GetPipelineTimeout() time.Duration {
	if c.Pipeline.Timeout == "" {
		return DefaultPipelineTimeout
	}
	d, err := time.ParseDuration(c.Pipeline.Timeout)
	if err != nil || d <= 0 {
		return DefaultPipelineTimeout
	}
	return d
}

// GetHistoryBackend returns the normalised history backend name.
func (c *Config) GetHistoryBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.History.Backend))
	if backend == "" {
		return HistoryBackendSQLite
	}
	return backend
}

// GetHistoryKey returns the blob key used for the history document.
func (c *Config) GetHistoryKey() string {
	if c.History.Key == "" {
		return DefaultHistoryKey
	}
	return c.History.Key
}

// GetRedisAddress returns the redis address for the redis backend.
func (c *Config) GetRedisAddress() string {
	if c.History.Redis.Address == "" {
		return DefaultRedisAddress
	}
	return c.History.Redis.Address
}

// GetListLimit returns how many history entries list shows by default.
func (c *Config) GetListLimit() int {
	if c.Preferences.ListLimit <= 0 {
		return DefaultHistoryLimit
	}
	return c.Preferences.ListLimit
}

// PipelineStages returns the configured stages, or the defaults when none are set.
func (c *Config) PipelineStages() []PipelineStage {
	if len(c.Stages) == 0 {
		return DefaultStages()
	}
	stages := make([]PipelineStage, len(c.Stages))
	for i, s := range c.Stages {
		stages[i] = PipelineStage{ID: s.ID, Label: s.Label, Description: s.Description, Icon: s.Icon}
	}
	return stages
}

// StageSchedule returns one duration per stage transition.
func (c *Config) StageSchedule() ([]time.Duration, error) {
	if len(c.Stages) == 0 {
		return DefaultStageSchedule(), nil
	}
	schedule := make([]time.Duration, 0, len(c.Stages)-1)
	for _, s := range c.Stages[:len(c.Stages)-1] {
		d, err := time.ParseDuration(s.Duration)
		if err != nil {
			return nil, fmt.Errorf("stage %s: invalid duration %q: %w", s.ID, s.Duration, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("stage %s: duration must be positive", s.ID)
		}
		schedule = append(schedule, d)
	}
	return schedule, nil
}

// ValidateConsistency checks the internal consistency of the configuration.
func (c *Config) ValidateConsistency() error {
	if len(c.Stages) == 1 {
		return fmt.Errorf("at least two stages are required, got 1")
	}
	seen := make(map[string]bool, len(c.Stages))
	for _, s := range c.Stages {
		if s.ID == "" {
			return fmt.Errorf("stage id must not be empty")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate stage id %s", s.ID)
		}
		seen[s.ID] = true
	}
	if _, err := c.StageSchedule(); err != nil {
		return err
	}
	return nil
}
