package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/pmpilot/assets"
	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/pkg/filesystem"
	"github.com/doeshing/pmpilot/internal/ports"
)

// Environment variables read by the loader.
const (
	EnvConfigPath     = "PMPILOT_CONFIG"
	EnvAPIURL         = "PMPILOT_API_URL"
	EnvHistoryBackend = "PMPILOT_HISTORY_BACKEND"
	EnvRedisAddr      = "PMPILOT_REDIS_ADDR"
	EnvLogLevel       = "PMPILOT_LOG_LEVEL"
)

// FileLoader loads YAML configuration from ~/.pmpilot/config.yaml (overridable via PMPILOT_CONFIG).
// Values from .env files and PMPILOT_* variables win over the file.
type FileLoader struct {
	overridePath string
	envFiles     []string
}

// NewFileLoader builds a new loader. An empty path means the default location.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{
		overridePath: path,
		envFiles:     []string{".env", filepath.Join(BaseDir(), ".env")},
	}
}

// WithEnvFiles replaces the .env files consulted before reading the config.
func (l *FileLoader) WithEnvFiles(paths ...string) *FileLoader {
	l.envFiles = paths
	return l
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	loadEnvFiles(l.envFiles)

	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, err
		}
		if err := writeDefault(path); err != nil {
			return domain.Config{}, err
		}
		data = assets.DefaultConfigYAML
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg = hydrateDefaults(cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Path returns the config file the loader reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return expandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(BaseDir(), "config.yaml")
}

// BaseDir is ~/.pmpilot, the root for config and local history.
func BaseDir() string {
	return filepath.Join(filesystem.UserHomeDir(), ".pmpilot")
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

func loadEnvFiles(paths []string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// Load never overrides variables that are already set.
		_ = godotenv.Load(path)
	}
}

func ensureConfigDir(path string) error {
	return filesystem.EnsureParentDir(path, domain.DirectoryPermissions)
}

func writeDefault(path string) error {
	return os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Pipeline.BaseURL == "" {
		cfg.Pipeline.BaseURL = domain.DefaultPipelineURL
	}
	if cfg.Pipeline.Timeout == "" {
		cfg.Pipeline.Timeout = domain.DefaultPipelineTimeout.String()
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = domain.HistoryBackendSQLite
	}
	if cfg.History.Key == "" {
		cfg.History.Key = domain.DefaultHistoryKey
	}
	if cfg.Preferences.DefaultSort == "" {
		cfg.Preferences.DefaultSort = "rice_score"
	}
	if cfg.Preferences.ListLimit == 0 {
		cfg.Preferences.ListLimit = domain.DefaultHistoryLimit
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}
	cfg.History.Path = expandPathIfSet(cfg.History.Path)
	return cfg
}

func applyEnvOverrides(cfg *domain.Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.Pipeline.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryBackend)); v != "" {
		cfg.History.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.History.Redis.Address = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
}

func expandPathIfSet(path string) string {
	if path == "" {
		return ""
	}
	return expandPath(path)
}

func expandPath(path string) string {
	return filesystem.ExpandHome(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
