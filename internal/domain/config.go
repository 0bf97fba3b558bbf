package domain

// Config mirrors ~/.pmpilot/config.yaml.
type Config struct {
	ConfigFormatVersion string           `yaml:"config_format_version"`
	Preferences         Preferences      `yaml:"preferences"`
	Pipeline            PipelineSettings `yaml:"pipeline"`
	History             HistorySettings  `yaml:"history"`
	Stages              []StageSettings  `yaml:"stages"`
	Logging             LoggingSettings  `yaml:"logging"`
	Metrics             MetricsSettings  `yaml:"metrics"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultSort string `yaml:"default_sort"`
	Ascending   bool   `yaml:"ascending"`
	ListLimit   int    `yaml:"list_limit"`
}

// PipelineSettings locates the remote analysis service.
type PipelineSettings struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// HistorySettings selects and configures the durable store behind history.
type HistorySettings struct {
	Backend string        `yaml:"backend"`
	Path    string        `yaml:"path"`
	Key     string        `yaml:"key"`
	Redis   RedisSettings `yaml:"redis"`
}

// RedisSettings configures the redis history backend.
type RedisSettings struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StageSettings is one configured progress stage. Duration is the time spent
// on the stage before advancing; it is ignored for the last stage.
type StageSettings struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Duration    string `yaml:"duration,omitempty"`
}

// LoggingSettings controls the structured logger.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsSettings controls the prometheus endpoint.
type MetricsSettings struct {
	Listen string `yaml:"listen"`
}
