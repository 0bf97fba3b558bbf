package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultPipelineTimeout bounds a single analysis request
	DefaultPipelineTimeout = 5 * time.Minute
	// DefaultHealthTimeout bounds the doctor health probe
	DefaultHealthTimeout = 5 * time.Second
	// DefaultHistoryWriteTimeout bounds saving a finished run to history
	DefaultHistoryWriteTimeout = 10 * time.Second
)

// Pipeline constants
const (
	// DefaultPipelineURL is where the analysis service listens by default
	DefaultPipelineURL = "http://localhost:8000"
)

// History backends
const (
	HistoryBackendSQLite = "sqlite"
	HistoryBackendFile   = "file"
	HistoryBackendRedis  = "redis"
	HistoryBackendMemory = "memory"
)

// History constants
const (
	// DefaultHistoryKey is the blob key holding the serialized history
	DefaultHistoryKey = "pm-analysis-history"
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
	// DefaultRedisAddress is used when the redis backend has no address
	DefaultRedisAddress = "localhost:6379"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
