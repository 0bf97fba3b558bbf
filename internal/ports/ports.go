// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The analysis session engine only ever talks to the
// remote pipeline, the document service and the durable store through these
// interfaces, so each can be replaced by an in-memory fake in tests.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Pipeline, BlobStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"io"
	"time"

	"github.com/doeshing/pmpilot/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.pmpilot/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Pipeline is the remote analysis service. Analyze blocks until the service
// answers; failures are reported as *domain.RemoteFailure.
type Pipeline interface {
	Analyze(context.Context, domain.AnalysisRequest) (domain.AnalysisResult, error)
}

// HealthChecker probes the remote service's health endpoint.
type HealthChecker interface {
	Health(context.Context) error
}

// DocumentService lists and uploads the documents used as query context.
type DocumentService interface {
	ListFiles(context.Context) ([]domain.FileInfo, error)
	Upload(ctx context.Context, name string, content io.Reader) (domain.UploadResult, error)
}

// BlobStore is the durable key-value store behind the history cache.
// Get returns found=false, not an error, for a missing key.
type BlobStore interface {
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// HistoryRepository stores completed analyses, newest first.
type HistoryRepository interface {
	AddEntry(context.Context, domain.HistoryEntry) error
	GetEntry(ctx context.Context, id string) (domain.HistoryEntry, error)
	RemoveEntry(ctx context.Context, id string) error
	ClearHistory(context.Context) error
	ListEntries(context.Context) ([]domain.HistoryEntry, error)
}

// Scheduler arms one-shot timers. The stage choreographer uses it instead of
// the time package so tests can drive time by hand.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending scheduled call. Stop may race with a fire that has
// already started; callers guard against stale fires themselves.
type Timer interface {
	Stop()
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces history entry ids.
type IDGenerator interface {
	NewID() string
}

// RunObserver receives lifecycle events for metrics.
type RunObserver interface {
	RunFinished(state domain.RunState, duration time.Duration)
	RunDiscarded()
	StageAdvanced(stageID string)
	HistoryOp(op string, err error)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
