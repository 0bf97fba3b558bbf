package blobstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/ports"
)

// Opened is a configured backend ready for use by the history cache.
type Opened struct {
	Store    ports.BlobStore
	Backend  string
	Location string
	closer   func() error
}

// Close releases the backend's connections.
func (o *Opened) Close() error {
	if o == nil || o.closer == nil {
		return nil
	}
	return o.closer()
}

// DefaultPath returns where a backend keeps history under baseDir
// (usually ~/.pmpilot) when the config has no explicit path.
func DefaultPath(backend, baseDir string) string {
	switch backend {
	case domain.HistoryBackendFile:
		return filepath.Join(baseDir, "history")
	default:
		return filepath.Join(baseDir, "history", "history.db")
	}
}

// Open builds the backend selected by settings.
func Open(ctx context.Context, settings domain.HistorySettings, baseDir string) (*Opened, error) {
	backend := strings.ToLower(strings.TrimSpace(settings.Backend))
	if backend == "" {
		backend = domain.HistoryBackendSQLite
	}
	path := settings.Path
	if path == "" {
		path = DefaultPath(backend, baseDir)
	}

	switch backend {
	case domain.HistoryBackendSQLite:
		store, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: store, Backend: backend, Location: path, closer: store.Close}, nil
	case domain.HistoryBackendFile:
		return &Opened{Store: NewFileStore(path), Backend: backend, Location: path}, nil
	case domain.HistoryBackendRedis:
		store := NewRedisStore(settings.Redis, "pmpilot:")
		addr := settings.Redis.Address
		if addr == "" {
			addr = domain.DefaultRedisAddress
		}
		return &Opened{Store: store, Backend: backend, Location: addr, closer: store.Close}, nil
	case domain.HistoryBackendMemory:
		return &Opened{Store: NewMemoryStore(), Backend: backend, Location: "memory"}, nil
	default:
		return nil, fmt.Errorf("%w: unknown history backend %q", domain.ErrValidation, settings.Backend)
	}
}
