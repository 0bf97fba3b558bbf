// Package history keeps completed analyses in a durable, newest-first cache.
//
// The whole history is one JSON document stored under a single key of a
// ports.BlobStore. Every mutation rewrites that document with one Set, so a
// reader never sees a half-applied change, and a failed write leaves the
// cached view exactly as it was.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/ports"
)

const documentVersion = 1

// document is the persisted form. RetiredIDs remembers every id that was
// removed so it can never be handed out again.
type document struct {
	Version    int                   `json:"version"`
	Entries    []domain.HistoryEntry `json:"entries"`
	RetiredIDs []string              `json:"retired_ids,omitempty"`
}

// Cache implements ports.HistoryRepository on top of a blob store.
type Cache struct {
	store    ports.BlobStore
	key      string
	logger   ports.Logger
	observer ports.RunObserver

	mu     sync.Mutex
	loaded bool
	doc    document
}

// NewCache builds a cache that lazily reads key from store on first use.
func NewCache(store ports.BlobStore, key string, logger ports.Logger) *Cache {
	if key == "" {
		key = domain.DefaultHistoryKey
	}
	return &Cache{store: store, key: key, logger: logger}
}

// WithObserver reports every history operation to o.
func (c *Cache) WithObserver(o ports.RunObserver) *Cache {
	c.observer = o
	return c
}

// AddEntry inserts entry at the head of the history and persists it.
func (c *Cache) AddEntry(ctx context.Context, entry domain.HistoryEntry) (err error) {
	defer func() { c.report("add", err) }()

	if entry.ID == "" {
		return fmt.Errorf("%w: history entry id must not be empty", domain.ErrValidation)
	}
	if strings.TrimSpace(entry.Query) == "" {
		return fmt.Errorf("%w: history entry query must not be empty", domain.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	if c.idUsedLocked(entry.ID) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, entry.ID)
	}

	next := c.doc
	next.Entries = make([]domain.HistoryEntry, 0, len(c.doc.Entries)+1)
	next.Entries = append(next.Entries, entry.Clone())
	next.Entries = append(next.Entries, c.doc.Entries...)
	return c.commitLocked(ctx, "add", next)
}

// GetEntry returns the entry with the given id or an error wrapping
// domain.ErrNotFound.
func (c *Cache) GetEntry(ctx context.Context, id string) (domain.HistoryEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return domain.HistoryEntry{}, err
	}
	for _, entry := range c.doc.Entries {
		if entry.ID == id {
			return entry.Clone(), nil
		}
	}
	return domain.HistoryEntry{}, fmt.Errorf("history entry %s: %w", id, domain.ErrNotFound)
}

// RemoveEntry deletes the entry with the given id. Unknown ids are a no-op.
func (c *Cache) RemoveEntry(ctx context.Context, id string) (err error) {
	defer func() { c.report("remove", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	idx := -1
	for i, entry := range c.doc.Entries {
		if entry.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	next := c.doc
	next.Entries = make([]domain.HistoryEntry, 0, len(c.doc.Entries)-1)
	next.Entries = append(next.Entries, c.doc.Entries[:idx]...)
	next.Entries = append(next.Entries, c.doc.Entries[idx+1:]...)
	next.RetiredIDs = append(append([]string(nil), c.doc.RetiredIDs...), id)
	return c.commitLocked(ctx, "remove", next)
}

// ClearHistory deletes every entry in a single write.
func (c *Cache) ClearHistory(ctx context.Context) (err error) {
	defer func() { c.report("clear", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	if len(c.doc.Entries) == 0 {
		return nil
	}

	next := c.doc
	next.Entries = nil
	next.RetiredIDs = append([]string(nil), c.doc.RetiredIDs...)
	for _, entry := range c.doc.Entries {
		next.RetiredIDs = append(next.RetiredIDs, entry.ID)
	}
	return c.commitLocked(ctx, "clear", next)
}

// ListEntries returns a point-in-time copy of the history, newest first.
func (c *Cache) ListEntries(ctx context.Context) ([]domain.HistoryEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, len(c.doc.Entries))
	for i, entry := range c.doc.Entries {
		out[i] = entry.Clone()
	}
	return out, nil
}

// Search returns entries whose query or file names contain keyword,
// ignoring case, newest first.
func (c *Cache) Search(ctx context.Context, keyword string) ([]domain.HistoryEntry, error) {
	entries, err := c.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return entries, nil
	}
	var matches []domain.HistoryEntry
	for _, entry := range entries {
		if matchesKeyword(entry, needle) {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}

// Export writes the history as JSON lines, newest first.
func (c *Cache) Export(ctx context.Context, w io.Writer) error {
	entries, err := c.ListEntries(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}

func matchesKeyword(entry domain.HistoryEntry, needle string) bool {
	if strings.Contains(strings.ToLower(entry.Query), needle) {
		return true
	}
	for _, file := range entry.Files {
		if strings.Contains(strings.ToLower(file), needle) {
			return true
		}
	}
	return false
}

func (c *Cache) idUsedLocked(id string) bool {
	for _, entry := range c.doc.Entries {
		if entry.ID == id {
			return true
		}
	}
	for _, retired := range c.doc.RetiredIDs {
		if retired == id {
			return true
		}
	}
	return false
}

func (c *Cache) ensureLoadedLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	data, found, err := c.store.Get(ctx, c.key)
	if err != nil {
		return &domain.PersistenceError{Op: "load", Err: err}
	}
	c.loaded = true
	c.doc = document{Version: documentVersion}
	if !found || len(data) == 0 {
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Left in the store until the next write replaces it.
		c.warn("ignoring unreadable history document", map[string]interface{}{
			"key":   c.key,
			"error": err.Error(),
		})
		return nil
	}
	doc.Version = documentVersion
	c.doc = doc
	return nil
}

func (c *Cache) commitLocked(ctx context.Context, op string, next document) error {
	data, err := json.Marshal(next)
	if err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	if err := c.store.Set(ctx, c.key, data); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	c.doc = next
	return nil
}

func (c *Cache) report(op string, err error) {
	if c.observer != nil {
		c.observer.HistoryOp(op, err)
	}
	if err != nil && c.logger != nil {
		c.logger.Error("history operation failed", err, map[string]interface{}{"op": op})
	}
}

func (c *Cache) warn(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, fields)
	}
}

var _ ports.HistoryRepository = (*Cache)(nil)
