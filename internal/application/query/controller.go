// Package query drives one analysis request at a time from submission to a
// terminal state, animating stage progress while the pipeline works and
// recording successful results in history.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/ports"
)

// ErrDisposed is returned by Submit after Dispose.
var ErrDisposed = errors.New("query controller disposed")

// Progress is the part of the stage choreographer the controller drives.
type Progress interface {
	Start()
	Stop()
	Complete()
}

// Snapshot is a copy of the controller's visible state.
type Snapshot struct {
	State   domain.RunState
	RunID   uint64
	Query   string
	Files   []string
	Result  *domain.AnalysisResult
	Notice  *domain.Notice
	EntryID string
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Files != nil {
		out.Files = append([]string(nil), s.Files...)
	}
	if s.Result != nil {
		result := s.Result.Clone()
		out.Result = &result
	}
	if s.Notice != nil {
		notice := *s.Notice
		out.Notice = &notice
	}
	return out
}

// Controller owns the Idle -> Running -> Succeeded|Failed lifecycle.
//
// Submitting while a run is outstanding is allowed and the newest run wins:
// every run carries a token and only the response whose token matches the
// current one is applied. Callers that want one request at a time must not
// submit until Wait returns.
type Controller struct {
	Pipeline ports.Pipeline
	History  ports.HistoryRepository
	Progress Progress
	Clock    ports.Clock
	IDs      ports.IDGenerator
	Logger   ports.Logger
	Observer ports.RunObserver
	// HistoryTimeout bounds the history write of a successful run.
	// Zero means domain.DefaultHistoryWriteTimeout.
	HistoryTimeout time.Duration

	mu       sync.Mutex
	token    uint64
	disposed bool
	snap     Snapshot
	started  time.Time
	inflight map[uint64]context.CancelFunc
}

// Run is the handle returned by Submit.
type Run struct {
	ID uint64

	parent context.Context
	done   chan struct{}
	snap Snapshot
	err  error
}

// Done is closed once the run has been applied or discarded.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes. A failed run returns its snapshot
// together with the pipeline error; a superseded run returns
// domain.ErrRunDiscarded.
func (r *Run) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-r.done:
		return r.snap.clone(), r.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (r *Run) finish(snap Snapshot, err error) {
	r.snap = snap
	r.err = err
	close(r.done)
}

// Submit validates query and starts a new run. An empty or whitespace-only
// query returns domain.ErrEmptyQuery without touching any state.
func (c *Controller) Submit(ctx context.Context, query string, fileIDs []string) (*Run, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if c.Pipeline == nil || c.History == nil {
		return nil, errors.New("query.Controller dependencies not satisfied")
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, ErrDisposed
	}
	c.token++
	token := c.token
	files := append([]string{}, fileIDs...)
	c.snap = Snapshot{
		State: domain.RunRunning,
		RunID: token,
		Query: query,
		Files: files,
	}
	c.started = c.now()
	if c.Progress != nil {
		c.Progress.Start()
	}
	runCtx, cancel := context.WithCancel(ctx)
	if c.inflight == nil {
		c.inflight = make(map[uint64]context.CancelFunc)
	}
	c.inflight[token] = cancel
	c.mu.Unlock()

	c.debug("analysis submitted", map[string]interface{}{
		"run":   token,
		"files": len(files),
	})

	run := &Run{ID: token, parent: ctx, done: make(chan struct{})}
	req := domain.AnalysisRequest{Query: query, FileIDs: append([]string(nil), files...)}
	go func() {
		result, err := c.analyze(runCtx, req)
		c.apply(run, query, files, result, err)
	}()
	return run, nil
}

// Execute submits query and waits for the run to finish.
func (c *Controller) Execute(ctx context.Context, query string, fileIDs []string) (Snapshot, error) {
	run, err := c.Submit(ctx, query, fileIDs)
	if err != nil {
		return Snapshot{}, err
	}
	return run.Wait(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.clone()
}

// DismissNotice clears the current notification, if any.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Notice = nil
}

// Reset returns a finished controller to Idle, dropping the displayed result.
// It has no effect while a run is outstanding.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.State == domain.RunRunning {
		return
	}
	c.snap = Snapshot{State: domain.RunIdle}
}

// Dispose stops progress, cancels outstanding requests and discards any
// response that arrives later. A run still outstanding ends Failed with a
// cancellation notice. It is idempotent.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.token++
	for token, cancel := range c.inflight {
		cancel()
		delete(c.inflight, token)
	}
	if c.Progress != nil {
		c.Progress.Stop()
	}
	if c.snap.State == domain.RunRunning {
		c.snap.State = domain.RunFailed
		c.snap.Result = nil
		c.snap.Notice = &domain.Notice{Level: domain.NoticeError, Message: domain.CancelledMessage}
	}
}

func (c *Controller) analyze(ctx context.Context, req domain.AnalysisRequest) (result domain.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.RemoteFailure{Err: fmt.Errorf("pipeline panic: %v", r)}
		}
	}()
	return c.Pipeline.Analyze(ctx, req)
}

func (c *Controller) apply(run *Run, query string, files []string, result domain.AnalysisResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cancel, ok := c.inflight[run.ID]; ok {
		cancel()
		delete(c.inflight, run.ID)
	}

	if run.ID != c.token || c.disposed {
		c.debug("discarding stale analysis response", map[string]interface{}{
			"run":     run.ID,
			"current": c.token,
		})
		if c.Observer != nil {
			c.Observer.RunDiscarded()
		}
		run.finish(Snapshot{}, domain.ErrRunDiscarded)
		return
	}

	elapsed := c.now().Sub(c.started)
	if err != nil {
		c.fail(run, err, elapsed)
		return
	}
	c.succeed(run, query, files, result, elapsed)
}

func (c *Controller) fail(run *Run, err error, elapsed time.Duration) {
	if c.Progress != nil {
		c.Progress.Stop()
	}
	c.snap.State = domain.RunFailed
	c.snap.Result = nil
	c.snap.Notice = &domain.Notice{Level: domain.NoticeError, Message: domain.FailureMessage(err)}

	if c.Logger != nil {
		c.Logger.Error("analysis failed", err, map[string]interface{}{
			"run":      run.ID,
			"duration": elapsed.String(),
		})
	}
	if c.Observer != nil {
		c.Observer.RunFinished(domain.RunFailed, elapsed)
	}
	run.finish(c.snap.clone(), err)
}

func (c *Controller) succeed(run *Run, query string, files []string, result domain.AnalysisResult, elapsed time.Duration) {
	if c.Progress != nil {
		c.Progress.Complete()
	}
	stored := result.Clone()
	c.snap.State = domain.RunSucceeded
	c.snap.Result = &stored
	c.snap.Notice = nil

	entry := domain.HistoryEntry{
		ID:        c.newID(),
		Query:     query,
		Files:     append([]string{}, files...),
		Timestamp: c.now().UnixMilli(),
		Result:    result.Clone(),
	}
	// Written under the lock so Wait returns only after the entry is stored.
	// The write follows the submitter's context and is bounded, so a stuck
	// store cannot hold the lock indefinitely.
	saveCtx, cancel := context.WithTimeout(run.parent, c.historyTimeout())
	defer cancel()
	if err := c.History.AddEntry(saveCtx, entry); err != nil {
		c.snap.Notice = &domain.Notice{Level: domain.NoticeWarning, Message: domain.PersistenceWarningMessage}
		c.warn("analysis result not saved to history", map[string]interface{}{
			"run":   run.ID,
			"error": err.Error(),
		})
	} else {
		c.snap.EntryID = entry.ID
	}

	c.debug("analysis succeeded", map[string]interface{}{
		"run":           run.ID,
		"entry":         c.snap.EntryID,
		"opportunities": len(result.Opportunities),
		"duration":      elapsed.String(),
	})
	if c.Observer != nil {
		c.Observer.RunFinished(domain.RunSucceeded, elapsed)
	}
	run.finish(c.snap.clone(), nil)
}

func (c *Controller) historyTimeout() time.Duration {
	if c.HistoryTimeout > 0 {
		return c.HistoryTimeout
	}
	return domain.DefaultHistoryWriteTimeout
}

func (c *Controller) now() time.Time {
	if c.Clock != nil {
		return c.Clock.Now()
	}
	return time.Now()
}

func (c *Controller) newID() string {
	if c.IDs != nil {
		return c.IDs.NewID()
	}
	return fmt.Sprintf("run-%d-%d", c.now().UnixNano(), c.token)
}

func (c *Controller) debug(msg string, fields map[string]interface{}) {
	if c.Logger != nil {
		c.Logger.Debug(msg, fields)
	}
}

func (c *Controller) warn(msg string, fields map[string]interface{}) {
	if c.Logger != nil {
		c.Logger.Warn(msg, fields)
	}
}
