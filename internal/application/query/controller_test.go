package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/pmpilot/internal/application/choreographer"
	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/pkg/identity"
	"github.com/doeshing/pmpilot/internal/pkg/timing"
)

type reply struct {
	result domain.AnalysisResult
	err    error
	panic  bool
}

// stubPipeline blocks each Analyze call until the test answers for its query.
type stubPipeline struct {
	mu      sync.Mutex
	calls   []domain.AnalysisRequest
	replies map[string]chan reply
	started chan string
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{replies: make(map[string]chan reply), started: make(chan string, 16)}
}

func (p *stubPipeline) channel(query string) chan reply {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.replies[query]
	if !ok {
		ch = make(chan reply, 1)
		p.replies[query] = ch
	}
	return ch
}

func (p *stubPipeline) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.AnalysisResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	ch := p.channel(req.Query)
	p.started <- req.Query

	select {
	case r := <-ch:
		if r.panic {
			panic("boom")
		}
		return r.result, r.err
	case <-ctx.Done():
		return domain.AnalysisResult{}, ctx.Err()
	}
}

func (p *stubPipeline) respond(query string, r reply) {
	p.channel(query) <- r
}

func (p *stubPipeline) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeHistory struct {
	mu          sync.Mutex
	entries     []domain.HistoryEntry
	addErr      error
	block       bool
	adding      chan struct{}
	sawDeadline bool
}

func (h *fakeHistory) AddEntry(ctx context.Context, e domain.HistoryEntry) error {
	h.mu.Lock()
	_, h.sawDeadline = ctx.Deadline()
	block := h.block
	h.mu.Unlock()
	if block {
		if h.adding != nil {
			h.adding <- struct{}{}
		}
		<-ctx.Done()
		return &domain.PersistenceError{Op: "add", Err: ctx.Err()}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.addErr != nil {
		return h.addErr
	}
	h.entries = append([]domain.HistoryEntry{e}, h.entries...)
	return nil
}

func (h *fakeHistory) GetEntry(_ context.Context, id string) (domain.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.HistoryEntry{}, domain.ErrNotFound
}

func (h *fakeHistory) RemoveEntry(context.Context, string) error { return nil }
func (h *fakeHistory) ClearHistory(context.Context) error        { return nil }

func (h *fakeHistory) ListEntries(context.Context) ([]domain.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.HistoryEntry(nil), h.entries...), nil
}

func (h *fakeHistory) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

type runRecorder struct {
	mu        sync.Mutex
	finished  []domain.RunState
	discarded int
}

func (r *runRecorder) RunFinished(state domain.RunState, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, state)
}

func (r *runRecorder) RunDiscarded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded++
}

func (r *runRecorder) StageAdvanced(string)     {}
func (r *runRecorder) HistoryOp(string, error) {}

type fixture struct {
	ctrl     *Controller
	pipeline *stubPipeline
	history  *fakeHistory
	clock    *clock.Mock
	stages   *choreographer.Choreographer
	observer *runRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock, clk := timing.NewMockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	stages, err := choreographer.New(domain.DefaultStages(), domain.DefaultStageSchedule(), clk)
	require.NoError(t, err)

	f := &fixture{
		pipeline: newStubPipeline(),
		history:  &fakeHistory{},
		clock:    mock,
		stages:   stages,
		observer: &runRecorder{},
	}
	f.ctrl = &Controller{
		Pipeline: f.pipeline,
		History:  f.history,
		Progress: stages,
		Clock:    clk,
		IDs:      &identity.SequenceGenerator{Prefix: "entry"},
		Observer: f.observer,
	}
	return f
}

func sampleResult(name string, score float64) domain.AnalysisResult {
	return domain.AnalysisResult{
		Completed:   true,
		TopFeature:  &domain.ScoredOpportunity{Name: name, Confidence: domain.ConfidenceHigh, RiceScore: domain.ScoreOf(score)},
		FeatureSpec: "# " + name,
		Opportunities: []domain.ScoredOpportunity{
			{Name: name, Confidence: domain.ConfidenceHigh, RiceScore: domain.ScoreOf(score)},
			{Name: "Other", Confidence: domain.ConfidenceLow},
		},
	}
}

func wait(t *testing.T, run *Run) (Snapshot, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return run.Wait(ctx)
}

func TestSubmitRejectsBlankQuery(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"", "   ", "\t\n"} {
		run, err := f.ctrl.Submit(context.Background(), q, nil)
		assert.Nil(t, run)
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}

	assert.Equal(t, domain.RunState(""), f.ctrl.Snapshot().State)
	assert.Equal(t, 0, f.pipeline.callCount())
	assert.False(t, f.stages.Running())
}

func TestSuccessfulRunRecordsHistory(t *testing.T) {
	f := newFixture(t)
	files := []string{"a.pdf", "b.docx"}

	run, err := f.ctrl.Submit(context.Background(), "What should we build next?", files)
	require.NoError(t, err)
	<-f.pipeline.started

	snap := f.ctrl.Snapshot()
	assert.Equal(t, domain.RunRunning, snap.State)
	assert.Nil(t, snap.Result)
	assert.True(t, f.stages.Running())
	assert.Equal(t, 0, f.stages.CurrentIndex())

	f.clock.Add(2 * time.Second)
	assert.Equal(t, 1, f.stages.CurrentIndex())

	want := sampleResult("Smart search", 42)
	f.pipeline.respond("What should we build next?", reply{result: want})

	snap, err = wait(t, run)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, want, *snap.Result)
	assert.Nil(t, snap.Notice)
	assert.Equal(t, "entry-1", snap.EntryID)

	assert.Equal(t, len(domain.DefaultStages()), f.stages.CurrentIndex())
	assert.False(t, f.stages.Running())

	require.Equal(t, 1, f.history.size())
	entry, err := f.history.GetEntry(context.Background(), "entry-1")
	require.NoError(t, err)
	assert.Equal(t, "What should we build next?", entry.Query)
	assert.Equal(t, files, entry.Files)
	assert.Equal(t, want, entry.Result)
	assert.Equal(t, f.clock.Now().UnixMilli(), entry.Timestamp)

	assert.Equal(t, []domain.RunState{domain.RunSucceeded}, f.observer.finished)
}

func TestFailedRunLeavesHistoryUntouched(t *testing.T) {
	f := newFixture(t)

	run, err := f.ctrl.Submit(context.Background(), "churn drivers", []string{"a.pdf"})
	require.NoError(t, err)
	<-f.pipeline.started
	f.clock.Add(3 * time.Second)
	indexAtFailure := f.stages.CurrentIndex()

	f.pipeline.respond("churn drivers", reply{err: &domain.RemoteFailure{Message: "pipeline overloaded", StatusCode: 503}})

	snap, err := wait(t, run)
	var rf *domain.RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, domain.RunFailed, snap.State)
	assert.Nil(t, snap.Result)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, domain.NoticeError, snap.Notice.Level)
	assert.Equal(t, "pipeline overloaded", snap.Notice.Message)
	assert.Equal(t, 0, f.history.size())

	f.clock.Add(time.Minute)
	assert.Equal(t, indexAtFailure, f.stages.CurrentIndex())
	assert.False(t, f.stages.Running())
}

func TestFailureWithoutMessageUsesFallback(t *testing.T) {
	f := newFixture(t)

	run, err := f.ctrl.Submit(context.Background(), "q", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	f.pipeline.respond("q", reply{err: &domain.RemoteFailure{}})

	snap, err := wait(t, run)
	require.Error(t, err)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, domain.FallbackFailureMessage, snap.Notice.Message)
}

func TestPipelinePanicBecomesFailure(t *testing.T) {
	f := newFixture(t)

	run, err := f.ctrl.Submit(context.Background(), "q", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	f.pipeline.respond("q", reply{panic: true})

	snap, err := wait(t, run)
	require.Error(t, err)
	assert.Equal(t, domain.RunFailed, snap.State)
	assert.Equal(t, 0, f.history.size())
}

func TestPersistenceFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.history.addErr = &domain.PersistenceError{Op: "add", Err: errors.New("quota exceeded")}

	run, err := f.ctrl.Submit(context.Background(), "q", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	f.pipeline.respond("q", reply{result: sampleResult("Export", 5)})

	snap, err := wait(t, run)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, snap.State)
	require.NotNil(t, snap.Result)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, domain.NoticeWarning, snap.Notice.Level)
	assert.Equal(t, domain.PersistenceWarningMessage, snap.Notice.Message)
	assert.Empty(t, snap.EntryID)

	f.ctrl.DismissNotice()
	assert.Nil(t, f.ctrl.Snapshot().Notice)
	assert.NotNil(t, f.ctrl.Snapshot().Result)
}

func TestLastSubmitWins(t *testing.T) {
	f := newFixture(t)

	older, err := f.ctrl.Submit(context.Background(), "old question", nil)
	require.NoError(t, err)
	<-f.pipeline.started

	newer, err := f.ctrl.Submit(context.Background(), "What should we build next?", []string{"a.pdf"})
	require.NoError(t, err)
	<-f.pipeline.started
	assert.Greater(t, newer.ID, older.ID)

	f.pipeline.respond("What should we build next?", reply{result: sampleResult("Fresh", 9)})
	snap, err := wait(t, newer)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", snap.Result.TopFeature.Name)

	f.pipeline.respond("old question", reply{result: sampleResult("Stale", 1)})
	_, err = wait(t, older)
	assert.ErrorIs(t, err, domain.ErrRunDiscarded)

	current := f.ctrl.Snapshot()
	assert.Equal(t, newer.ID, current.RunID)
	assert.Equal(t, "Fresh", current.Result.TopFeature.Name)
	assert.Equal(t, []string{"a.pdf"}, current.Files)
	assert.Equal(t, 1, f.history.size())
	assert.Equal(t, 1, f.observer.discarded)
}

func TestLateFailureDoesNotClobberNewerRun(t *testing.T) {
	f := newFixture(t)

	older, err := f.ctrl.Submit(context.Background(), "first", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	newer, err := f.ctrl.Submit(context.Background(), "second", nil)
	require.NoError(t, err)
	<-f.pipeline.started

	f.pipeline.respond("first", reply{err: errors.New("timeout")})
	_, err = wait(t, older)
	assert.ErrorIs(t, err, domain.ErrRunDiscarded)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, domain.RunRunning, snap.State)
	assert.Nil(t, snap.Notice)
	assert.True(t, f.stages.Running())

	f.pipeline.respond("second", reply{result: sampleResult("Second", 2)})
	_, err = wait(t, newer)
	require.NoError(t, err)
}

func TestDisposeMidRunStopsProgressAndDiscards(t *testing.T) {
	f := newFixture(t)

	run, err := f.ctrl.Submit(context.Background(), "q", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	f.clock.Add(2 * time.Second)
	require.Equal(t, 1, f.stages.CurrentIndex())

	f.ctrl.Dispose()
	f.ctrl.Dispose()

	snap := f.ctrl.Snapshot()
	assert.Equal(t, domain.RunFailed, snap.State)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, domain.CancelledMessage, snap.Notice.Message)

	_, err = wait(t, run)
	assert.ErrorIs(t, err, domain.ErrRunDiscarded)
	assert.Equal(t, domain.RunFailed, f.ctrl.Snapshot().State)

	f.clock.Add(time.Minute)
	assert.Equal(t, 1, f.stages.CurrentIndex())
	assert.Equal(t, 0, f.history.size())

	_, err = f.ctrl.Submit(context.Background(), "again", nil)
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestDisposeAfterFinishKeepsResult(t *testing.T) {
	f := newFixture(t)

	run, err := f.ctrl.Submit(context.Background(), "q", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	f.pipeline.respond("q", reply{result: sampleResult("Keep", 3)})
	_, err = wait(t, run)
	require.NoError(t, err)

	f.ctrl.Dispose()
	snap := f.ctrl.Snapshot()
	assert.Equal(t, domain.RunSucceeded, snap.State)
	assert.NotNil(t, snap.Result)
}

func TestHistoryWriteFollowsSubmitContext(t *testing.T) {
	f := newFixture(t)
	f.history.block = true
	f.history.adding = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	run, err := f.ctrl.Submit(ctx, "q", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	f.pipeline.respond("q", reply{result: sampleResult("Slow store", 3)})

	<-f.history.adding
	select {
	case <-run.Done():
		t.Fatal("run finished before the history write returned")
	default:
	}
	cancel()

	snap, err := wait(t, run)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, snap.State)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, domain.PersistenceWarningMessage, snap.Notice.Message)
	assert.True(t, f.history.sawDeadline)
}

func TestHistoryWriteIsBounded(t *testing.T) {
	f := newFixture(t)
	f.history.block = true
	f.ctrl.HistoryTimeout = 10 * time.Millisecond

	run, err := f.ctrl.Submit(context.Background(), "q", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	f.pipeline.respond("q", reply{result: sampleResult("Slow store", 3)})

	snap, err := wait(t, run)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, snap.State)
	require.NotNil(t, snap.Notice)
	assert.Equal(t, domain.NoticeWarning, snap.Notice.Level)
	assert.Empty(t, snap.EntryID)
}

func TestResubmitAfterTerminalState(t *testing.T) {
	f := newFixture(t)

	snapCh := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Execute(context.Background(), "first", nil)
		snapCh <- err
	}()
	<-f.pipeline.started
	f.pipeline.respond("first", reply{err: errors.New("boom")})
	require.Error(t, <-snapCh)
	assert.Equal(t, domain.RunFailed, f.ctrl.Snapshot().State)

	run, err := f.ctrl.Submit(context.Background(), "second", nil)
	require.NoError(t, err)
	<-f.pipeline.started
	snap := f.ctrl.Snapshot()
	assert.Equal(t, domain.RunRunning, snap.State)
	assert.Nil(t, snap.Notice)
	assert.Equal(t, 0, f.stages.CurrentIndex())

	f.pipeline.respond("second", reply{result: sampleResult("Ok", 1)})
	_, err = wait(t, run)
	require.NoError(t, err)

	f.ctrl.Reset()
	assert.Equal(t, Snapshot{State: domain.RunIdle}, f.ctrl.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFixture(t)

	run, err := f.ctrl.Submit(context.Background(), "q", []string{"a.pdf"})
	require.NoError(t, err)
	<-f.pipeline.started
	f.pipeline.respond("q", reply{result: sampleResult("Keep", 3)})
	_, err = wait(t, run)
	require.NoError(t, err)

	snap := f.ctrl.Snapshot()
	snap.Files[0] = "mutated"
	snap.Result.Opportunities[0].Name = "mutated"

	again := f.ctrl.Snapshot()
	assert.Equal(t, "a.pdf", again.Files[0])
	assert.Equal(t, "Keep", again.Result.Opportunities[0].Name)
}

func TestSubmitRequiresDependencies(t *testing.T) {
	var ctrl Controller
	_, err := ctrl.Submit(context.Background(), "q", nil)
	assert.Error(t, err)
}
