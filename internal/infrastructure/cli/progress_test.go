package cli

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/pmpilot/internal/application/choreographer"
	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/pkg/timing"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), want)
	}, 2*time.Second, 5*time.Millisecond, "missing %q in %q", want, buf.String())
}

func TestProgressPrintsOneLinePerStage(t *testing.T) {
	mock := clock.NewMock()
	stages, err := choreographer.New(domain.DefaultStages(), domain.DefaultStageSchedule(), timing.New(mock))
	require.NoError(t, err)

	var out syncBuffer
	progress := NewProgress(&out, stages)
	progress.Start()
	stages.Start()

	waitFor(t, &out, "[1/6] Routing query: Classifying the question\n")
	mock.Add(2 * time.Second)
	waitFor(t, &out, "[2/6] Collecting data: ")
	mock.Add(4 * time.Second)
	waitFor(t, &out, "[3/6] Processing data: ")

	stages.Complete()
	waitFor(t, &out, "[6/6] All stages complete\n")
	progress.Stop()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 4)
	assert.NotContains(t, out.String(), "\r")
}

func TestProgressStopIsIdempotent(t *testing.T) {
	mock := clock.NewMock()
	stages, err := choreographer.New(domain.DefaultStages(), domain.DefaultStageSchedule(), timing.New(mock))
	require.NoError(t, err)

	var out syncBuffer
	progress := NewProgress(&out, stages)
	progress.Stop()
	progress.Start()
	progress.Start()
	progress.Stop()
	progress.Stop()
	assert.Empty(t, out.String())
}

func TestProgressDescribe(t *testing.T) {
	stages := []domain.PipelineStage{
		{ID: "one", Label: "First"},
		{ID: "two", Label: "Second", Description: "more"},
	}
	chor, err := choreographer.New(stages, []time.Duration{time.Second}, timing.New(clock.NewMock()))
	require.NoError(t, err)

	progress := NewProgress(&bytes.Buffer{}, chor)
	assert.False(t, progress.interactive)
	assert.Equal(t, "[1/2] First", progress.describe(0))
	assert.Equal(t, "[2/2] Second: more", progress.describe(1))
	assert.Equal(t, "[2/2] All stages complete", progress.describe(2))
}
