// Package timing adapts github.com/facebookgo/clock to ports.Clock and
// ports.Scheduler.
package timing

import (
	"time"

	"github.com/facebookgo/clock"

	"github.com/doeshing/pmpilot/internal/ports"
)

// Clock serves ports.Clock and ports.Scheduler from one clock.Clock, so
// timestamps and stage timers share a timeline.
type Clock struct {
	c clock.Clock
}

// New wraps c. Pass clock.NewMock() in tests and advance it with Add.
func New(c clock.Clock) Clock {
	return Clock{c: c}
}

// System returns a Clock on wall time.
func System() Clock {
	return New(clock.New())
}

// NewMockAt returns a mock clock moved forward to start, plus its wrapper.
func NewMockAt(start time.Time) (*clock.Mock, Clock) {
	mock := clock.NewMock()
	if d := start.Sub(mock.Now()); d > 0 {
		mock.Add(d)
	}
	return mock, New(mock)
}

func (c Clock) Now() time.Time { return c.c.Now() }

// AfterFunc runs f once d has elapsed on the underlying clock. On a mock,
// f runs on the goroutine calling Add.
func (c Clock) AfterFunc(d time.Duration, f func()) ports.Timer {
	return timer{t: c.c.AfterFunc(d, f)}
}

type timer struct {
	t *clock.Timer
}

func (t timer) Stop() { t.t.Stop() }

var (
	_ ports.Clock     = Clock{}
	_ ports.Scheduler = Clock{}
)
