// Package choreographer animates pipeline progress while an analysis request
// is outstanding. It has no feedback channel from the backend: stages advance
// on a fixed schedule and hold at the last stage until the caller finishes.
package choreographer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/doeshing/pmpilot/internal/domain"
	"github.com/doeshing/pmpilot/internal/ports"
)

// Choreographer is a cancellable, timer-driven stage state machine.
//
// Every timer it arms is tagged with the current generation. Start, Stop and
// Complete bump the generation, so a timer that fires after cancellation
// finds a stale tag and does nothing.
type Choreographer struct {
	stages   []domain.PipelineStage
	schedule []time.Duration
	sched    ports.Scheduler
	observer ports.RunObserver

	mu          sync.Mutex
	generation  uint64
	index       int
	running     bool
	timer       ports.Timer
	subscribers map[int]chan int
	nextSubID   int
}

// New builds a choreographer. schedule[k] is how long stage k stays active
// before stage k+1 starts, so it needs one entry per transition.
func New(stages []domain.PipelineStage, schedule []time.Duration, sched ports.Scheduler) (*Choreographer, error) {
	if len(stages) == 0 {
		return nil, errors.New("choreographer: at least one stage required")
	}
	if len(schedule) < len(stages)-1 {
		return nil, fmt.Errorf("choreographer: %d stages need %d durations, got %d", len(stages), len(stages)-1, len(schedule))
	}
	if sched == nil {
		return nil, errors.New("choreographer: scheduler required")
	}
	return &Choreographer{
		stages:      append([]domain.PipelineStage(nil), stages...),
		schedule:    append([]time.Duration(nil), schedule[:len(stages)-1]...),
		sched:       sched,
		subscribers: make(map[int]chan int),
	}, nil
}

// WithObserver reports each stage advance to o.
func (c *Choreographer) WithObserver(o ports.RunObserver) *Choreographer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
	return c
}

// Start resets to the first stage and begins advancing.
func (c *Choreographer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.running = true
	c.index = 0
	c.publishLocked()
	c.armLocked(c.generation, 0)
}

// Stop cancels any pending transition. It is idempotent and leaves the
// current index untouched.
func (c *Choreographer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancelLocked()
}

// Complete cancels pending transitions and marks every stage complete.
// It has no effect unless the choreographer is running.
func (c *Choreographer) Complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancelLocked()
	c.index = len(c.stages)
	c.publishLocked()
}

// CurrentIndex returns the active stage index. It equals len(Stages()) once
// Complete has been called.
func (c *Choreographer) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Running reports whether transitions are still being scheduled or held.
func (c *Choreographer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stages returns the configured stages.
func (c *Choreographer) Stages() []domain.PipelineStage {
	return append([]domain.PipelineStage(nil), c.stages...)
}

// Statuses classifies every stage against the current index.
func (c *Choreographer) Statuses() []domain.StageStatus {
	c.mu.Lock()
	current := c.index
	c.mu.Unlock()

	out := make([]domain.StageStatus, len(c.stages))
	for i := range c.stages {
		out[i] = domain.StatusAt(i, current)
	}
	return out
}

// Subscribe returns a channel that receives the index after every change.
// Slow readers only see the latest value. The returned func unsubscribes and
// closes the channel.
func (c *Choreographer) Subscribe() (<-chan int, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	ch := make(chan int, 1)
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
			close(ch)
		})
	}
}

func (c *Choreographer) armLocked(gen uint64, k int) {
	if k+1 >= len(c.stages) {
		// Hold at the last stage until Complete or Stop.
		return
	}
	c.timer = c.sched.AfterFunc(c.schedule[k], func() {
		c.advance(gen, k)
	})
}

func (c *Choreographer) advance(gen uint64, from int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || !c.running || c.index != from {
		return
	}
	c.index = from + 1
	c.timer = nil
	if c.observer != nil {
		c.observer.StageAdvanced(c.stages[c.index].ID)
	}
	c.publishLocked()
	c.armLocked(gen, c.index)
}

func (c *Choreographer) cancelLocked() {
	c.generation++
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Choreographer) publishLocked() {
	for _, ch := range c.subscribers {
		select {
		case ch <- c.index:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c.index:
			default:
			}
		}
	}
}
