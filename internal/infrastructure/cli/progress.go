package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/doeshing/pmpilot/internal/domain"
)

// StageSource publishes the active stage index while an analysis runs.
type StageSource interface {
	Stages() []domain.PipelineStage
	Subscribe() (<-chan int, func())
}

// Progress renders stage progress during an analysis. On a terminal it
// redraws a single spinner line; otherwise it prints one line per stage.
type Progress struct {
	frames      []string
	interval    time.Duration
	writer      io.Writer
	interactive bool
	source      StageSource
	stages      []domain.PipelineStage
	stopChan    chan struct{}
	wg          sync.WaitGroup
	running     bool
	mu          sync.Mutex
}

// NewProgress creates a progress renderer for source.
func NewProgress(w io.Writer, source StageSource) *Progress {
	return &Progress{
		frames:      []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval:    80 * time.Millisecond,
		writer:      w,
		interactive: isTerminal(w),
		source:      source,
		stages:      source.Stages(),
		stopChan:    make(chan struct{}),
	}
}

// Start subscribes to stage changes and begins rendering.
func (p *Progress) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	updates, unsubscribe := p.source.Subscribe()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer unsubscribe()
		p.loop(updates)
	}()
}

// Stop renders any pending change and stops the animation.
func (p *Progress) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()
}

func (p *Progress) loop(updates <-chan int) {
	var tick <-chan time.Time
	if p.interactive {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	current, printed, frame := 0, -1, 0
	for {
		select {
		case <-p.stopChan:
			select {
			case i, ok := <-updates:
				if ok && !p.interactive && i != printed {
					p.printLine(i)
				}
			default:
			}
			if p.interactive {
				fmt.Fprint(p.writer, "\r\033[K")
			}
			return
		case i, ok := <-updates:
			if !ok {
				return
			}
			current = i
			if p.interactive {
				p.redraw(current, frame)
			} else if current != printed {
				p.printLine(current)
				printed = current
			}
		case <-tick:
			frame++
			p.redraw(current, frame)
		}
	}
}

func (p *Progress) redraw(index, frame int) {
	fmt.Fprintf(p.writer, "\r\033[K%s %s", p.frames[frame%len(p.frames)], p.describe(index))
}

func (p *Progress) printLine(index int) {
	fmt.Fprintln(p.writer, p.describe(index))
}

// describe renders "[i/N] Label: Description", or a completion line once
// every stage is done.
func (p *Progress) describe(index int) string {
	total := len(p.stages)
	if index >= total {
		return fmt.Sprintf("[%d/%d] All stages complete", total, total)
	}
	if index < 0 {
		index = 0
	}
	stage := p.stages[index]
	if stage.Description == "" {
		return fmt.Sprintf("[%d/%d] %s", index+1, total, stage.Label)
	}
	return fmt.Sprintf("[%d/%d] %s: %s", index+1, total, stage.Label, stage.Description)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
