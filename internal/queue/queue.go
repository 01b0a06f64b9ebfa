package queue

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgallion1/zenview/internal/reveal"
)

// DefaultSectionPause is the pause before auto-scrolling to the next queued section.
const DefaultSectionPause = 600 * time.Millisecond

// Scroller brings a section into view.
type Scroller interface {
	ScrollTo(sectionID string)
}

// ScrollFunc adapts a function to Scroller.
type ScrollFunc func(sectionID string)

func (f ScrollFunc) ScrollTo(sectionID string) { f(sectionID) }

// Options configures a Queue.
type Options struct {
	TopLevel func(sectionID string) bool // sections that trigger auto-scroll
	Scroller Scroller
	Pause    time.Duration
	Timer    reveal.Timer
	Logger   *slog.Logger
}

// Queue reveals sections one at a time in enqueue order. When the queue runs
// dry the document switches to interactive mode and later enqueues reveal
// immediately.
type Queue struct {
	sched    *reveal.Scheduler
	topLevel func(string) bool
	scroller Scroller
	pause    time.Duration
	timer    reveal.Timer
	log      *slog.Logger

	mu          sync.Mutex
	pending     []string
	draining    bool
	interactive bool
	gen         uint64
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a Queue driving sched.
func New(sched *reveal.Scheduler, opts Options) *Queue {
	if opts.Pause <= 0 {
		opts.Pause = DefaultSectionPause
	}
	if opts.Timer == nil {
		opts.Timer = reveal.RealTimer()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.TopLevel == nil {
		opts.TopLevel = func(string) bool { return false }
	}
	return &Queue{
		sched:    sched,
		topLevel: opts.TopLevel,
		scroller: opts.Scroller,
		pause:    opts.Pause,
		timer:    opts.Timer,
		log:      opts.Logger,
	}
}

// Enqueue schedules a section for reveal. Sections that are unknown, already
// revealing, already revealed, or already queued are ignored.
func (q *Queue) Enqueue(sectionID string) {
	q.mu.Lock()
	if q.sched.State(sectionID) != reveal.StatePending {
		q.mu.Unlock()
		return
	}
	if q.interactive {
		q.mu.Unlock()
		q.sched.Reveal(sectionID, nil)
		return
	}
	if slices.Contains(q.pending, sectionID) {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, sectionID)
	if !q.draining {
		q.startLocked()
	}
	q.mu.Unlock()
}

func (q *Queue) startLocked() {
	q.draining = true
	q.gen++
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	done := make(chan struct{})
	q.done = done
	q.log.Debug("queue drain started", "generation", q.gen)
	go q.drain(ctx, q.gen, done)
}

func (q *Queue) drain(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	for {
		q.mu.Lock()
		if ctx.Err() != nil || gen != q.gen {
			q.mu.Unlock()
			return
		}
		if len(q.pending) == 0 {
			q.draining = false
			q.interactive = true
			q.cancel()
			q.cancel = nil
			q.mu.Unlock()
			q.log.Debug("queue drained, interactive mode", "generation", gen)
			return
		}
		id := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		h := q.sched.Reveal(id, nil)
		select {
		case <-h.Done():
		case <-ctx.Done():
			return
		}

		q.mu.Lock()
		if ctx.Err() != nil {
			q.mu.Unlock()
			return
		}
		next := ""
		if !q.interactive && len(q.pending) > 0 && q.topLevel(id) {
			next = q.pending[0]
		}
		q.mu.Unlock()

		if next == "" {
			continue
		}
		if err := q.timer.Wait(ctx, q.pause); err != nil {
			return
		}
		q.mu.Lock()
		scroll := ctx.Err() == nil && !q.interactive
		q.mu.Unlock()
		if scroll && q.scroller != nil {
			q.scroller.ScrollTo(next)
		}
	}
}

// EnterInteractive switches to interactive mode. Sections still queued keep
// draining in order but without auto-scroll.
func (q *Queue) EnterInteractive() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.interactive = true
}

// Interactive reports whether enqueues reveal immediately.
func (q *Queue) Interactive() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.interactive
}

// Draining reports whether a drain loop is running.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Pending returns the queued section ids in order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

// Clear empties the queue, resets it to guided mode and waits for the drain
// loop to exit. It must not be called from a Scroller.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.draining = false
	q.interactive = false
	q.gen++
	cancel, done := q.cancel, q.done
	q.cancel, q.done = nil, nil
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
