// Package reactor provides a minimal single-goroutine cooperative event
// loop: the Go-shaped stand-in for the Twisted reactor the rest of the
// node's concurrency model assumes (SPEC_FULL.md §2). All gateway and
// bus state is mutated only from callbacks run on the Loop's goroutine;
// everything else either schedules a callback onto it or hands work off
// to a worker pool that holds no references to that state.
package reactor

import (
	"context"
	"sync"
	"time"
)

// Loop is a single-goroutine cooperative scheduler. Call Run once, from
// the goroutine that should own it; ScheduleLater and SubmitFromWorker
// are safe to call from any goroutine, including Run's own callbacks.
type Loop struct {
	tasks chan func()
	clock func() time.Time

	mu      sync.Mutex
	running bool
	stopped bool
	stop    chan struct{}
}

// New creates a Loop. clock defaults to time.Now; tests that need a
// deterministic clock for rate-limit windows should pass their own.
func New(clock func() time.Time) *Loop {
	if clock == nil {
		clock = time.Now
	}
	return &Loop{
		tasks: make(chan func(), 256),
		clock: clock,
		stop:  make(chan struct{}),
	}
}

// Run drains scheduled callbacks on the calling goroutine until ctx is
// canceled or Stop is called. It blocks; callers typically run it in
// its own goroutine from main.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.stopped = true
		l.mu.Unlock()
	}()

	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop breaks the Run loop on its next iteration. Timers already armed
// via ScheduleLater become no-ops: their callback checks whether the
// loop has stopped before enqueueing (see scheduleNow).
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	l.stopped = true
	close(l.stop)
}

// IsRunning reports whether Run is currently draining tasks.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Now returns the loop's clock time, used by the rate limiter so tests
// can drive a simulated clock (spec.md §4.1, "deterministic for a
// simulated clock").
func (l *Loop) Now() time.Time {
	return l.clock()
}

// ScheduleLater arms fn to run on the loop goroutine after delay. A
// zero delay still defers fn rather than running it inline — this is
// what lets publish-on-reactor avoid reentering a publisher
// synchronously (spec.md §4.2).
func (l *Loop) ScheduleLater(delay time.Duration, fn func()) {
	time.AfterFunc(delay, func() { l.scheduleNow(fn) })
}

// SubmitFromWorker hands fn off from a worker-pool goroutine to the
// loop goroutine (spec.md §4.2, "caller is on a worker thread").
func (l *Loop) SubmitFromWorker(fn func()) {
	l.scheduleNow(fn)
}

// scheduleNow enqueues fn for the loop goroutine. Callbacks submitted
// before Run has started are queued and run once it does; once the
// loop has stopped (Stop, or Run returning) the callback is dropped,
// matching "periodic timers check is_running and self-terminate"
// (spec.md §5).
func (l *Loop) scheduleNow(fn func()) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}
	select {
	case l.tasks <- fn:
	case <-l.stop:
	}
}
