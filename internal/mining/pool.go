// Package mining implements the bounded worker-pool request handler
// behind POST /thin_wallet/send_tokens (spec.md §4.5), grounded on
// original_source/hathor/wallet/resources/thin_wallet/send_tokens.py's
// render_POST/_render_POST_thread/_cb_tx_resolve split, and on the
// mutex-guarded counter idiom of
// _examples/nugget-thane-ai-agent/internal/scheduler/scheduler.go.
package mining

import "sync"

// Pool admits at most max concurrent mining jobs (spec.md §4.5
// "Admission"; MAX_POW_THREADS). It holds no reference to the actual
// goroutines doing the proof-of-work; callers run the work themselves
// and call Release when done.
type Pool struct {
	max int

	mu       sync.Mutex
	inFlight int
}

// NewPool returns a Pool that admits at most max concurrent jobs.
func NewPool(max int) *Pool {
	return &Pool{max: max}
}

// TryAcquire reserves a slot and reports whether one was available.
func (p *Pool) TryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight >= p.max {
		return false
	}
	p.inFlight++
	return true
}

// Release frees a slot reserved by a prior successful TryAcquire.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight > 0 {
		p.inFlight--
	}
}

// InFlight reports the current number of admitted jobs. Exposed for metrics/tests.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}
