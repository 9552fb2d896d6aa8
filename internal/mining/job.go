package mining

import (
	"errors"
	"sync/atomic"

	"github.com/vertexledger/node/internal/domain"
)

// ErrCancelled is returned by a Miner when it observes should_stop
// before completing proof-of-work (spec.md §4.5 "Dispatch"/§9
// "Cancellation token").
var ErrCancelled = errors.New("mining cancelled")

// Miner performs the CPU-bound proof-of-work for a prepared
// transaction. It must poll shouldStop between attempts and return
// ErrCancelled as soon as shouldStop reports true, touching no
// transaction state on that path (spec.md §4.5 "Dispatch"). On
// success it returns the mined hash; the caller assigns it back on
// the reactor (original_source's hash_bytes = tx.start_mining(...)
// followed by a reactor-side tx.hash = hash_bytes).
type Miner interface {
	Mine(tx domain.Transaction, shouldStop func() bool) (hash string, err error)
}

// job is the per-request cancellation token shared between the HTTP
// handler goroutine and the worker running Mine (spec.md §9
// "Cancellation token": "model should_stop as a shared atomic flag").
type job struct {
	stop int32
}

func (j *job) Stop() {
	atomic.StoreInt32(&j.stop, 1)
}

func (j *job) ShouldStop() bool {
	return atomic.LoadInt32(&j.stop) == 1
}
