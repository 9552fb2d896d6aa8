package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// outboundBufferSize bounds a connection's outbound message channel.
// A slow client's writes are dropped rather than blocking the reactor
// goroutine, mirroring the teacher's broadcast bus: "if a subscriber's
// channel is full, the event is dropped for that subscriber."
const outboundBufferSize = 64

// Connection represents one websocket client (spec.md §3). Every
// field except send and the close machinery is owned exclusively by
// the reactor loop goroutine; send is a channel and safe to use from
// any goroutine.
type Connection struct {
	ID string

	send chan []byte

	// subscribedAddrs is the set of addresses this connection has
	// subscribed to, bounded by WSMaxSubsAddrsConn (spec.md §3).
	subscribedAddrs map[string]struct{}

	// channel is the named channel this connection belongs to, or ""
	// for the default broadcast set. A connection is in exactly one
	// of {default, a named channel} (spec.md §3 invariant).
	channel string

	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection() *Connection {
	return &Connection{
		ID:              uuid.NewString(),
		send:            make(chan []byte, outboundBufferSize),
		subscribedAddrs: make(map[string]struct{}),
		closed:          make(chan struct{}),
	}
}

// enqueue pushes payload onto the connection's outbound channel,
// dropping it if the client isn't draining fast enough.
func (c *Connection) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	case <-c.closed:
	default:
	}
}

// Close marks the connection closed, signalling its write pump to
// stop. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}
