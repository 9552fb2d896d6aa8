// Package gateway owns the set of live websocket connections, the
// per-channel and per-address subscription indices, the per-type
// buffer deques, the metrics broadcaster, and the send/enqueue/drain
// state machine (spec.md §4.4). Grounded on the wire-message and
// read/write-pump idioms of
// _examples/nugget-thane-ai-agent/internal/homeassistant/websocket.go,
// adapted from a client-side dialer to a server-side
// websocket.Upgrader, and on the state machine of
// original_source/hathor/websocket/factory.py.
//
// Every exported method that mutates gateway state (Connect,
// Disconnect, HandleClientMessage, the pub/sub handler, drain-timer
// callbacks) assumes it runs on the reactor loop's goroutine — callers
// from any other goroutine must route through loop.SubmitFromWorker or
// loop.ScheduleLater first. This mirrors spec.md §9's "Global
// settings"/"Reactor thread detection" notes: no internal locking
// guards this state because exactly one goroutine ever touches it.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vertexledger/node/internal/config"
	"github.com/vertexledger/node/internal/pubsub"
	"github.com/vertexledger/node/internal/ratelimit"
	"github.com/vertexledger/node/internal/reactor"
)

// WalletIndex reports whether an address has any recorded ledger
// history, used by the subscription cap to count "empty" addresses
// (spec.md §3, WS_MAX_SUBS_ADDRS_EMPTY; original_source's
// _count_empty helper).
type WalletIndex interface {
	HasHistory(address string) bool
}

// publishedKinds is the set of event kinds the gateway forwards to
// clients, ported from HathorAdminWebsocketFactory.subscribe in
// original_source/hathor/websocket/factory.py.
var publishedKinds = []pubsub.EventKind{
	pubsub.NetworkNewTxAccepted,
	pubsub.WalletOutputReceived,
	pubsub.WalletInputSpent,
	pubsub.WalletBalanceUpdated,
	pubsub.WalletKeysGenerated,
	pubsub.WalletGapLimit,
	pubsub.WalletHistoryUpdated,
	pubsub.WalletAddressHistory,
	pubsub.WalletElementWinner,
	pubsub.WalletElementVoided,
}

// Gateway is the websocket event gateway. Construct with New.
type Gateway struct {
	cfg     *config.Config
	loop    *reactor.Loop
	bus     *pubsub.Bus
	limiter *ratelimit.Limiter
	index   WalletIndex
	logger  *slog.Logger

	upgrader websocket.Upgrader

	connections        map[*Connection]struct{}
	channelConnections map[string]map[*Connection]struct{}
	addressConnections map[string]map[*Connection]struct{}

	deques     map[pubsub.EventKind]*bufferDeque
	drainArmed map[pubsub.EventKind]bool

	metricsSource  MetricsSource
	prom           *prometheusGauges
	metricsRunning bool
}

// New creates a Gateway bound to cfg's CONTROLLED_TYPES/CHANNELS
// tables. index may be nil if the WS_MAX_SUBS_ADDRS_EMPTY check should
// be skipped (no wallet index wired yet).
func New(cfg *config.Config, loop *reactor.Loop, bus *pubsub.Bus, limiter *ratelimit.Limiter, index WalletIndex, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		cfg:     cfg,
		loop:    loop,
		bus:     bus,
		limiter: limiter,
		index:   index,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		connections:        make(map[*Connection]struct{}),
		channelConnections: make(map[string]map[*Connection]struct{}),
		addressConnections: make(map[string]map[*Connection]struct{}),
		deques:             make(map[pubsub.EventKind]*bufferDeque),
		drainArmed:         make(map[pubsub.EventKind]bool),
	}

	for kind, ct := range cfg.ControlledTypes {
		limiter.SetLimit(kind, ct.MaxHits, ct.HitsWindow())
		g.deques[pubsub.EventKind(kind)] = newBufferDeque(ct.BufferSize)
	}

	for _, kind := range publishedKinds {
		g.bus.Subscribe(kind, "gateway", g.handlePublish)
	}

	return g
}

// handlePublish is the bus subscription callback; by the time it
// runs, pubsub.Bus's dispatch policy has already ensured it executes
// on the reactor loop goroutine (or synchronously pre-boot via
// PublishNow), so it mutates gateway state directly.
func (g *Gateway) handlePublish(event pubsub.Event) {
	msg, err := Serialize(g.cfg.HathorTokenUID, event)
	if err != nil {
		g.logger.Error("serialize event failed", "kind", event.Kind, "err", err)
		return
	}
	g.sendOrEnqueue(msg)
}

// ServeWS upgrades r to a websocket connection and runs its pumps
// until the client disconnects. Intended as an http.HandlerFunc.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	conn := newConnection()
	g.loop.SubmitFromWorker(func() { g.Connect(conn) })

	go g.writePump(wsConn, conn)
	g.readPump(wsConn, conn)
}

func (g *Gateway) writePump(wsConn *websocket.Conn, conn *Connection) {
	defer wsConn.Close()
	for {
		select {
		case payload, ok := <-conn.send:
			if !ok {
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-conn.closed:
			return
		}
	}
}

func (g *Gateway) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		conn.Close()
		g.loop.SubmitFromWorker(func() { g.Disconnect(conn) })
	}()

	for {
		_, raw, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		g.logger.Log(context.Background(), config.LevelTrace, "websocket frame received", "conn", conn.ID, "bytes", len(raw))
		msg := raw
		g.loop.SubmitFromWorker(func() { g.HandleClientMessage(conn, msg) })
	}
}

// Connect registers conn in the default broadcast set (spec.md §3
// Connection lifecycle). Must run on the reactor loop goroutine.
func (g *Gateway) Connect(conn *Connection) {
	g.connections[conn] = struct{}{}
}

// Disconnect removes conn from every index atomically from the
// reactor's viewpoint (spec.md §3 "removes the connection from every
// index atomically"; original_source's connection_closed). Must run
// on the reactor loop goroutine.
func (g *Gateway) Disconnect(conn *Connection) {
	delete(g.connections, conn)

	for addr := range conn.subscribedAddrs {
		g.removeFromAddress(conn, addr)
	}

	if conn.channel != "" {
		if set, ok := g.channelConnections[conn.channel]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(g.channelConnections, conn.channel)
			}
		}
	}
}

func (g *Gateway) removeFromAddress(conn *Connection, addr string) {
	set, ok := g.addressConnections[addr]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(g.addressConnections, addr)
	}
}

// HandleClientMessage dispatches an inbound client frame (spec.md §6;
// original_source's handle_message). Must run on the reactor loop
// goroutine.
func (g *Gateway) HandleClientMessage(conn *Connection, raw []byte) {
	var msg struct {
		Type    string `json:"type"`
		Address string `json:"address"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.logger.Debug("malformed client message", "conn", conn.ID, "err", err)
		return
	}

	switch msg.Type {
	case "ping":
		g.handlePing(conn)
	case "subscribe_address":
		g.handleSubscribeAddress(conn, msg.Address)
	case "unsubscribe_address":
		g.handleUnsubscribeAddress(conn, msg.Address)
	case "subscribe":
		g.handleSubscribeChannel(conn, msg.Channel)
	}
}

func (g *Gateway) handlePing(conn *Connection) {
	g.replyTo(conn, map[string]any{"type": "pong"})
}

func (g *Gateway) handleSubscribeAddress(conn *Connection, addr string) {
	if _, already := conn.subscribedAddrs[addr]; already {
		g.replyTo(conn, map[string]any{"type": "subscribe_address", "success": true})
		return
	}

	if len(conn.subscribedAddrs) >= g.cfg.WSMaxSubsAddrsConn {
		g.replyTo(conn, map[string]any{
			"type":    "subscribe_address",
			"success": false,
			"message": "Reached maximum number of subscribed addresses.",
		})
		return
	}

	if g.index != nil && g.countEmpty(conn.subscribedAddrs) >= g.cfg.WSMaxSubsAddrsEmpty {
		g.replyTo(conn, map[string]any{
			"type":    "subscribe_address",
			"success": false,
			"message": "Reached maximum number of subscribed addresses without output.",
		})
		return
	}

	conn.subscribedAddrs[addr] = struct{}{}
	if g.addressConnections[addr] == nil {
		g.addressConnections[addr] = make(map[*Connection]struct{})
	}
	g.addressConnections[addr][conn] = struct{}{}

	g.replyTo(conn, map[string]any{"type": "subscribe_address", "success": true})
}

func (g *Gateway) countEmpty(addrs map[string]struct{}) int {
	n := 0
	for addr := range addrs {
		if !g.index.HasHistory(addr) {
			n++
		}
	}
	return n
}

func (g *Gateway) handleUnsubscribeAddress(conn *Connection, addr string) {
	if _, ok := conn.subscribedAddrs[addr]; !ok {
		return
	}
	delete(conn.subscribedAddrs, addr)
	g.removeFromAddress(conn, addr)
	g.replyTo(conn, map[string]any{"type": "unsubscribe_address", "success": true})
}

// handleSubscribeChannel moves conn from the default broadcast set (or
// from the channel it joined before) into channel's subscriber set.
// This removal from the default set is
// terminal until disconnect: there is no unsubscribe-channel message
// in the wire protocol (original_source never defines one), so a
// connection that joins a channel stays out of default broadcast for
// its whole lifetime (Design Notes §9).
func (g *Gateway) handleSubscribeChannel(conn *Connection, channel string) {
	if _, known := g.cfg.Channels[channel]; known {
		delete(g.connections, conn)
		if prev := conn.channel; prev != "" && prev != channel {
			if set, ok := g.channelConnections[prev]; ok {
				delete(set, conn)
				if len(set) == 0 {
					delete(g.channelConnections, prev)
				}
			}
		}
		if g.channelConnections[channel] == nil {
			g.channelConnections[channel] = make(map[*Connection]struct{})
		}
		g.channelConnections[channel][conn] = struct{}{}
		conn.channel = channel
	}
	g.replyTo(conn, map[string]any{"type": "subscribed", "channel": channel, "success": true})
}

func (g *Gateway) replyTo(conn *Connection, msg map[string]any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		g.logger.Error("marshal reply failed", "err", err)
		return
	}
	conn.enqueue(payload)
}

// sendOrEnqueue tries to broadcast msg, or enqueues it when the rate
// limit is exceeded or a drain is already pending (spec.md §4.4;
// original_source's send_or_enqueue). Must run on the reactor loop
// goroutine.
func (g *Gateway) sendOrEnqueue(msg map[string]any) {
	kind := pubsub.EventKind(msg["type"].(string))

	if deque, controlled := g.deques[kind]; controlled {
		if deque.len() > 0 || !g.limiter.AddHit(string(kind)) {
			g.enqueueForLater(kind, msg)
		} else {
			msg["throttled"] = false
			g.sendMessage(kind, msg)
		}
	} else {
		g.sendMessage(kind, msg)
	}

	for _, channel := range channelsFor(g.cfg, kind) {
		g.sendMessageChannel(channel, msg)
	}
}

// enqueueForLater pushes msg onto kind's deque, arming exactly one
// drain timer for the empty-to-non-empty transition (spec.md §3
// invariant: "at most one pending drain timer for k").
func (g *Gateway) enqueueForLater(kind pubsub.EventKind, msg map[string]any) {
	msg["throttled"] = true
	deque := g.deques[kind]
	if deque.push(msg) {
		g.logger.Debug("buffer deque dropped oldest message", "kind", kind)
	}

	if !g.drainArmed[kind] {
		g.drainArmed[kind] = true
		delay := g.cfg.ControlledTypes[string(kind)].TimeBuffering()
		g.loop.ScheduleLater(delay, func() { g.processDeque(kind) })
	}
}

// processDeque drains kind's deque while the rate limit admits,
// rescheduling itself if the limit is hit before the deque empties
// (spec.md §4.4; original_source's process_deque). Must run on the
// reactor loop goroutine.
func (g *Gateway) processDeque(kind pubsub.EventKind) {
	deque := g.deques[kind]
	for deque.len() > 0 {
		if !g.limiter.AddHit(string(kind)) {
			delay := g.cfg.ControlledTypes[string(kind)].TimeBuffering()
			g.loop.ScheduleLater(delay, func() { g.processDeque(kind) })
			return
		}
		msg, _ := deque.popFront()
		if deque.len() == 0 {
			msg["throttled"] = false
		}
		g.sendMessage(kind, msg)
	}
	g.drainArmed[kind] = false
}

// sendMessage routes msg to either its address subscribers or the
// broadcast set (spec.md §4.4; original_source's send_message).
func (g *Gateway) sendMessage(kind pubsub.EventKind, msg map[string]any) {
	if isAddressEvent(g.cfg, kind) {
		addr, _ := msg["address"].(string)
		if conns, ok := g.addressConnections[addr]; ok {
			g.executeSend(msg, conns)
		}
		return
	}
	g.broadcastMessage(msg)
}

func (g *Gateway) broadcastMessage(msg map[string]any) {
	g.executeSend(msg, g.connections)
}

func (g *Gateway) sendMessageChannel(channel string, msg map[string]any) {
	g.executeSend(msg, g.channelConnections[channel])
}

func (g *Gateway) executeSend(msg map[string]any, conns map[*Connection]struct{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		g.logger.Error("marshal outbound message failed", "err", err)
		return
	}
	for conn := range conns {
		conn.enqueue(payload)
	}
}

// ConnectionCount returns the number of connections in the default
// broadcast set. Exposed for metrics and tests.
func (g *Gateway) ConnectionCount() int {
	return len(g.connections)
}
