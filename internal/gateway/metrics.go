package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSource supplies the node-wide counters the dashboard:metrics
// broadcast reports (spec.md §4.4 "Metrics"; grounded on
// original_source/hathor/websocket/factory.py's
// _schedule_and_send_metric reading hathor.metrics.Metrics).
type MetricsSource interface {
	Snapshot() Snapshot
}

// Snapshot is one sample of node-wide metrics.
type Snapshot struct {
	Transactions    uint64
	Blocks          uint64
	BestBlockHeight uint64
	HashRate        float64
	BlockHashRate   float64
	TxHashRate      float64
	Peers           int
}

// prometheusGauges mirrors Snapshot's fields as Prometheus gauges, the
// pull-based sink the push-based websocket broadcast is dual-homed
// with (SPEC_FULL.md §4).
type prometheusGauges struct {
	transactions    prometheus.Gauge
	blocks          prometheus.Gauge
	bestBlockHeight prometheus.Gauge
	hashRate        prometheus.Gauge
	blockHashRate   prometheus.Gauge
	txHashRate      prometheus.Gauge
	networkHashRate prometheus.Gauge
	peers           prometheus.Gauge
}

func newPrometheusGauges(reg prometheus.Registerer) *prometheusGauges {
	g := &prometheusGauges{
		transactions:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "vertexd_transactions_total", Help: "Total accepted transactions."}),
		blocks:          prometheus.NewGauge(prometheus.GaugeOpts{Name: "vertexd_blocks_total", Help: "Total accepted blocks."}),
		bestBlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{Name: "vertexd_best_block_height", Help: "Height of the best known block."}),
		hashRate:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "vertexd_hash_rate", Help: "Overall mining hash rate."}),
		blockHashRate:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "vertexd_block_hash_rate", Help: "Block-mining hash rate."}),
		txHashRate:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "vertexd_tx_hash_rate", Help: "Transaction-mining hash rate."}),
		networkHashRate: prometheus.NewGauge(prometheus.GaugeOpts{Name: "vertexd_network_hash_rate", Help: "Combined network hash rate."}),
		peers:           prometheus.NewGauge(prometheus.GaugeOpts{Name: "vertexd_peers", Help: "Connected peer count."}),
	}
	if reg != nil {
		reg.MustRegister(g.transactions, g.blocks, g.bestBlockHeight, g.hashRate,
			g.blockHashRate, g.txHashRate, g.networkHashRate, g.peers)
	}
	return g
}

func (p *prometheusGauges) update(s Snapshot) {
	if p == nil {
		return
	}
	p.transactions.Set(float64(s.Transactions))
	p.blocks.Set(float64(s.Blocks))
	p.bestBlockHeight.Set(float64(s.BestBlockHeight))
	p.hashRate.Set(s.HashRate)
	p.blockHashRate.Set(s.BlockHashRate)
	p.txHashRate.Set(s.TxHashRate)
	p.networkHashRate.Set(s.TxHashRate + s.BlockHashRate)
	p.peers.Set(float64(s.Peers))
}

// StartMetrics begins the periodic dashboard:metrics broadcast, dual-
// homed to the websocket connections and to Prometheus (reg may be
// nil to skip Prometheus registration). Must be invoked on the
// reactor loop goroutine; it self-reschedules via loop.ScheduleLater
// for as long as StopMetrics has not been called, mirroring
// original_source's "if self.is_running: reactor.callLater(...)".
// If source is nil, nothing is broadcast, the Prometheus gauges are
// never updated, and no tick is scheduled.
func (g *Gateway) StartMetrics(source MetricsSource, reg prometheus.Registerer) {
	g.metricsSource = source
	g.prom = newPrometheusGauges(reg)
	g.metricsRunning = true
	g.broadcastMetricsTick()
}

// StopMetrics halts further rescheduling. An already-armed timer still
// fires once, but broadcastMetricsTick's running check makes it a no-op.
func (g *Gateway) StopMetrics() {
	g.metricsRunning = false
}

func (g *Gateway) broadcastMetricsTick() {
	if !g.metricsRunning || g.metricsSource == nil {
		return
	}

	snap := g.metricsSource.Snapshot()
	g.prom.update(snap)

	msg := map[string]any{
		"type":              "dashboard:metrics",
		"transactions":      snap.Transactions,
		"blocks":            snap.Blocks,
		"best_block_height": snap.BestBlockHeight,
		"hash_rate":         snap.HashRate,
		"block_hash_rate":   snap.BlockHashRate,
		"tx_hash_rate":      snap.TxHashRate,
		"network_hash_rate": snap.TxHashRate + snap.BlockHashRate,
		"peers":             snap.Peers,
		"time":              g.loop.Now().Unix(),
	}
	g.broadcastMessage(msg)

	g.loop.ScheduleLater(g.cfg.MetricsInterval(), g.broadcastMetricsTick)
}
