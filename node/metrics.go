package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/albatross-go/consensus/eventbus"
)

// metrics holds the Prometheus collectors a running Node exports.
// Registered against a private registry rather than the global default
// so that embedding more than one Node in a process (as the test suite
// does) never panics on a duplicate registration.
type metrics struct {
	registry *prometheus.Registry

	pushResults      *prometheus.CounterVec
	headBlockNumber  prometheus.Gauge
	currentEpoch     prometheus.Gauge
	validatorSetSize prometheus.Gauge
	tendermintRound  prometheus.Gauge
	tendermintStep   prometheus.Gauge
	productionDrift  prometheus.Gauge
}

func newMetrics(namespace string) *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		pushResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blockchain_push_results_total",
			Help:      "Count of Blockchain.Push outcomes by result.",
		}, []string{"result"}),
		headBlockNumber: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_head_block_number",
			Help:      "Block number of the current chain head.",
		}),
		currentEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_current_epoch",
			Help:      "Epoch index the chain head belongs to.",
		}),
		validatorSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validator_set_size",
			Help:      "Number of validators in the current epoch's set.",
		}),
		tendermintRound: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tendermint_round",
			Help:      "Round number of the macro block currently being finalized.",
		}),
		tendermintStep: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tendermint_step",
			Help:      "Step (0=propose, 1=prevote, 2=precommit) of the in-flight Tendermint round.",
		}),
		productionDrift: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_production_drift_ms",
			Help:      "Milliseconds between a block's expected production time and when it was observed extending the head.",
		}),
	}
}

// Registry exposes the Node's private Prometheus registry, for a caller
// to mount behind an HTTP /metrics handler.
func (n *Node) Registry() *prometheus.Registry {
	return n.metrics.registry
}

// observeEvent records a BlockchainEvent in the push-result counter.
func (m *metrics) observeEvent(ev eventbus.BlockchainEvent) {
	switch ev.Kind {
	case eventbus.Extended:
		m.pushResults.WithLabelValues("extended").Inc()
		m.headBlockNumber.Set(float64(ev.BlockNumber))
	case eventbus.Rebranched:
		m.pushResults.WithLabelValues("rebranched").Inc()
		m.headBlockNumber.Set(float64(ev.BlockNumber))
	case eventbus.Stored:
		m.pushResults.WithLabelValues("stored").Inc()
	case eventbus.Finalized:
		m.pushResults.WithLabelValues("finalized").Inc()
	case eventbus.EpochFinalized:
		m.currentEpoch.Set(float64(ev.Epoch))
	}
}

func (m *metrics) observeTendermintState(round uint32, step uint8) {
	m.tendermintRound.Set(float64(round))
	m.tendermintStep.Set(float64(step))
}

func (m *metrics) observeDrift(ms float64) {
	m.productionDrift.Set(ms)
}
