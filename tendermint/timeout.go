package tendermint

import "time"

// TimeoutConfig holds the base/delta pair for one step's growing timeout:
// T_k(r) = base + r*delta (spec.md §4.3). Separate bases let propose
// (waiting on the network) run longer than prevote/precommit (waiting on
// local validators only).
type TimeoutConfig struct {
	Base  time.Duration
	Delta time.Duration
}

// Duration returns the timeout for round r under this config.
func (c TimeoutConfig) Duration(round uint32) time.Duration {
	return c.Base + time.Duration(round)*c.Delta
}

// Timeouts bundles the three per-step timeout schedules a driver uses.
type Timeouts struct {
	Propose   TimeoutConfig
	Prevote   TimeoutConfig
	Precommit TimeoutConfig
}

// DefaultTimeouts returns conservative growing timeouts suitable for a
// network with ~1 second block separation.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Propose:   TimeoutConfig{Base: 4 * time.Second, Delta: 500 * time.Millisecond},
		Prevote:   TimeoutConfig{Base: 2 * time.Second, Delta: 500 * time.Millisecond},
		Precommit: TimeoutConfig{Base: 2 * time.Second, Delta: 500 * time.Millisecond},
	}
}
