// Package clock bridges wall-clock time to block numbers for Albatross's
// fixed block-separation schedule. Every node must agree on when a
// given block number is due in order to know whether a slot's proposer
// is late, and to space out micro block production.
package clock

import (
	"time"

	"github.com/albatross-go/consensus/policy"
	"github.com/albatross-go/consensus/types"
)

// BlockClock converts wall-clock time to block numbers using
// policy.Config.BlockSeparationTime as the fixed spacing between
// consecutive micro blocks. All time values are Unix milliseconds.
type BlockClock struct {
	GenesisTime uint64 // Unix milliseconds when block 0 was produced
	separation  uint64
	timeFunc    func() time.Time
}

// New creates a BlockClock for cfg's block-separation time, anchored at
// genesisTime (Unix milliseconds).
func New(cfg policy.Config, genesisTime uint64) *BlockClock {
	return &BlockClock{GenesisTime: genesisTime, separation: cfg.BlockSeparationTime, timeFunc: time.Now}
}

// NewWithTimeFunc creates a BlockClock with an injectable time source, for tests.
func NewWithTimeFunc(cfg policy.Config, genesisTime uint64, timeFunc func() time.Time) *BlockClock {
	return &BlockClock{GenesisTime: genesisTime, separation: cfg.BlockSeparationTime, timeFunc: timeFunc}
}

func (c *BlockClock) millisSinceGenesis() uint64 {
	now := uint64(c.timeFunc().UnixMilli())
	if now < c.GenesisTime {
		return 0
	}
	return now - c.GenesisTime
}

// CurrentBlockNumber returns the block number due to be produced right
// now, 0 if called before genesis.
func (c *BlockClock) CurrentBlockNumber() types.BlockNumber {
	return types.BlockNumber(c.millisSinceGenesis() / c.separation)
}

// ExpectedTimestamp returns the Unix millisecond timestamp blockNumber
// is due at.
func (c *BlockClock) ExpectedTimestamp(blockNumber types.BlockNumber) uint64 {
	return c.GenesisTime + uint64(blockNumber)*c.separation
}

// IsBeforeGenesis reports whether the current time precedes GenesisTime.
func (c *BlockClock) IsBeforeGenesis() bool {
	return uint64(c.timeFunc().UnixMilli()) < c.GenesisTime
}
