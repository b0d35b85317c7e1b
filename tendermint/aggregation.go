package tendermint

import (
	"context"

	"github.com/OffchainLabs/go-bitfield"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/albatross-go/consensus/types"
)

// AggregateContribution is one (possibly partial) threshold-signature
// aggregate for a given round/step: the bitset of contributing slots
// plus the aggregated BLS signature over their common vote. Contributing
// slots' votes must agree on ProposalHash for a contribution to be valid.
type AggregateContribution struct {
	Round        types.RoundNumber
	Step         types.Step
	ProposalHash types.Hash
	Signers      bitfield.Bitlist
	Signature    [96]byte
	// LastContributor identifies the peer whose vote most recently
	// improved this contribution, carried for metrics/logging only
	// (spec.md §4.4's aggregator itself is transport-agnostic); the zero
	// peer.ID means the contribution was formed locally, before any
	// remote vote arrived.
	LastContributor peer.ID
}

// SignerCount returns how many slots contributed to this aggregate.
func (c *AggregateContribution) SignerCount() int {
	n := 0
	for i := uint64(0); i < c.Signers.Len(); i++ {
		if c.Signers.BitAt(i) {
			n++
		}
	}
	return n
}

// meetsThreshold reports whether this contribution covers at least
// two-thirds of totalSlots, the quorum Tendermint requires to advance a
// step or finalize a block.
func (c *AggregateContribution) meetsThreshold(totalSlots uint16) bool {
	return 3*c.SignerCount() >= 2*int(totalSlots)
}

// skipThreshold reports whether a contribution FROM A LATER ROUND alone
// proves at least one-third of slots have moved past the driver's
// current round, justifying an immediate round skip. Unused by the
// minimal single-round-at-a-time driver below, which instead skips on
// timeout only; kept for an aggregation layer that tracks multiple
// rounds concurrently and wants to feed skip evidence back in.
func (c *AggregateContribution) skipThreshold(totalSlots uint16) bool {
	return 3*c.SignerCount() >= int(totalSlots)
}

// AggregationLayer is the threshold-signature aggregator the driver
// delegates vote collection to; the real implementation runs an
// independent gossip/aggregation protocol over the network and is an
// external collaborator to this package (spec.md §4.4).
type AggregationLayer interface {
	// Start begins aggregating votes for (round, step), broadcasting
	// ourVote as this validator's own contribution, and streams
	// monotonically-improving contributions on the returned channel
	// until ctx is canceled. Contributions never regress in slot
	// coverage.
	Start(ctx context.Context, round types.RoundNumber, step types.Step, ourVote types.SignedVote) (<-chan *AggregateContribution, error)
	// Best returns the best contribution observed so far for
	// (round, step), or nil if none has arrived yet.
	Best(round types.RoundNumber, step types.Step) *AggregateContribution
}
