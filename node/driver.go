package node

import (
	"context"
	"fmt"

	"github.com/albatross-go/consensus/tendermint"
	"github.com/albatross-go/consensus/types"
	"github.com/albatross-go/consensus/vrf"
)

// VoteSigner signs this validator's own prevotes, precommits and the
// macro proposal it broadcasts, if any. Key material lives with the
// embedder (spec.md's wallet non-goal); Node only calls through this
// interface at the points TendermintDriver.Run needs a signature.
type VoteSigner interface {
	SignVote(round types.RoundNumber, step types.Step, proposalHash types.Hash) (types.SignedVote, error)
}

// RunMacroHeight drives one macro block's Tendermint round/step state
// machine to completion, wiring the driver's ProposerLookup and
// CommitSink to this Node's Blockchain and recording round/step
// transitions into the Node's metrics. It returns once a macro block
// has been committed or ctx is canceled.
//
// agg and signer are supplied by the embedder: agg runs the threshold
// aggregation protocol over the network, signer holds this validator's
// signing key. resumed restores an in-progress height after a restart,
// per the durable-vote rule; pass nil to start fresh at round 0.
func (n *Node) RunMacroHeight(
	ctx context.Context,
	blockNumber types.BlockNumber,
	resumed *tendermint.MacroState,
	agg tendermint.AggregationLayer,
	signer VoteSigner,
	proposals <-chan types.SignedProposal,
	parentSeed vrf.Seed,
) error {
	epoch := n.cfg.Policy.EpochAt(uint32(blockNumber))
	vs, err := n.chain.SlotAllocator().GetValidatorsForEpoch(epoch)
	if err != nil {
		return fmt.Errorf("node: resolve validator set for macro height %d: %w", blockNumber, err)
	}
	n.metrics.validatorSetSize.Set(float64(vs.Len()))

	disabled, err := n.chain.DisabledSlotsBefore(blockNumber)
	if err != nil {
		return fmt.Errorf("node: resolve disabled slots for macro height %d: %w", blockNumber, err)
	}

	persist := func(state *tendermint.MacroState) {
		n.metrics.observeTendermintState(uint32(state.RoundNumber), uint8(state.Step))
		n.logger.Debug("tendermint state transition", "state", state.String())
	}

	driver := tendermint.NewTendermintDriver(
		blockNumber,
		resumed,
		vs.TotalSlots(),
		agg,
		n.chain.SlotAllocator(),
		n.chain,
		persist,
		n.logger,
		disabled,
	)
	return driver.Run(ctx, signer.SignVote, proposals, parentSeed)
}
