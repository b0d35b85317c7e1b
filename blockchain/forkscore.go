package blockchain

import (
	"fmt"

	"github.com/albatross-go/consensus/chainstore"
	"github.com/albatross-go/consensus/types"
)

// ForkScore orders two competing branch tips, macro height first and
// accumulated slot weight as the tiebreaker (spec.md §4.2's fork choice
// rule; the exact metric was left to be fixed by test vectors, resolved
// here as macro-height-then-weight, see DESIGN.md).
type ForkScore struct {
	// MacroHeight is the block number of the most recent macro block on
	// the branch leading to the tip this score was computed for.
	MacroHeight types.BlockNumber
	// SlotWeight is the number of micro blocks produced since
	// MacroHeight: a proxy for "rounds of live validator participation"
	// since the last finalized checkpoint, used only to break ties
	// between branches sharing the same macro height.
	SlotWeight uint64
}

// Less reports whether s sorts strictly before other, i.e. other is the
// heavier branch.
func (s ForkScore) Less(other ForkScore) bool {
	if s.MacroHeight != other.MacroHeight {
		return s.MacroHeight < other.MacroHeight
	}
	return s.SlotWeight < other.SlotWeight
}

// Equal reports whether the two scores tie exactly.
func (s ForkScore) Equal(other ForkScore) bool {
	return s.MacroHeight == other.MacroHeight && s.SlotWeight == other.SlotWeight
}

// computeForkScore walks the chain backward from tip until it reaches a
// macro block (inclusive), counting the micro blocks traversed. maxDepth
// bounds the walk to one batch's worth of blocks, since a macro block
// appears at least that often by construction.
func computeForkScore(store chainstore.ChainStore, tip types.Hash, maxDepth uint32) (ForkScore, error) {
	cursor := tip
	var weight uint64

	for i := uint32(0); i <= maxDepth; i++ {
		block, err := store.GetBlock(cursor)
		if err != nil {
			return ForkScore{}, fmt.Errorf("blockchain: walk fork score from %s: %w", tip.Short(), err)
		}

		if block.Kind() == types.KindMacro {
			return ForkScore{MacroHeight: block.BlockNumber(), SlotWeight: weight}, nil
		}

		weight++
		if block.BlockNumber() == 0 {
			// Genesis is always treated as a macro checkpoint.
			return ForkScore{MacroHeight: 0, SlotWeight: weight}, nil
		}
		cursor = block.ParentHash()
	}

	return ForkScore{}, fmt.Errorf("blockchain: fork score walk from %s exceeded batch length without finding a macro block", tip.Short())
}
