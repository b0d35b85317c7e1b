package blockchain

import (
	"fmt"

	"github.com/albatross-go/consensus/types"
)

// ChainHead is the in-memory projection of the chain's current tip:
// everything Push needs to decide proposer eligibility and fork choice
// without round-tripping through the chain store on every call.
type ChainHead struct {
	Head           types.Checkpoint
	LastMacroBlock types.Checkpoint
	CurrentEpoch   uint32

	// CurrentSlots is the validator set for CurrentEpoch; PreviousSlots is
	// the set for CurrentEpoch-1. Both are installed only by an election
	// macro block (spec.md §3.2); older epochs are read back through the
	// chain store.
	CurrentSlots  *types.ValidatorSet
	PreviousSlots *types.ValidatorSet
}

// validatorSetForEpoch implements the get_validators_for_epoch operation:
// the two most recent epochs are served from the in-memory head, older
// ones by loading their election block's validator set from store.
func (bc *Blockchain) validatorSetForEpoch(epoch uint32) (*types.ValidatorSet, error) {
	switch {
	case epoch == bc.head.CurrentEpoch:
		if bc.head.CurrentSlots == nil {
			return nil, ErrNoValidatorsFound
		}
		return bc.head.CurrentSlots, nil
	case epoch+1 == bc.head.CurrentEpoch:
		if bc.head.PreviousSlots == nil {
			return nil, ErrNoValidatorsFound
		}
		return bc.head.PreviousSlots, nil
	case epoch == 0:
		return nil, ErrInvalidEpoch
	default:
		vs, err := bc.store.GetValidatorSet(epoch)
		if err != nil {
			return nil, fmt.Errorf("blockchain: load validator set for epoch %d: %w", epoch, err)
		}
		return vs, nil
	}
}

// ValidatorSetForEpoch implements slots.EpochValidators under the read
// lock, so the SlotAllocator can be shared by Push and the
// TendermintDriver without either holding Blockchain's lock itself.
func (bc *Blockchain) ValidatorSetForEpoch(epoch uint32) (*types.ValidatorSet, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.validatorSetForEpoch(epoch)
}

// advanceEpoch installs vs as the current epoch's validator set, demoting
// the previous current set to PreviousSlots. Called only when adopting an
// election macro block, under the writer lock.
func (bc *Blockchain) advanceEpoch(newEpoch uint32, vs *types.ValidatorSet) {
	bc.head.PreviousSlots = bc.head.CurrentSlots
	bc.head.CurrentSlots = vs
	bc.head.CurrentEpoch = newEpoch
}
