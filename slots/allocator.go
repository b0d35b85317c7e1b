// Package slots implements validator-slot selection: deriving which of
// an epoch's policy.Slots bands is due to produce a given block, and
// resolving that slot to a concrete validator while honoring the
// previous batch's disabled-slot set.
package slots

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/albatross-go/consensus/policy"
	"github.com/albatross-go/consensus/types"
	"github.com/albatross-go/consensus/vrf"
)

// ErrNoValidatorsFound is returned when every slot the selection
// algorithm lands on is disabled, which should only be reachable if the
// disabled set covers the entire validator set (policy violation).
var ErrNoValidatorsFound = errors.New("slots: no eligible validator for this selection")

// ErrInvalidEpoch is returned when the caller asks for a validator set
// belonging to an epoch that has no election block recorded yet.
var ErrInvalidEpoch = errors.New("slots: validator set for epoch is not available")

// EpochValidators resolves an epoch index to the ValidatorSet installed
// by that epoch's election block. Implemented by the blockchain's
// history view; kept as an interface here so SlotAllocator has no
// dependency on chain storage.
type EpochValidators interface {
	ValidatorSetForEpoch(epoch uint32) (*types.ValidatorSet, error)
}

// SlotAllocator computes which validator is due to produce the block at
// a given (blockNumber, offset) pair, per spec.md §4.1: the selection
// seed mixes the parent block's VRF entropy with the block number and
// offset (Tendermint round, for micro blocks always 0), then reduces
// modulo the epoch's total slot count, skipping disabled slots.
type SlotAllocator struct {
	cfg        policy.Config
	validators EpochValidators
}

// NewSlotAllocator builds a SlotAllocator over cfg's batch/epoch
// boundaries, resolving validator sets through validators.
func NewSlotAllocator(cfg policy.Config, validators EpochValidators) *SlotAllocator {
	return &SlotAllocator{cfg: cfg, validators: validators}
}

// ComputeSlotNumber derives the slot due to produce blockNumber at the
// given offset (round), mixing entropy from the parent block's seed. It
// panics if disabled covers every slot in the set: policy guarantees at
// most a minority of slots are ever disabled simultaneously, so this
// indicates a caller built an invalid DisabledSlots rather than a
// reachable runtime condition.
func (a *SlotAllocator) ComputeSlotNumber(blockNumber uint32, offset uint32, parentSeed vrf.Seed, disabled types.DisabledSlots) (types.SlotNumber, error) {
	vs, err := a.validatorSetFor(blockNumber)
	if err != nil {
		return 0, err
	}

	totalSlots := vs.TotalSlots()
	if disabled.Count() >= int(totalSlots) {
		panic(fmt.Sprintf("slots: disabled set covers all %d slots at block %d", totalSlots, blockNumber))
	}

	entropy := parentSeed.Entropy()
	candidate := slotSeed(entropy, blockNumber, offset) % uint64(totalSlots)

	// A disabled slot's duty rolls forward to the next enabled slot,
	// wrapping around the slot space.
	for i := uint64(0); i < uint64(totalSlots); i++ {
		slot := types.SlotNumber((candidate + i) % uint64(totalSlots))
		if !disabled.IsDisabled(slot) {
			return slot, nil
		}
	}
	return 0, ErrNoValidatorsFound
}

// GetProposer resolves the validator (and its index) due to produce
// blockNumber at offset, applying disabled to the selection.
func (a *SlotAllocator) GetProposer(blockNumber uint32, offset uint32, parentSeed vrf.Seed, disabled types.DisabledSlots) (types.Validator, types.ValidatorIndex, error) {
	slot, err := a.ComputeSlotNumber(blockNumber, offset, parentSeed, disabled)
	if err != nil {
		return types.Validator{}, 0, err
	}

	vs, err := a.validatorSetFor(blockNumber)
	if err != nil {
		return types.Validator{}, 0, err
	}

	validator, idx, ok := vs.GetValidatorBySlot(slot)
	if !ok {
		return types.Validator{}, 0, fmt.Errorf("slots: slot %d has no owning validator", slot)
	}
	return validator, idx, nil
}

// GetValidatorsForEpoch returns the validator set installed for epoch.
func (a *SlotAllocator) GetValidatorsForEpoch(epoch uint32) (*types.ValidatorSet, error) {
	vs, err := a.validators.ValidatorSetForEpoch(epoch)
	if err != nil {
		return nil, fmt.Errorf("%w: epoch %d: %v", ErrInvalidEpoch, epoch, err)
	}
	return vs, nil
}

func (a *SlotAllocator) validatorSetFor(blockNumber uint32) (*types.ValidatorSet, error) {
	epoch := a.cfg.EpochAt(blockNumber)
	return a.GetValidatorsForEpoch(epoch)
}

// slotSeed mixes entropy with the block number and offset into a single
// uint64 selection value, via the project's blake2b hash.
func slotSeed(entropy vrf.Entropy, blockNumber uint32, offset uint32) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], blockNumber)
	binary.BigEndian.PutUint32(buf[4:8], offset)

	mixed := types.HashBytes(append(entropy.Bytes(), buf[:]...))
	return binary.BigEndian.Uint64(mixed[:8])
}
