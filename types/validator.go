package types

import (
	"fmt"
	"sort"

	ssz "github.com/ferranbt/fastssz"
)

// SlotNumber identifies one of the policy.Slots voting units within an
// epoch's validator set.
type SlotNumber uint16

// ValidatorIndex identifies a validator's position within a ValidatorSet.
type ValidatorIndex uint16

// BlockNumber identifies a block's height in the chain.
type BlockNumber uint32

// RoundNumber identifies a Tendermint round (also used as the "offset"
// parameter of proposer selection — a failed round re-derives a new
// proposer for the same height).
type RoundNumber uint32

// PublicKey is a validator's BLS public key, used both for Tendermint
// vote aggregation and VRF seed verification.
type PublicKey [48]byte

// Validator is one member of an epoch's validator set.
type Validator struct {
	PublicKey PublicKey
	Address   [20]byte
	NumSlots  uint16
}

// slotBand is a precomputed, sorted [start, end) slot range owned by one
// validator, letting slot-to-validator lookups run in O(log n) instead of
// a linear scan (spec.md §9 re-architecture cue).
type slotBand struct {
	start, end     SlotNumber
	validatorIndex ValidatorIndex
}

// ValidatorSet is the ordered, immutable set of validators active for one
// epoch, installed only by that epoch's election macro block.
type ValidatorSet struct {
	validators []Validator
	bands      []slotBand // sorted by start, disjoint, exhaustive over [0, totalSlots)
	totalSlots uint16
}

// NewValidatorSet builds a ValidatorSet from validators in slot order:
// the first validator owns slots [0, validators[0].NumSlots), the second
// the next band, and so on. The bands must exactly cover [0, totalSlots).
func NewValidatorSet(validators []Validator) (*ValidatorSet, error) {
	if len(validators) == 0 {
		return nil, fmt.Errorf("types: validator set must not be empty")
	}

	bands := make([]slotBand, len(validators))
	var cursor SlotNumber
	for i, v := range validators {
		if v.NumSlots == 0 {
			return nil, fmt.Errorf("types: validator %d has zero slots", i)
		}
		bands[i] = slotBand{
			start:          cursor,
			end:            cursor + SlotNumber(v.NumSlots),
			validatorIndex: ValidatorIndex(i),
		}
		cursor += SlotNumber(v.NumSlots)
	}

	return &ValidatorSet{
		validators: append([]Validator(nil), validators...),
		bands:      bands,
		totalSlots: uint16(cursor),
	}, nil
}

// Len returns the number of validators in the set.
func (vs *ValidatorSet) Len() int {
	return len(vs.validators)
}

// TotalSlots returns the slot count covered by this set.
func (vs *ValidatorSet) TotalSlots() uint16 {
	return vs.totalSlots
}

// Validator returns the validator at idx.
func (vs *ValidatorSet) Validator(idx ValidatorIndex) (Validator, bool) {
	if int(idx) >= len(vs.validators) {
		return Validator{}, false
	}
	return vs.validators[idx], true
}

// GetBandFromSlot returns the [start, end) band containing slotNumber.
func (vs *ValidatorSet) GetBandFromSlot(slotNumber SlotNumber) (start, end SlotNumber, ok bool) {
	i := sort.Search(len(vs.bands), func(i int) bool {
		return vs.bands[i].end > slotNumber
	})
	if i == len(vs.bands) || vs.bands[i].start > slotNumber {
		return 0, 0, false
	}
	return vs.bands[i].start, vs.bands[i].end, true
}

// GetValidatorBySlot returns the validator owning slotNumber and its
// index, via binary search over the precomputed slot bands.
func (vs *ValidatorSet) GetValidatorBySlot(slotNumber SlotNumber) (Validator, ValidatorIndex, bool) {
	i := sort.Search(len(vs.bands), func(i int) bool {
		return vs.bands[i].end > slotNumber
	})
	if i == len(vs.bands) || vs.bands[i].start > slotNumber {
		return Validator{}, 0, false
	}
	band := vs.bands[i]
	return vs.validators[band.validatorIndex], band.validatorIndex, true
}

// CommitmentRoot merkleizes the set's validator public keys with
// fastssz's Hasher, producing a commitment over the set; nothing in this
// module writes it into a block's BodyRoot. The limit bounds the tree depth so the root is
// stable even as the live validator count within an epoch never changes
// (the set is immutable once installed, per spec.md §3.2) but callers may
// still want to hash partial/candidate sets against the same depth.
func (vs *ValidatorSet) CommitmentRoot(limit uint64) (Hash, error) {
	hh := ssz.NewHasher()
	indx := hh.Index()
	for _, v := range vs.validators {
		hh.PutBytes(v.PublicKey[:])
	}
	hh.MerkleizeWithMixin(indx, uint64(len(vs.validators)), limit)
	root, err := hh.HashRoot()
	if err != nil {
		return Hash{}, fmt.Errorf("hash validator set root: %w", err)
	}
	return Hash(root), nil
}
