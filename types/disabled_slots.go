package types

import (
	"github.com/OffchainLabs/go-bitfield"
)

// DisabledSlots is the set of slot indices carried in a macro block's
// body as next_batch_initial_punished_set, applied to slot selection in
// the following batch (spec.md §3.1).
type DisabledSlots struct {
	bits bitfield.Bitlist
}

// NewDisabledSlots builds a DisabledSlots covering [0, totalSlots) with
// every bit initially clear.
func NewDisabledSlots(totalSlots uint16) DisabledSlots {
	return DisabledSlots{bits: bitfield.NewBitlist(uint64(totalSlots))}
}

// Disable marks slotNumber as disabled.
func (d *DisabledSlots) Disable(slotNumber SlotNumber) {
	if uint64(slotNumber) < d.bits.Len() {
		d.bits.SetBitAt(uint64(slotNumber), true)
	}
}

// IsDisabled reports whether slotNumber is in the set.
func (d DisabledSlots) IsDisabled(slotNumber SlotNumber) bool {
	if d.bits == nil || uint64(slotNumber) >= d.bits.Len() {
		return false
	}
	return d.bits.BitAt(uint64(slotNumber))
}

// Len returns the number of slots this set has a bit for (its domain,
// not its disabled count).
func (d DisabledSlots) Len() int {
	if d.bits == nil {
		return 0
	}
	return int(d.bits.Len())
}

// Count returns how many slots are disabled.
func (d DisabledSlots) Count() int {
	if d.bits == nil {
		return 0
	}
	n := 0
	for i := uint64(0); i < d.bits.Len(); i++ {
		if d.bits.BitAt(i) {
			n++
		}
	}
	return n
}

// Raw exposes the underlying bitlist bytes for wire encoding.
func (d DisabledSlots) Raw() []byte {
	return d.bits
}

// DisabledSlotsFromRaw reconstructs a DisabledSlots from its wire bytes.
func DisabledSlotsFromRaw(raw []byte) DisabledSlots {
	return DisabledSlots{bits: bitfield.Bitlist(raw)}
}
