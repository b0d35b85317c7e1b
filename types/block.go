package types

import (
	"fmt"

	"github.com/albatross-go/consensus/wire"
	"github.com/albatross-go/consensus/vrf"
)

// BlockKind distinguishes micro from macro blocks.
type BlockKind uint8

const (
	KindMicro BlockKind = iota
	KindMacro
)

func (k BlockKind) String() string {
	if k == KindMacro {
		return "macro"
	}
	return "micro"
}

// MicroHeader is the header of a block produced by a single slot
// proposer within a batch.
type MicroHeader struct {
	BlockNumber BlockNumber
	ParentHash  Hash
	Seed        vrf.Seed
	Timestamp   uint64
	BodyRoot    Hash
	StateRoot   Hash
	ProposerSlot SlotNumber
}

// MicroBody carries a micro block's transactions and any equivocation
// proofs the proposer chose to include.
type MicroBody struct {
	Transactions       [][]byte
	EquivocationProofs []EquivocationProof
}

// MacroHeader is the header of a batch-closing (and, for election
// blocks, epoch-closing) macro block.
type MacroHeader struct {
	BlockNumber BlockNumber
	ParentHash  Hash
	Seed        vrf.Seed
	Timestamp   uint64
	BodyRoot    Hash
	StateRoot   Hash
	HistoryRoot Hash
	// IsElection is true when this macro block is also the epoch's
	// election block; BatchLength/BatchesPerEpoch make it derivable from
	// BlockNumber alone, but it is carried explicitly on the wire so a
	// light client need not know the policy constants to interpret it.
	IsElection bool
}

// MacroBody carries a macro block's validator-set transition (for
// election blocks) and the disabled-slot set for the following batch.
type MacroBody struct {
	// NextBatchInitialPunishedSet holds the slot indices disabled for
	// proposer/voter selection in the batch that follows this macro
	// block (spec.md §3.1 DisabledSlots).
	NextBatchInitialPunishedSet DisabledSlots
	// NextValidators is populated only on election blocks.
	NextValidators []Validator
}

// Block is a tagged union over MicroHeader/MicroBody and
// MacroHeader/MacroBody, matching the Rust source's Block enum. Kind
// reports which payload is valid; Micro/Macro panic on a kind mismatch,
// the same contract the original's unwrap_macro()/unwrap_micro() give
// callers who have already checked Kind().
type Block struct {
	kind  BlockKind
	micro *MicroHeader
	mbody *MicroBody
	macro *MacroHeader
	macroBody *MacroBody
}

// NewMicroBlock builds a Block wrapping a micro header/body pair.
func NewMicroBlock(h MicroHeader, b MicroBody) Block {
	return Block{kind: KindMicro, micro: &h, mbody: &b}
}

// NewMacroBlock builds a Block wrapping a macro header/body pair.
func NewMacroBlock(h MacroHeader, b MacroBody) Block {
	return Block{kind: KindMacro, macro: &h, macroBody: &b}
}

// Kind reports which payload this Block carries.
func (b Block) Kind() BlockKind {
	return b.kind
}

// Micro returns the micro header and body. It panics if Kind() != KindMicro.
func (b Block) Micro() (MicroHeader, MicroBody) {
	if b.kind != KindMicro {
		panic("types: Micro() called on a macro block")
	}
	return *b.micro, *b.mbody
}

// Macro returns the macro header and body. It panics if Kind() != KindMacro.
func (b Block) Macro() (MacroHeader, MacroBody) {
	if b.kind != KindMacro {
		panic("types: Macro() called on a micro block")
	}
	return *b.macro, *b.macroBody
}

// BlockNumber returns the block's height regardless of kind.
func (b Block) BlockNumber() BlockNumber {
	if b.kind == KindMacro {
		return b.macro.BlockNumber
	}
	return b.micro.BlockNumber
}

// ParentHash returns the block's declared parent hash regardless of kind.
func (b Block) ParentHash() Hash {
	if b.kind == KindMacro {
		return b.macro.ParentHash
	}
	return b.micro.ParentHash
}

// Seed returns the block's VRF seed regardless of kind.
func (b Block) Seed() vrf.Seed {
	if b.kind == KindMacro {
		return b.macro.Seed
	}
	return b.micro.Seed
}

// HeaderHash computes the block header's canonical wire encoding and
// hashes it with Blake2b — the stable wire identifier spec.md §6
// describes. Body fields are hashed separately into BodyRoot and only
// referenced here, matching the header/body split of the wire format.
func (b Block) HeaderHash() (Hash, error) {
	w := wire.NewWriter()
	w.PutUint8(uint8(b.kind))
	switch b.kind {
	case KindMicro:
		h := b.micro
		w.PutUint32(uint32(h.BlockNumber))
		w.PutFixedBytes(h.ParentHash[:])
		w.PutFixedBytes(h.Seed.Signature[:])
		w.PutUint64(h.Timestamp)
		w.PutFixedBytes(h.BodyRoot[:])
		w.PutFixedBytes(h.StateRoot[:])
		w.PutUint16(uint16(h.ProposerSlot))
	case KindMacro:
		h := b.macro
		w.PutUint32(uint32(h.BlockNumber))
		w.PutFixedBytes(h.ParentHash[:])
		w.PutFixedBytes(h.Seed.Signature[:])
		w.PutUint64(h.Timestamp)
		w.PutFixedBytes(h.BodyRoot[:])
		w.PutFixedBytes(h.StateRoot[:])
		w.PutFixedBytes(h.HistoryRoot[:])
		if h.IsElection {
			w.PutUint8(1)
		} else {
			w.PutUint8(0)
		}
	default:
		return Hash{}, fmt.Errorf("types: unknown block kind %d", b.kind)
	}
	return HashBytes(w.Bytes()), nil
}
