package types

import "github.com/OffchainLabs/go-bitfield"

// Step is a Tendermint round step.
type Step uint8

const (
	StepPropose Step = iota
	StepPrevote
	StepPrecommit
)

func (s Step) String() string {
	switch s {
	case StepPropose:
		return "propose"
	case StepPrevote:
		return "prevote"
	case StepPrecommit:
		return "precommit"
	default:
		return "unknown-step"
	}
}

// Proposal is a proposer's macro-block candidate for one round.
type Proposal struct {
	Round      RoundNumber
	ValidRound *RoundNumber // nil means "no valid round" (Tendermint's None)
	Header     MacroHeader
	Body       MacroBody
}

// SignedProposal wraps a Proposal with the proposer's signature and slot.
type SignedProposal struct {
	Proposal  Proposal
	Signature [96]byte
	Slot      SlotNumber
}

// SignedVote is a single validator's Prevote or Precommit for a round.
// ProposalHash is the zero hash for a vote on "nil" (⊥).
type SignedVote struct {
	ValidatorSlot SlotNumber
	Round         RoundNumber
	Step          Step
	ProposalHash  Hash
	Signature     [96]byte
}

// TendermintProof is the macro-block justification: an aggregated
// precommit for a specific round, plus the bitset of slots that
// contributed to it. It must verify against the validator set of
// epoch_at(block_number) (spec.md §6).
type TendermintProof struct {
	Round               RoundNumber
	AggregatedSignature [96]byte
	SignerBitset        bitfield.Bitlist
}

// SignerCount returns how many slots contributed to the aggregate.
func (p TendermintProof) SignerCount() int {
	n := 0
	for i := uint64(0); i < p.SignerBitset.Len(); i++ {
		if p.SignerBitset.BitAt(i) {
			n++
		}
	}
	return n
}
