package types

import (
	"encoding/binary"
	"fmt"
)

// EquivocationLocator is the canonical key identifying one detected
// misbehavior event (validator + height + kind), used by the
// EquivocationIndex to dedup accepted proofs.
type EquivocationLocator struct {
	BlockNumber BlockNumber
	Kind        EquivocationKind
	// Identity disambiguates proofs of the same kind at the same height:
	// the canonical (lower) header hash for Fork/DoubleProposal, or for
	// DoubleVote a hash of the offending validator's slot and both votes'
	// proposal hashes.
	Identity Hash
}

// EquivocationKind enumerates the taxonomy of provable misbehavior.
type EquivocationKind uint8

const (
	EquivocationFork EquivocationKind = iota
	EquivocationDoubleProposal
	EquivocationDoubleVote
)

// EquivocationProof is implemented by Fork, DoubleProposal and
// DoubleVote. A proof is canonical iff, for the two-header variants,
// Header1Hash < Header2Hash lexicographically; non-canonical proofs are
// rejected by the blockchain before they ever reach the index.
type EquivocationProof interface {
	Locator() EquivocationLocator
	IsCanonical() bool
}

// Fork proves a validator extended two competing chains from the same
// parent at the same block number.
type Fork struct {
	BlockNumber BlockNumber
	Header1Hash Hash
	Header2Hash Hash
	Signatures  [2][96]byte
}

func (f Fork) Locator() EquivocationLocator {
	return EquivocationLocator{BlockNumber: f.BlockNumber, Kind: EquivocationFork, Identity: f.Header1Hash}
}

func (f Fork) IsCanonical() bool {
	return f.Header1Hash.Compare(f.Header2Hash) < 0
}

// DoubleProposal proves a proposer signed two different headers for the
// same slot.
type DoubleProposal struct {
	BlockNumber BlockNumber
	Header1Hash Hash
	Header2Hash Hash
	Signatures  [2][96]byte
}

func (d DoubleProposal) Locator() EquivocationLocator {
	return EquivocationLocator{BlockNumber: d.BlockNumber, Kind: EquivocationDoubleProposal, Identity: d.Header1Hash}
}

func (d DoubleProposal) IsCanonical() bool {
	return d.Header1Hash.Compare(d.Header2Hash) < 0
}

// DoubleVote proves a validator cast two conflicting Tendermint votes
// (prevote or precommit) in the same round.
type DoubleVote struct {
	BlockNumber BlockNumber
	Vote1       SignedVote
	Vote2       SignedVote
}

func (d DoubleVote) Locator() EquivocationLocator {
	var slotTag Hash
	binary.BigEndian.PutUint16(slotTag[:2], uint16(d.Vote1.ValidatorSlot))
	id := HashOfHashes(slotTag, HashOfHashes(d.Vote1.ProposalHash, d.Vote2.ProposalHash))
	return EquivocationLocator{BlockNumber: d.BlockNumber, Kind: EquivocationDoubleVote, Identity: id}
}

// IsCanonical is always true for DoubleVote: there is no pair of wire
// hashes to order, since the locator is derived from both votes jointly.
func (d DoubleVote) IsCanonical() bool {
	return true
}

// String renders the locator for logging.
func (l EquivocationLocator) String() string {
	var kind string
	switch l.Kind {
	case EquivocationFork:
		kind = "fork"
	case EquivocationDoubleProposal:
		kind = "double-proposal"
	case EquivocationDoubleVote:
		kind = "double-vote"
	default:
		kind = "unknown"
	}
	return fmt.Sprintf("%s@%d/%s", kind, l.BlockNumber, l.Identity.Short())
}
