// Package types defines the wire-level data model shared by the
// blockchain, slots and tendermint packages: blocks, validators,
// equivocation proofs and Tendermint votes/proposals.
package types

// Checkpoint identifies a block at a specific height, used wherever a
// component needs to refer to "that block, at that height" without
// carrying the whole header (e.g. accounts-trie range queries).
type Checkpoint struct {
	Hash        Hash
	BlockNumber BlockNumber
}

// IsZero reports whether this is the zero-value checkpoint.
func (c Checkpoint) IsZero() bool {
	return c.Hash.IsZero() && c.BlockNumber == 0
}

// VerifiedCheckpoint is a checkpoint a state-sync/light-client protocol
// has already authenticated (e.g. against a weak subjectivity root),
// handed to Blockchain as an opaque trust anchor. The sync algorithm
// that produces one is an external collaborator; this type only carries
// the result across that boundary.
type VerifiedCheckpoint struct {
	Checkpoint
	Epoch uint32
}
