package blockchain

import (
	"errors"
	"fmt"

	"github.com/albatross-go/consensus/types"
)

// BlockchainError reports a malformed local chain state rather than a
// malformed incoming block: callers generally cannot recover from one
// without resetting storage.
type BlockchainError struct {
	msg string
}

func (e *BlockchainError) Error() string { return e.msg }

func newBlockchainError(msg string) *BlockchainError {
	return &BlockchainError{msg: msg}
}

// Sentinel BlockchainErrors, matching the taxonomy of persistent-state
// failures a node can hit while loading or querying its chain.
var (
	ErrInvalidGenesisBlock   = newBlockchainError("blockchain: invalid genesis block stored")
	ErrFailedLoadingMainChain = newBlockchainError("blockchain: failed to load the main chain")
	ErrInconsistentState     = newBlockchainError("blockchain: inconsistent chain/accounts state")
	ErrBlockBodyNotFound     = newBlockchainError("blockchain: block body not found")
	ErrBlockIsNotMacro       = newBlockchainError("blockchain: block is not a macro block")
	ErrNoValidatorsFound     = newBlockchainError("blockchain: no validators found")
	ErrInvalidEpoch          = newBlockchainError("blockchain: invalid epoch id")
	ErrAccountsDiffNotFound  = newBlockchainError("blockchain: accounts diff not found")

	// ErrGenesisAccountsRequired reports that LoadGenesisWithAccounts was
	// called with an empty genesis accounts snapshot on a non-mainnet
	// network.
	ErrGenesisAccountsRequired = newBlockchainError("blockchain: genesis block requires an accounts state")
	// ErrGenesisAccountsRequiredMainnet is the mainnet-specific form of
	// ErrGenesisAccountsRequired: a distinct sentinel so operator
	// tooling can give mainnet operators a pointed error message
	// instead of the generic one, without string-matching.
	ErrGenesisAccountsRequiredMainnet = newBlockchainError("blockchain: mainnet genesis block requires a full accounts snapshot")
)

// ErrBlockNotFound reports a missing block, by number or by hash.
type ErrBlockNotFound struct {
	BlockNumber types.BlockNumber
	Hash        types.Hash
	byHash      bool
}

func (e *ErrBlockNotFound) Error() string {
	if e.byHash {
		return fmt.Sprintf("blockchain: block not found: %s", e.Hash)
	}
	return fmt.Sprintf("blockchain: block not found: %d", e.BlockNumber)
}

// PushError explains why Blockchain.Push rejected an incoming block.
// Most variants wrap a more specific error from a subordinate package
// (slots, tendermint) via %w, so callers can errors.As/Is through.
var (
	ErrOrphan                    = errors.New("blockchain: orphan block")
	ErrInvalidSuccessor          = errors.New("blockchain: invalid successor")
	ErrInvalidPredecessor        = errors.New("blockchain: invalid predecessor")
	ErrDuplicateTransaction      = errors.New("blockchain: duplicate transaction")
	ErrInvalidFork               = errors.New("blockchain: invalid fork")
	ErrMissingAccountsTrieDiff   = errors.New("blockchain: push with incomplete accounts and without trie diff")
	ErrIncompleteAccountsTrie    = errors.New("blockchain: accounts trie is incomplete and thus cannot be verified")
)

// ErrDecidedJustificationInvalid reports that a TendermintDriver's
// decided macro block failed signature verification at the Blockchain
// layer: per spec.md §4.3 this is a protocol invariant violation, not an
// ordinary push rejection.
var ErrDecidedJustificationInvalid = errors.New("blockchain: decided macro block justification failed verification")

// ErrEquivocationAlreadyIncluded reports that an equivocation proof the
// block wants credit for was already recorded by an earlier block.
type ErrEquivocationAlreadyIncluded struct {
	Locator types.EquivocationLocator
}

func (e *ErrEquivocationAlreadyIncluded) Error() string {
	return fmt.Sprintf("blockchain: proof for equivocation already included: %s", e.Locator)
}

// PushResult reports what Push actually did with an accepted block.
type PushResult uint8

const (
	// Known reports the block was already present; Push is a no-op.
	Known PushResult = iota
	// Extended reports the block became the new, single-parent head.
	Extended
	// Rebranched reports the block caused a fork-choice reorg.
	Rebranched
	// Forked reports the block was accepted but did not become head.
	Forked
	// Ignored reports the block was valid and stored, but its branch ties
	// the current head's fork score, so the head stays where it is.
	Ignored
)

func (r PushResult) String() string {
	switch r {
	case Known:
		return "known"
	case Extended:
		return "extended"
	case Rebranched:
		return "rebranched"
	case Forked:
		return "forked"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Direction names a walking order relative to the chain's canonical
// order; no function in this module takes one.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

// ChunksPushResult reports the outcome of pushing a batch of accounts
// trie chunks during history sync.
type ChunksPushResult struct {
	// Committed and Ignored are mutually-exclusive counts of the chunks
	// in the pushed batch; an empty batch reports EmptyChunks true.
	EmptyChunks bool
	Committed   int
	Ignored     int
}

// ChunksPushError reports which chunk in a pushed batch failed to verify.
type ChunksPushError struct {
	ChunkIndex int
	Err        error
}

func (e *ChunksPushError) Error() string {
	return fmt.Sprintf("blockchain: account error in chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *ChunksPushError) Unwrap() error { return e.Err }
