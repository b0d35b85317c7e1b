// Package chainstore defines the persistence boundary the blockchain
// package reads and writes through: blocks, validator sets by epoch, and
// the chunk-level accounts state referenced by MacroBody. Two
// implementations are provided: memdb (tests, ephemeral nodes) and
// pebbledb (durable on-disk storage).
package chainstore

import (
	"errors"

	"github.com/albatross-go/consensus/types"
)

// ErrNotFound is returned by any Get-style lookup that misses.
var ErrNotFound = errors.New("chainstore: not found")

// ChainStore persists blocks, their validator sets and chain-head
// pointers. Implementations must be safe for concurrent use.
type ChainStore interface {
	// GetBlock returns the block stored under hash.
	GetBlock(hash types.Hash) (types.Block, error)
	// PutBlock stores block under its own header hash.
	PutBlock(hash types.Hash, block types.Block) error
	// DeleteBlock removes a block, used when pruning an abandoned
	// fork's blocks after a rebranch.
	DeleteBlock(hash types.Hash) error

	// GetValidatorSet returns the validator set installed by the
	// election block of epoch.
	GetValidatorSet(epoch uint32) (*types.ValidatorSet, error)
	// PutValidatorSet records the validator set installed for epoch.
	PutValidatorSet(epoch uint32, vs *types.ValidatorSet) error

	// Head returns the current chain head checkpoint.
	Head() (types.Checkpoint, error)
	// SetHead updates the current chain head checkpoint.
	SetHead(head types.Checkpoint) error

	// LastMacroBlock returns the hash of the most recently finalized
	// macro block.
	LastMacroBlock() (types.Hash, error)
	// SetLastMacroBlock records the hash of the most recently finalized
	// macro block.
	SetLastMacroBlock(hash types.Hash) error

	// Close releases any resources held by the store.
	Close() error
}

// AccountsStore persists the chunked accounts-trie state referenced by a
// macro block's body, supporting the incremental chunk sync described in
// spec.md's supplemented history-adoption flow.
type AccountsStore interface {
	// GetChunk returns the accounts-trie chunk at chunkIndex for the
	// state committed by blockHash.
	GetChunk(blockHash types.Hash, chunkIndex uint32) ([]byte, error)
	// PutChunk stores a verified accounts-trie chunk.
	PutChunk(blockHash types.Hash, chunkIndex uint32, data []byte) error
	// ChunkCount returns how many chunks have been stored for blockHash.
	ChunkCount(blockHash types.Hash) (uint32, error)
}
