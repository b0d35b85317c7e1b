// Package memdb is an in-memory chainstore.ChainStore, used by tests and
// by nodes that don't need state to survive a restart.
package memdb

import (
	"sync"

	"github.com/albatross-go/consensus/chainstore"
	"github.com/albatross-go/consensus/types"
)

// Store is an in-memory implementation of chainstore.ChainStore and
// chainstore.AccountsStore.
type Store struct {
	mu sync.RWMutex

	blocks         map[types.Hash]types.Block
	validatorSets  map[uint32]*types.ValidatorSet
	head           types.Checkpoint
	lastMacroBlock types.Hash
	chunks         map[types.Hash]map[uint32][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		blocks:        make(map[types.Hash]types.Block),
		validatorSets: make(map[uint32]*types.ValidatorSet),
		chunks:        make(map[types.Hash]map[uint32][]byte),
	}
}

func (s *Store) GetBlock(hash types.Hash) (types.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[hash]
	if !ok {
		return types.Block{}, chainstore.ErrNotFound
	}
	return b, nil
}

func (s *Store) PutBlock(hash types.Hash, block types.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[hash] = block
	return nil
}

func (s *Store) DeleteBlock(hash types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, hash)
	return nil
}

func (s *Store) GetValidatorSet(epoch uint32) (*types.ValidatorSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs, ok := s.validatorSets[epoch]
	if !ok {
		return nil, chainstore.ErrNotFound
	}
	return vs, nil
}

func (s *Store) PutValidatorSet(epoch uint32, vs *types.ValidatorSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validatorSets[epoch] = vs
	return nil
}

func (s *Store) Head() (types.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.head.IsZero() {
		return types.Checkpoint{}, chainstore.ErrNotFound
	}
	return s.head, nil
}

func (s *Store) SetHead(head types.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = head
	return nil
}

func (s *Store) LastMacroBlock() (types.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastMacroBlock.IsZero() {
		return types.Hash{}, chainstore.ErrNotFound
	}
	return s.lastMacroBlock, nil
}

func (s *Store) SetLastMacroBlock(hash types.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMacroBlock = hash
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) GetChunk(blockHash types.Hash, chunkIndex uint32) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byBlock, ok := s.chunks[blockHash]
	if !ok {
		return nil, chainstore.ErrNotFound
	}
	data, ok := byBlock[chunkIndex]
	if !ok {
		return nil, chainstore.ErrNotFound
	}
	return data, nil
}

func (s *Store) PutChunk(blockHash types.Hash, chunkIndex uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byBlock, ok := s.chunks[blockHash]
	if !ok {
		byBlock = make(map[uint32][]byte)
		s.chunks[blockHash] = byBlock
	}
	byBlock[chunkIndex] = data
	return nil
}

func (s *Store) ChunkCount(blockHash types.Hash) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint32(len(s.chunks[blockHash])), nil
}
