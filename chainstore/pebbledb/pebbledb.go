// Package pebbledb is a chainstore.ChainStore backed by a CockroachDB
// Pebble LSM-tree, for nodes that need chain state to survive a restart.
package pebbledb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/golang/snappy"

	"github.com/albatross-go/consensus/chainstore"
	"github.com/albatross-go/consensus/types"
)

// Key prefixes partition the single Pebble keyspace by record kind.
var (
	prefixBlock         = []byte("b/")
	prefixValidatorSet  = []byte("v/")
	prefixChunk         = []byte("c/")
	keyHead             = []byte("meta/head")
	keyLastMacroBlock   = []byte("meta/last-macro-block")
)

// Store is a durable chainstore.ChainStore and chainstore.AccountsStore.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if necessary) a Pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebbledb: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func blockKey(hash types.Hash) []byte {
	return append(append([]byte{}, prefixBlock...), hash[:]...)
}

func validatorSetKey(epoch uint32) []byte {
	key := append([]byte{}, prefixValidatorSet...)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], epoch)
	return append(key, buf[:]...)
}

func chunkKey(blockHash types.Hash, chunkIndex uint32) []byte {
	key := append([]byte{}, prefixChunk...)
	key = append(key, blockHash[:]...)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], chunkIndex)
	return append(key, buf[:]...)
}

func (s *Store) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, chainstore.ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

// Block bodies are the bulk of what this store archives, so they are
// snappy-compressed on write and decompressed on read; everything else
// (checkpoints, validator sets) is small enough that compression would
// only add overhead.
func (s *Store) GetBlock(hash types.Hash) (types.Block, error) {
	raw, err := s.get(blockKey(hash))
	if err != nil {
		return types.Block{}, err
	}
	wire, err := snappy.Decode(nil, raw)
	if err != nil {
		return types.Block{}, fmt.Errorf("pebbledb: decompress block %s: %w", hash.Short(), err)
	}
	block, err := types.DecodeBlock(wire)
	if err != nil {
		return types.Block{}, fmt.Errorf("pebbledb: decode block %s: %w", hash.Short(), err)
	}
	return block, nil
}

func (s *Store) PutBlock(hash types.Hash, block types.Block) error {
	wire, err := types.EncodeBlock(block)
	if err != nil {
		return fmt.Errorf("pebbledb: encode block %s: %w", hash.Short(), err)
	}
	return s.db.Set(blockKey(hash), snappy.Encode(nil, wire), pebble.Sync)
}

func (s *Store) DeleteBlock(hash types.Hash) error {
	return s.db.Delete(blockKey(hash), pebble.Sync)
}

func (s *Store) GetValidatorSet(epoch uint32) (*types.ValidatorSet, error) {
	raw, err := s.get(validatorSetKey(epoch))
	if err != nil {
		return nil, err
	}
	vs, err := types.DecodeValidatorSet(raw)
	if err != nil {
		return nil, fmt.Errorf("pebbledb: decode validator set for epoch %d: %w", epoch, err)
	}
	return vs, nil
}

func (s *Store) PutValidatorSet(epoch uint32, vs *types.ValidatorSet) error {
	raw, err := types.EncodeValidatorSet(vs)
	if err != nil {
		return fmt.Errorf("pebbledb: encode validator set for epoch %d: %w", epoch, err)
	}
	return s.db.Set(validatorSetKey(epoch), raw, pebble.Sync)
}

func (s *Store) Head() (types.Checkpoint, error) {
	raw, err := s.get(keyHead)
	if err != nil {
		return types.Checkpoint{}, err
	}
	return decodeCheckpoint(raw)
}

func (s *Store) SetHead(head types.Checkpoint) error {
	return s.db.Set(keyHead, encodeCheckpoint(head), pebble.Sync)
}

func (s *Store) LastMacroBlock() (types.Hash, error) {
	raw, err := s.get(keyLastMacroBlock)
	if err != nil {
		return types.Hash{}, err
	}
	var h types.Hash
	copy(h[:], raw)
	return h, nil
}

func (s *Store) SetLastMacroBlock(hash types.Hash) error {
	return s.db.Set(keyLastMacroBlock, hash[:], pebble.Sync)
}

func (s *Store) GetChunk(blockHash types.Hash, chunkIndex uint32) ([]byte, error) {
	return s.get(chunkKey(blockHash, chunkIndex))
}

func (s *Store) PutChunk(blockHash types.Hash, chunkIndex uint32, data []byte) error {
	return s.db.Set(chunkKey(blockHash, chunkIndex), data, pebble.Sync)
}

func (s *Store) ChunkCount(blockHash types.Hash) (uint32, error) {
	prefix := append(append([]byte{}, prefixChunk...), blockHash[:]...)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var count uint32
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, iter.Error()
}

func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func encodeCheckpoint(c types.Checkpoint) []byte {
	buf := make([]byte, 4+32)
	binary.BigEndian.PutUint32(buf[:4], uint32(c.BlockNumber))
	copy(buf[4:], c.Hash[:])
	return buf
}

func decodeCheckpoint(raw []byte) (types.Checkpoint, error) {
	if len(raw) != 4+32 {
		return types.Checkpoint{}, fmt.Errorf("pebbledb: malformed checkpoint record")
	}
	var c types.Checkpoint
	c.BlockNumber = types.BlockNumber(binary.BigEndian.Uint32(raw[:4]))
	copy(c.Hash[:], raw[4:])
	return c, nil
}
