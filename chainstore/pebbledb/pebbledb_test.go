package pebbledb

import (
	"errors"
	"testing"

	"github.com/albatross-go/consensus/chainstore"
	"github.com/albatross-go/consensus/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetBlock(t *testing.T) {
	s := openTestStore(t)
	header := types.MicroHeader{BlockNumber: 11}
	block := types.NewMicroBlock(header, types.MicroBody{})
	hash := types.Hash{0x01}

	if err := s.PutBlock(hash, block); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	got, err := s.GetBlock(hash)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if got.BlockNumber() != 11 {
		t.Fatalf("expected block number 11, got %d", got.BlockNumber())
	}
}

func TestGetBlockNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetBlock(types.Hash{0xFF}); !errors.Is(err, chainstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHeadAndLastMacroBlockRoundTrip(t *testing.T) {
	s := openTestStore(t)
	head := types.Checkpoint{Hash: types.Hash{0x02}, BlockNumber: 42}
	if err := s.SetHead(head); err != nil {
		t.Fatalf("SetHead: %v", err)
	}
	got, err := s.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if got != head {
		t.Fatalf("head mismatch: got %+v want %+v", got, head)
	}

	macroHash := types.Hash{0x03}
	if err := s.SetLastMacroBlock(macroHash); err != nil {
		t.Fatalf("SetLastMacroBlock: %v", err)
	}
	gotMacro, err := s.LastMacroBlock()
	if err != nil {
		t.Fatalf("LastMacroBlock: %v", err)
	}
	if gotMacro != macroHash {
		t.Fatalf("last macro block mismatch: got %s want %s", gotMacro, macroHash)
	}
}

func TestChunkCount(t *testing.T) {
	s := openTestStore(t)
	hash := types.Hash{0x04}
	if err := s.PutChunk(hash, 0, []byte("a")); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}
	if err := s.PutChunk(hash, 1, []byte("b")); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}
	count, err := s.ChunkCount(hash)
	if err != nil {
		t.Fatalf("ChunkCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 chunks, got %d", count)
	}
}
