package blockchain

import (
	"errors"
	"testing"

	"github.com/albatross-go/consensus/chainstore/memdb"
	"github.com/albatross-go/consensus/eventbus"
	"github.com/albatross-go/consensus/types"
)

func TestPushChunksStoresVerifiedChunks(t *testing.T) {
	bc, genesis := newTestChain(t)
	hash, _ := genesis.HeaderHash()

	result, err := bc.PushChunks(hash, 0, [][]byte{{1, 2, 3}, {4, 5, 6}}, func(uint32, []byte) error { return nil })
	if err != nil {
		t.Fatalf("PushChunks: %v", err)
	}
	if result.Committed != 2 || result.Ignored != 0 || result.EmptyChunks {
		t.Fatalf("result = %+v, want 2 committed", result)
	}

	count, err := bc.accounts.ChunkCount(hash)
	if err != nil {
		t.Fatalf("ChunkCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("ChunkCount = %d, want 2", count)
	}
}

func TestPushChunksEmptyBatch(t *testing.T) {
	bc, genesis := newTestChain(t)
	hash, _ := genesis.HeaderHash()

	result, err := bc.PushChunks(hash, 0, nil, func(uint32, []byte) error { return nil })
	if err != nil {
		t.Fatalf("PushChunks: %v", err)
	}
	if !result.EmptyChunks {
		t.Fatalf("expected EmptyChunks true")
	}
}

func TestPushChunksStopsAtFirstVerificationFailure(t *testing.T) {
	bc, genesis := newTestChain(t)
	hash, _ := genesis.HeaderHash()
	boom := errors.New("boom")

	_, err := bc.PushChunks(hash, 5, [][]byte{{1}, {2}}, func(idx uint32, _ []byte) error {
		if idx == 6 {
			return boom
		}
		return nil
	})
	var chunkErr *ChunksPushError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected *ChunksPushError, got %v", err)
	}
	if chunkErr.ChunkIndex != 6 {
		t.Fatalf("ChunkIndex = %d, want 6", chunkErr.ChunkIndex)
	}
}

func TestLoadGenesisWithAccountsRequiresSnapshot(t *testing.T) {
	cfg := testConfig()
	store := memdb.New()
	bus := eventbus.New(nil)
	vs := testValidatorSet(t)
	genesis := types.NewMacroBlock(types.MacroHeader{BlockNumber: 0, Seed: seedAt(0)}, types.MacroBody{})

	_, err := LoadGenesisWithAccounts(cfg, store, store, bus, genesis, vs, nil)
	if !errors.Is(err, ErrGenesisAccountsRequired) {
		t.Fatalf("err = %v, want ErrGenesisAccountsRequired", err)
	}
}

func TestLoadGenesisWithAccountsRequiresSnapshotOnMainnet(t *testing.T) {
	cfg := testConfig()
	cfg.Mainnet = true
	store := memdb.New()
	bus := eventbus.New(nil)
	vs := testValidatorSet(t)
	genesis := types.NewMacroBlock(types.MacroHeader{BlockNumber: 0, Seed: seedAt(0)}, types.MacroBody{})

	_, err := LoadGenesisWithAccounts(cfg, store, store, bus, genesis, vs, nil)
	if !errors.Is(err, ErrGenesisAccountsRequiredMainnet) {
		t.Fatalf("err = %v, want ErrGenesisAccountsRequiredMainnet", err)
	}
}

func TestLoadGenesisWithAccountsStoresSnapshot(t *testing.T) {
	cfg := testConfig()
	store := memdb.New()
	bus := eventbus.New(nil)
	vs := testValidatorSet(t)
	genesis := types.NewMacroBlock(types.MacroHeader{BlockNumber: 0, Seed: seedAt(0)}, types.MacroBody{})

	bc, err := LoadGenesisWithAccounts(cfg, store, store, bus, genesis, vs, []byte("snapshot"))
	if err != nil {
		t.Fatalf("LoadGenesisWithAccounts: %v", err)
	}
	hash, _ := genesis.HeaderHash()
	chunk, err := bc.accounts.GetChunk(hash, 0)
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if string(chunk) != "snapshot" {
		t.Fatalf("chunk = %q, want %q", chunk, "snapshot")
	}
}

func TestTrustedCheckpointOption(t *testing.T) {
	cfg := testConfig()
	store := memdb.New()
	bus := eventbus.New(nil)
	vs := testValidatorSet(t)
	genesis := types.NewMacroBlock(types.MacroHeader{BlockNumber: 0, Seed: seedAt(0)}, types.MacroBody{})

	checkpoint := types.VerifiedCheckpoint{Checkpoint: types.Checkpoint{BlockNumber: 100}, Epoch: 3}
	bc, err := LoadGenesis(cfg, store, store, bus, genesis, vs, WithTrustedCheckpoint(checkpoint))
	if err != nil {
		t.Fatalf("LoadGenesis: %v", err)
	}

	got, ok := bc.TrustedCheckpoint()
	if !ok {
		t.Fatalf("expected a trusted checkpoint")
	}
	if got.Epoch != 3 || got.BlockNumber != 100 {
		t.Fatalf("got = %+v, want Epoch=3 BlockNumber=100", got)
	}
}

func TestTrustedCheckpointAbsentByDefault(t *testing.T) {
	bc, _ := newTestChain(t)
	if _, ok := bc.TrustedCheckpoint(); ok {
		t.Fatalf("expected no trusted checkpoint")
	}
}
