package blockchain

import (
	"context"
	"testing"

	"github.com/albatross-go/consensus/chainstore/memdb"
	"github.com/albatross-go/consensus/eventbus"
	"github.com/albatross-go/consensus/policy"
	"github.com/albatross-go/consensus/types"
	"github.com/albatross-go/consensus/vrf"
)

func testConfig() policy.Config {
	return policy.Config{BatchLength: 4, BatchesPerEpoch: 3, Slots: 4, BlockSeparationTime: 1000}
}

func testValidatorSet(t *testing.T) *types.ValidatorSet {
	t.Helper()
	vs, err := types.NewValidatorSet([]types.Validator{{NumSlots: 4}})
	if err != nil {
		t.Fatalf("NewValidatorSet: %v", err)
	}
	return vs
}

func seedAt(b byte) vrf.Seed {
	var s vrf.Seed
	s.Signature[0] = b
	return s
}

func newTestChain(t *testing.T) (*Blockchain, types.Block) {
	t.Helper()
	cfg := testConfig()
	store := memdb.New()
	bus := eventbus.New(nil)
	vs := testValidatorSet(t)

	genesisHeader := types.MacroHeader{BlockNumber: 0, Seed: seedAt(0)}
	genesis := types.NewMacroBlock(genesisHeader, types.MacroBody{})

	bc, err := LoadGenesis(cfg, store, store, bus, genesis, vs)
	if err != nil {
		t.Fatalf("LoadGenesis: %v", err)
	}
	return bc, genesis
}

func buildMicroOn(t *testing.T, bc *Blockchain, parent types.Block, seed byte) types.Block {
	t.Helper()
	parentHash, err := parent.HeaderHash()
	if err != nil {
		t.Fatalf("HeaderHash: %v", err)
	}

	disabled, err := bc.disabledSlotsBefore(parent, uint32(parent.BlockNumber())+1)
	if err != nil {
		t.Fatalf("disabledSlotsBefore: %v", err)
	}
	dueSlot, err := bc.SlotAllocator().ComputeSlotNumber(uint32(parent.BlockNumber())+1, 0, parent.Seed(), disabled)
	if err != nil {
		t.Fatalf("ComputeSlotNumber: %v", err)
	}

	header := types.MicroHeader{
		BlockNumber:  parent.BlockNumber() + 1,
		ParentHash:   parentHash,
		Seed:         seedAt(seed),
		ProposerSlot: dueSlot,
	}
	return types.NewMicroBlock(header, types.MicroBody{})
}

func TestPushExtendsHead(t *testing.T) {
	bc, genesis := newTestChain(t)
	block := buildMicroOn(t, bc, genesis, 1)

	result, err := bc.Push(context.Background(), block)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if result != Extended {
		t.Fatalf("Push result = %v, want Extended", result)
	}

	hash, _ := block.HeaderHash()
	if head := bc.Head(); head.Hash != hash {
		t.Fatalf("head = %s, want %s", head.Hash, hash)
	}
}

func TestPushKnownBlockIsNoop(t *testing.T) {
	bc, genesis := newTestChain(t)
	block := buildMicroOn(t, bc, genesis, 1)

	if _, err := bc.Push(context.Background(), block); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	result, err := bc.Push(context.Background(), block)
	if err != nil {
		t.Fatalf("second Push: %v", err)
	}
	if result != Known {
		t.Fatalf("Push result = %v, want Known", result)
	}
}

func TestPushOrphanIsRejected(t *testing.T) {
	bc, genesis := newTestChain(t)
	dangling := buildMicroOn(t, bc, genesis, 1)
	// Skip pushing `dangling`; build a second block on top of it so its
	// parent is never stored.
	orphan := buildMicroOn(t, bc, dangling, 2)

	if _, err := bc.Push(context.Background(), orphan); err == nil {
		t.Fatalf("expected orphan push to fail")
	}
}

func TestPushForkedSiblingIsStoredNotAdopted(t *testing.T) {
	bc, genesis := newTestChain(t)

	main1 := buildMicroOn(t, bc, genesis, 1)
	if _, err := bc.Push(context.Background(), main1); err != nil {
		t.Fatalf("push main1: %v", err)
	}
	main2 := buildMicroOn(t, bc, main1, 2)
	if _, err := bc.Push(context.Background(), main2); err != nil {
		t.Fatalf("push main2: %v", err)
	}

	// A sibling of main1: same parent (genesis), shorter, does not
	// overtake the two-block main branch.
	sibling := buildMicroOn(t, bc, genesis, 99)
	result, err := bc.Push(context.Background(), sibling)
	if err != nil {
		t.Fatalf("push sibling: %v", err)
	}
	if result != Forked {
		t.Fatalf("Push result = %v, want Forked", result)
	}
	if head := bc.Head(); head.BlockNumber != main2.BlockNumber() {
		t.Fatalf("head moved to the lighter fork: %+v", head)
	}
}

func TestPushRebranchesOntoHeavierFork(t *testing.T) {
	bc, genesis := newTestChain(t)

	shortBranch := buildMicroOn(t, bc, genesis, 1)
	if _, err := bc.Push(context.Background(), shortBranch); err != nil {
		t.Fatalf("push shortBranch: %v", err)
	}

	longBranchA := buildMicroOn(t, bc, genesis, 2)
	if _, err := bc.Push(context.Background(), longBranchA); err != nil {
		t.Fatalf("push longBranchA: %v", err)
	}
	// longBranchA is a sibling of shortBranch on genesis at the same
	// height, so it ties on weight and is Ignored rather than adopted.
	// Extend it one further block to make it strictly heavier.
	longBranchB := buildMicroOn(t, bc, longBranchA, 3)
	result, err := bc.Push(context.Background(), longBranchB)
	if err != nil {
		t.Fatalf("push longBranchB: %v", err)
	}
	if result != Rebranched {
		t.Fatalf("Push result = %v, want Rebranched", result)
	}

	hash, _ := longBranchB.HeaderHash()
	if head := bc.Head(); head.Hash != hash {
		t.Fatalf("head = %s, want %s", head.Hash, hash)
	}
}

func TestValidatorSetForEpochRejectsEpochZeroFallback(t *testing.T) {
	bc := &Blockchain{
		cfg:  testConfig(),
		head: ChainHead{CurrentEpoch: 5, CurrentSlots: testValidatorSet(t)},
	}
	// Neither the current nor previous epoch, so lookup falls through to
	// the epoch-0 special case, which has no election block to load.
	if _, err := bc.validatorSetForEpoch(0); err == nil {
		t.Fatalf("expected epoch 0 lookup through the fallback path to fail")
	}
}

func TestValidatorSetForEpochLoadsOlderEpochFromStore(t *testing.T) {
	store := memdb.New()
	vs := testValidatorSet(t)
	// The store is keyed by the epoch a set governs, matching Push's
	// writer (PutValidatorSet(newEpoch, vs)) and LoadGenesis
	// (PutValidatorSet(cfg.EpochAt(0), ...)).
	if err := store.PutValidatorSet(3, vs); err != nil {
		t.Fatalf("PutValidatorSet: %v", err)
	}
	bc := &Blockchain{
		cfg:   testConfig(),
		store: store,
		head:  ChainHead{CurrentEpoch: 5, CurrentSlots: testValidatorSet(t)},
	}
	got, err := bc.validatorSetForEpoch(3)
	if err != nil {
		t.Fatalf("validatorSetForEpoch: %v", err)
	}
	if got != vs {
		t.Fatalf("got a different validator set than the one stored for epoch 3")
	}
}

// electionValidatorSet returns a one-validator set whose address makes it
// distinguishable from any other epoch's set built by this helper.
func electionValidatorSet(t *testing.T, tag byte) []types.Validator {
	t.Helper()
	addr := [20]byte{}
	addr[0] = tag
	return []types.Validator{{NumSlots: 4, Address: addr}}
}

func buildElectionMacroOn(t *testing.T, parent types.Block, blockNumber uint32, validators []types.Validator) types.Block {
	t.Helper()
	parentHash, err := parent.HeaderHash()
	if err != nil {
		t.Fatalf("HeaderHash: %v", err)
	}
	header := types.MacroHeader{BlockNumber: types.BlockNumber(blockNumber), ParentHash: parentHash, IsElection: true}
	body := types.MacroBody{NextValidators: validators}
	return types.NewMacroBlock(header, body)
}

// TestValidatorSetForEpochRoundTripsThroughElectionCommits drives three
// real elections through Push (rather than hand-seeding the store) and
// checks that a lookup for an epoch two or more behind head resolves the
// validator set that epoch's own election actually installed.
func TestValidatorSetForEpochRoundTripsThroughElectionCommits(t *testing.T) {
	bc, genesis := newTestChain(t)
	cfg := testConfig()
	blocksPerEpoch := cfg.BatchLength * cfg.BatchesPerEpoch

	epoch1Validators := electionValidatorSet(t, 1)
	epoch2Validators := electionValidatorSet(t, 2)
	epoch3Validators := electionValidatorSet(t, 3)

	election1 := buildElectionMacroOn(t, genesis, blocksPerEpoch, epoch1Validators)
	if _, err := bc.Push(context.Background(), election1); err != nil {
		t.Fatalf("push election 1: %v", err)
	}
	election2 := buildElectionMacroOn(t, election1, 2*blocksPerEpoch, epoch2Validators)
	if _, err := bc.Push(context.Background(), election2); err != nil {
		t.Fatalf("push election 2: %v", err)
	}
	election3 := buildElectionMacroOn(t, election2, 3*blocksPerEpoch, epoch3Validators)
	if _, err := bc.Push(context.Background(), election3); err != nil {
		t.Fatalf("push election 3: %v", err)
	}

	if got := bc.CurrentEpoch(); got != 3 {
		t.Fatalf("CurrentEpoch = %d, want 3", got)
	}

	// Epoch 1 is two elections behind head (epoch 3), so this falls
	// through to validatorSetForEpoch's store-backed default branch.
	got, err := bc.ValidatorSetForEpoch(1)
	if err != nil {
		t.Fatalf("ValidatorSetForEpoch(1): %v", err)
	}
	wantAddr := epoch1Validators[0].Address
	validator, _, ok := got.GetValidatorBySlot(0)
	if !ok {
		t.Fatalf("epoch 1 validator set has no validator at slot 0")
	}
	if validator.Address != wantAddr {
		t.Fatalf("epoch 1 lookup returned validator set for a different epoch: got address %v, want %v", validator.Address, wantAddr)
	}
}
