package node

import (
	"context"
	"testing"
	"time"

	"github.com/albatross-go/consensus/tendermint/aggregationtest"
	"github.com/albatross-go/consensus/types"
	"github.com/albatross-go/consensus/vrf"
)

// fixedVoteSigner always votes for whatever hash it is asked to, as one
// fixed validator slot; a real signer would hold VRF/BLS key material.
type fixedVoteSigner struct {
	slot types.SlotNumber
}

func (s fixedVoteSigner) SignVote(round types.RoundNumber, step types.Step, hash types.Hash) (types.SignedVote, error) {
	return types.SignedVote{ValidatorSlot: s.slot, Round: round, Step: step, ProposalHash: hash}, nil
}

func testFourValidatorSet(t *testing.T) *types.ValidatorSet {
	t.Helper()
	vs, err := types.NewValidatorSet([]types.Validator{
		{NumSlots: 1}, {NumSlots: 1}, {NumSlots: 1}, {NumSlots: 1},
	})
	if err != nil {
		t.Fatalf("NewValidatorSet: %v", err)
	}
	return vs
}

func TestRunMacroHeightCommitsAndPushes(t *testing.T) {
	genesis, _ := testGenesis(t)
	vs := testFourValidatorSet(t)
	n, err := New(context.Background(), Config{Policy: testPolicy(), NetworkName: "test"}, genesis, vs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.Start()
	defer n.Stop()

	agg := aggregationtest.New(vs.TotalSlots())
	signer := fixedVoteSigner{slot: 0}

	parentHash, err := genesis.HeaderHash()
	if err != nil {
		t.Fatalf("HeaderHash: %v", err)
	}
	header := types.MacroHeader{BlockNumber: 1, ParentHash: parentHash}
	proposalHash, err := types.NewMacroBlock(header, types.MacroBody{}).HeaderHash()
	if err != nil {
		t.Fatalf("HeaderHash: %v", err)
	}

	dueSlot, err := n.chain.SlotAllocator().ComputeSlotNumber(1, 0, vrf.Seed{}, types.DisabledSlots{})
	if err != nil {
		t.Fatalf("ComputeSlotNumber: %v", err)
	}

	proposals := make(chan types.SignedProposal, 1)
	proposals <- types.SignedProposal{
		Proposal: types.Proposal{Round: 0, Header: header, Body: types.MacroBody{}},
		Slot:     dueSlot,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- n.RunMacroHeight(ctx, 1, nil, agg, signer, proposals, vrf.Seed{})
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		for slot := types.SlotNumber(1); slot < 4; slot++ {
			agg.SubmitVote(0, types.StepPrevote, types.SignedVote{ValidatorSlot: slot, Round: 0, Step: types.StepPrevote, ProposalHash: proposalHash})
		}
		time.Sleep(20 * time.Millisecond)
		for slot := types.SlotNumber(1); slot < 4; slot++ {
			agg.SubmitVote(0, types.StepPrecommit, types.SignedVote{ValidatorSlot: slot, Round: 0, Step: types.StepPrecommit, ProposalHash: proposalHash})
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunMacroHeight: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("macro height did not commit in time")
	}

	if got := n.Chain().Head().BlockNumber; got != 1 {
		t.Fatalf("chain head block number = %d, want 1", got)
	}
}
