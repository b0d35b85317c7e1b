package equivocation

import (
	"testing"

	"github.com/albatross-go/consensus/types"
)

func TestInsertDeduplicates(t *testing.T) {
	idx := NewIndex()
	proof := types.Fork{
		BlockNumber: 5,
		Header1Hash: types.Hash{0x01},
		Header2Hash: types.Hash{0x02},
	}

	if !idx.Insert(proof) {
		t.Fatalf("expected first insert to succeed")
	}
	if idx.Insert(proof) {
		t.Fatalf("expected duplicate insert to be rejected")
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", idx.Len())
	}
}

func TestContainsAndGet(t *testing.T) {
	idx := NewIndex()
	proof := types.DoubleProposal{
		BlockNumber: 3,
		Header1Hash: types.Hash{0x01},
		Header2Hash: types.Hash{0x02},
	}
	locator := proof.Locator()

	if idx.Contains(locator) {
		t.Fatalf("expected empty index to not contain locator")
	}
	idx.Insert(proof)
	if !idx.Contains(locator) {
		t.Fatalf("expected index to contain locator after insert")
	}

	got, ok := idx.Get(locator)
	if !ok {
		t.Fatalf("expected Get to find the proof")
	}
	if got.Locator() != locator {
		t.Fatalf("returned proof has mismatched locator")
	}
}

func TestDoubleVoteLocatorDistinguishesValidators(t *testing.T) {
	idx := NewIndex()
	proposalA := types.Hash{0x0a}
	proposalB := types.Hash{0x0b}

	first := types.DoubleVote{
		BlockNumber: 7,
		Vote1:       types.SignedVote{ValidatorSlot: 1, ProposalHash: proposalA},
		Vote2:       types.SignedVote{ValidatorSlot: 1, ProposalHash: proposalB},
	}
	second := types.DoubleVote{
		BlockNumber: 7,
		Vote1:       types.SignedVote{ValidatorSlot: 2, ProposalHash: proposalA},
		Vote2:       types.SignedVote{ValidatorSlot: 2, ProposalHash: proposalB},
	}

	if !idx.Insert(first) {
		t.Fatalf("expected first validator's double-vote proof to insert")
	}
	if !idx.Insert(second) {
		t.Fatalf("expected second validator's double-vote proof to insert despite matching proposal hashes")
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", idx.Len())
	}
}

func TestForBlockNumber(t *testing.T) {
	idx := NewIndex()
	idx.Insert(types.Fork{BlockNumber: 1, Header1Hash: types.Hash{0x01}, Header2Hash: types.Hash{0x02}})
	idx.Insert(types.Fork{BlockNumber: 1, Header1Hash: types.Hash{0x03}, Header2Hash: types.Hash{0x04}})
	idx.Insert(types.Fork{BlockNumber: 2, Header1Hash: types.Hash{0x05}, Header2Hash: types.Hash{0x06}})

	proofs := idx.ForBlockNumber(1)
	if len(proofs) != 2 {
		t.Fatalf("expected 2 proofs at block 1, got %d", len(proofs))
	}
}
