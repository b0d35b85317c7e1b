package tendermint

import (
	"testing"

	"github.com/albatross-go/consensus/types"
)

func TestRecordAndLookupProposal(t *testing.T) {
	s := NewMacroState(5)
	header := types.MacroHeader{BlockNumber: 5}
	body := types.MacroBody{}
	hash := types.Hash{0x01}

	s.RecordProposal(hash, header, body, 0, nil)

	gotHeader, _, ok := s.ProposalAt(hash)
	if !ok {
		t.Fatalf("expected proposal to be recorded")
	}
	if gotHeader.BlockNumber != 5 {
		t.Fatalf("unexpected header: %+v", gotHeader)
	}
}

func TestCastVoteAndVoteAt(t *testing.T) {
	s := NewMacroState(1)
	hash := types.Hash{0x02}
	s.CastVote(3, types.StepPrevote, hash)

	got, ok := s.VoteAt(3, types.StepPrevote)
	if !ok || got != hash {
		t.Fatalf("expected vote %s, got %s (ok=%v)", hash, got, ok)
	}

	if _, ok := s.VoteAt(3, types.StepPrecommit); ok {
		t.Fatalf("expected no vote recorded at precommit")
	}
}

func TestIntoTendermintStateRejectsHeightMismatch(t *testing.T) {
	s := NewMacroState(10)
	if _, ok := s.IntoTendermintState(11); ok {
		t.Fatalf("expected mismatch height to be rejected")
	}
	restored, ok := s.IntoTendermintState(10)
	if !ok || restored != s {
		t.Fatalf("expected matching height to restore state")
	}
}

func TestLockAndValid(t *testing.T) {
	s := NewMacroState(1)
	hash := types.Hash{0x03}
	s.Lock(2, hash)
	s.SetValid(2, hash)

	if s.Locked == nil || s.Locked.Round != 2 || s.Locked.Hash != hash {
		t.Fatalf("unexpected locked value: %+v", s.Locked)
	}
	if s.Valid == nil || s.Valid.Round != 2 || s.Valid.Hash != hash {
		t.Fatalf("unexpected valid value: %+v", s.Valid)
	}
}
