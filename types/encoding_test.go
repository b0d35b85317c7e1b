package types

import (
	"testing"

	"github.com/albatross-go/consensus/vrf"
)

func TestEncodeDecodeMicroBlockRoundTrip(t *testing.T) {
	header := MicroHeader{
		BlockNumber:  7,
		ParentHash:   Hash{0x01},
		Seed:         vrf.Seed{Signature: [96]byte{0x02}},
		Timestamp:    1234,
		BodyRoot:     Hash{0x03},
		StateRoot:    Hash{0x04},
		ProposerSlot: 9,
	}
	body := MicroBody{
		Transactions: [][]byte{{0xAA}, {0xBB, 0xCC}},
		EquivocationProofs: []EquivocationProof{
			Fork{BlockNumber: 5, Header1Hash: Hash{0x01}, Header2Hash: Hash{0x02}},
			DoubleVote{
				BlockNumber: 6,
				Vote1:       SignedVote{ValidatorSlot: 1, Round: 2, Step: StepPrevote, ProposalHash: Hash{0x11}},
				Vote2:       SignedVote{ValidatorSlot: 1, Round: 2, Step: StepPrevote, ProposalHash: Hash{0x22}},
			},
		},
	}
	block := NewMicroBlock(header, body)

	raw, err := EncodeBlock(block)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}

	decoded, err := DecodeBlock(raw)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if decoded.Kind() != KindMicro {
		t.Fatalf("expected micro kind, got %v", decoded.Kind())
	}
	gotHeader, gotBody := decoded.Micro()
	if gotHeader != header {
		t.Fatalf("header mismatch: got %+v want %+v", gotHeader, header)
	}
	if len(gotBody.Transactions) != 2 || len(gotBody.EquivocationProofs) != 2 {
		t.Fatalf("body mismatch: %+v", gotBody)
	}
}

func TestEncodeDecodeMacroBlockRoundTrip(t *testing.T) {
	header := MacroHeader{
		BlockNumber: 32,
		ParentHash:  Hash{0x09},
		Seed:        vrf.Seed{Signature: [96]byte{0x0A}},
		Timestamp:   5678,
		BodyRoot:    Hash{0x0B},
		StateRoot:   Hash{0x0C},
		HistoryRoot: Hash{0x0D},
		IsElection:  true,
	}
	disabled := NewDisabledSlots(8)
	disabled.Disable(3)
	body := MacroBody{
		NextBatchInitialPunishedSet: disabled,
		NextValidators: []Validator{
			{NumSlots: 4},
			{NumSlots: 4},
		},
	}
	block := NewMacroBlock(header, body)

	raw, err := EncodeBlock(block)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	decoded, err := DecodeBlock(raw)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if decoded.Kind() != KindMacro {
		t.Fatalf("expected macro kind, got %v", decoded.Kind())
	}
	gotHeader, gotBody := decoded.Macro()
	if gotHeader != header {
		t.Fatalf("header mismatch: got %+v want %+v", gotHeader, header)
	}
	if !gotBody.NextBatchInitialPunishedSet.IsDisabled(3) {
		t.Fatalf("expected slot 3 to remain disabled after round trip")
	}
	if len(gotBody.NextValidators) != 2 {
		t.Fatalf("expected 2 validators, got %d", len(gotBody.NextValidators))
	}
}

func TestEncodeDecodeValidatorSetRoundTrip(t *testing.T) {
	validators := []Validator{
		{NumSlots: 2},
		{NumSlots: 3},
	}
	validators[0].PublicKey[0] = 0xAB
	validators[1].Address[0] = 0xCD

	vs, err := NewValidatorSet(validators)
	if err != nil {
		t.Fatalf("NewValidatorSet: %v", err)
	}

	raw, err := EncodeValidatorSet(vs)
	if err != nil {
		t.Fatalf("EncodeValidatorSet: %v", err)
	}
	decoded, err := DecodeValidatorSet(raw)
	if err != nil {
		t.Fatalf("DecodeValidatorSet: %v", err)
	}
	if decoded.Len() != vs.Len() || decoded.TotalSlots() != vs.TotalSlots() {
		t.Fatalf("round trip mismatch: got len=%d slots=%d", decoded.Len(), decoded.TotalSlots())
	}
	v0, _ := decoded.Validator(0)
	if v0.PublicKey[0] != 0xAB {
		t.Fatalf("validator 0 public key lost in round trip")
	}
}
