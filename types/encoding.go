package types

import (
	"fmt"

	"github.com/albatross-go/consensus/wire"
)

// EncodeBlock serializes a Block using the project's canonical wire
// format, for chainstore persistence and block gossip payloads.
func EncodeBlock(b Block) ([]byte, error) {
	w := wire.NewWriter()
	w.PutUint8(uint8(b.kind))
	switch b.kind {
	case KindMicro:
		encodeMicroHeader(w, *b.micro)
		if err := encodeMicroBody(w, *b.mbody); err != nil {
			return nil, err
		}
	case KindMacro:
		encodeMacroHeader(w, *b.macro)
		encodeMacroBody(w, *b.macroBody)
	default:
		return nil, fmt.Errorf("types: unknown block kind %d", b.kind)
	}
	return w.Bytes(), nil
}

// DecodeBlock reverses EncodeBlock.
func DecodeBlock(raw []byte) (Block, error) {
	r := wire.NewReader(raw)
	kind, err := r.Uint8()
	if err != nil {
		return Block{}, err
	}
	switch BlockKind(kind) {
	case KindMicro:
		h, err := decodeMicroHeader(r)
		if err != nil {
			return Block{}, err
		}
		body, err := decodeMicroBody(r)
		if err != nil {
			return Block{}, err
		}
		return NewMicroBlock(h, body), nil
	case KindMacro:
		h, err := decodeMacroHeader(r)
		if err != nil {
			return Block{}, err
		}
		body, err := decodeMacroBody(r)
		if err != nil {
			return Block{}, err
		}
		return NewMacroBlock(h, body), nil
	default:
		return Block{}, fmt.Errorf("types: unknown block kind %d", kind)
	}
}

func encodeMicroHeader(w *wire.Writer, h MicroHeader) {
	w.PutUint32(uint32(h.BlockNumber))
	w.PutFixedBytes(h.ParentHash[:])
	w.PutFixedBytes(h.Seed.Signature[:])
	w.PutUint64(h.Timestamp)
	w.PutFixedBytes(h.BodyRoot[:])
	w.PutFixedBytes(h.StateRoot[:])
	w.PutUint16(uint16(h.ProposerSlot))
}

func decodeMicroHeader(r *wire.Reader) (MicroHeader, error) {
	var h MicroHeader
	blockNumber, err := r.Uint32()
	if err != nil {
		return h, err
	}
	parentHash, err := r.FixedBytes(32)
	if err != nil {
		return h, err
	}
	sig, err := r.FixedBytes(96)
	if err != nil {
		return h, err
	}
	timestamp, err := r.Uint64()
	if err != nil {
		return h, err
	}
	bodyRoot, err := r.FixedBytes(32)
	if err != nil {
		return h, err
	}
	stateRoot, err := r.FixedBytes(32)
	if err != nil {
		return h, err
	}
	proposerSlot, err := r.Uint16()
	if err != nil {
		return h, err
	}

	h.BlockNumber = BlockNumber(blockNumber)
	copy(h.ParentHash[:], parentHash)
	copy(h.Seed.Signature[:], sig)
	h.Timestamp = timestamp
	copy(h.BodyRoot[:], bodyRoot)
	copy(h.StateRoot[:], stateRoot)
	h.ProposerSlot = SlotNumber(proposerSlot)
	return h, nil
}

func encodeMicroBody(w *wire.Writer, b MicroBody) error {
	w.PutUint32(uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		w.PutVarBytes(tx)
	}
	w.PutUint32(uint32(len(b.EquivocationProofs)))
	for _, proof := range b.EquivocationProofs {
		if err := encodeEquivocationProof(w, proof); err != nil {
			return err
		}
	}
	return nil
}

func decodeMicroBody(r *wire.Reader) (MicroBody, error) {
	var b MicroBody
	numTx, err := r.Uint32()
	if err != nil {
		return b, err
	}
	b.Transactions = make([][]byte, numTx)
	for i := range b.Transactions {
		tx, err := r.VarBytes()
		if err != nil {
			return b, err
		}
		b.Transactions[i] = tx
	}

	numProofs, err := r.Uint32()
	if err != nil {
		return b, err
	}
	b.EquivocationProofs = make([]EquivocationProof, numProofs)
	for i := range b.EquivocationProofs {
		proof, err := decodeEquivocationProof(r)
		if err != nil {
			return b, err
		}
		b.EquivocationProofs[i] = proof
	}
	return b, nil
}

func encodeMacroHeader(w *wire.Writer, h MacroHeader) {
	w.PutUint32(uint32(h.BlockNumber))
	w.PutFixedBytes(h.ParentHash[:])
	w.PutFixedBytes(h.Seed.Signature[:])
	w.PutUint64(h.Timestamp)
	w.PutFixedBytes(h.BodyRoot[:])
	w.PutFixedBytes(h.StateRoot[:])
	w.PutFixedBytes(h.HistoryRoot[:])
	if h.IsElection {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

func decodeMacroHeader(r *wire.Reader) (MacroHeader, error) {
	var h MacroHeader
	blockNumber, err := r.Uint32()
	if err != nil {
		return h, err
	}
	parentHash, err := r.FixedBytes(32)
	if err != nil {
		return h, err
	}
	sig, err := r.FixedBytes(96)
	if err != nil {
		return h, err
	}
	timestamp, err := r.Uint64()
	if err != nil {
		return h, err
	}
	bodyRoot, err := r.FixedBytes(32)
	if err != nil {
		return h, err
	}
	stateRoot, err := r.FixedBytes(32)
	if err != nil {
		return h, err
	}
	historyRoot, err := r.FixedBytes(32)
	if err != nil {
		return h, err
	}
	isElection, err := r.Uint8()
	if err != nil {
		return h, err
	}

	h.BlockNumber = BlockNumber(blockNumber)
	copy(h.ParentHash[:], parentHash)
	copy(h.Seed.Signature[:], sig)
	h.Timestamp = timestamp
	copy(h.BodyRoot[:], bodyRoot)
	copy(h.StateRoot[:], stateRoot)
	copy(h.HistoryRoot[:], historyRoot)
	h.IsElection = isElection != 0
	return h, nil
}

func encodeMacroBody(w *wire.Writer, b MacroBody) {
	w.PutVarBytes(b.NextBatchInitialPunishedSet.Raw())
	w.PutUint32(uint32(len(b.NextValidators)))
	for _, v := range b.NextValidators {
		w.PutFixedBytes(v.PublicKey[:])
		w.PutFixedBytes(v.Address[:])
		w.PutUint16(v.NumSlots)
	}
}

func decodeMacroBody(r *wire.Reader) (MacroBody, error) {
	var b MacroBody
	disabled, err := r.VarBytes()
	if err != nil {
		return b, err
	}
	b.NextBatchInitialPunishedSet = DisabledSlotsFromRaw(disabled)

	numValidators, err := r.Uint32()
	if err != nil {
		return b, err
	}
	b.NextValidators = make([]Validator, numValidators)
	for i := range b.NextValidators {
		pub, err := r.FixedBytes(48)
		if err != nil {
			return b, err
		}
		addr, err := r.FixedBytes(20)
		if err != nil {
			return b, err
		}
		numSlots, err := r.Uint16()
		if err != nil {
			return b, err
		}
		copy(b.NextValidators[i].PublicKey[:], pub)
		copy(b.NextValidators[i].Address[:], addr)
		b.NextValidators[i].NumSlots = numSlots
	}
	return b, nil
}

// equivocation wire kinds, distinct from EquivocationKind since a future
// proof variant of the same kind could need a different wire shape.
const (
	wireEquivocationFork uint8 = iota
	wireEquivocationDoubleProposal
	wireEquivocationDoubleVote
)

func encodeEquivocationProof(w *wire.Writer, proof EquivocationProof) error {
	switch p := proof.(type) {
	case Fork:
		w.PutUint8(wireEquivocationFork)
		w.PutUint32(uint32(p.BlockNumber))
		w.PutFixedBytes(p.Header1Hash[:])
		w.PutFixedBytes(p.Header2Hash[:])
		w.PutFixedBytes(p.Signatures[0][:])
		w.PutFixedBytes(p.Signatures[1][:])
	case DoubleProposal:
		w.PutUint8(wireEquivocationDoubleProposal)
		w.PutUint32(uint32(p.BlockNumber))
		w.PutFixedBytes(p.Header1Hash[:])
		w.PutFixedBytes(p.Header2Hash[:])
		w.PutFixedBytes(p.Signatures[0][:])
		w.PutFixedBytes(p.Signatures[1][:])
	case DoubleVote:
		w.PutUint8(wireEquivocationDoubleVote)
		w.PutUint32(uint32(p.BlockNumber))
		encodeSignedVote(w, p.Vote1)
		encodeSignedVote(w, p.Vote2)
	default:
		return fmt.Errorf("types: unknown equivocation proof type %T", proof)
	}
	return nil
}

func decodeEquivocationProof(r *wire.Reader) (EquivocationProof, error) {
	kind, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	blockNumber, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	switch kind {
	case wireEquivocationFork, wireEquivocationDoubleProposal:
		h1, err := r.FixedBytes(32)
		if err != nil {
			return nil, err
		}
		h2, err := r.FixedBytes(32)
		if err != nil {
			return nil, err
		}
		sig1, err := r.FixedBytes(96)
		if err != nil {
			return nil, err
		}
		sig2, err := r.FixedBytes(96)
		if err != nil {
			return nil, err
		}
		var header1, header2 Hash
		copy(header1[:], h1)
		copy(header2[:], h2)
		var signatures [2][96]byte
		copy(signatures[0][:], sig1)
		copy(signatures[1][:], sig2)

		if kind == wireEquivocationFork {
			return Fork{BlockNumber: BlockNumber(blockNumber), Header1Hash: header1, Header2Hash: header2, Signatures: signatures}, nil
		}
		return DoubleProposal{BlockNumber: BlockNumber(blockNumber), Header1Hash: header1, Header2Hash: header2, Signatures: signatures}, nil
	case wireEquivocationDoubleVote:
		v1, err := decodeSignedVote(r)
		if err != nil {
			return nil, err
		}
		v2, err := decodeSignedVote(r)
		if err != nil {
			return nil, err
		}
		return DoubleVote{BlockNumber: BlockNumber(blockNumber), Vote1: v1, Vote2: v2}, nil
	default:
		return nil, fmt.Errorf("types: unknown equivocation wire kind %d", kind)
	}
}

func encodeSignedVote(w *wire.Writer, v SignedVote) {
	w.PutUint16(uint16(v.ValidatorSlot))
	w.PutUint32(uint32(v.Round))
	w.PutUint8(uint8(v.Step))
	w.PutFixedBytes(v.ProposalHash[:])
	w.PutFixedBytes(v.Signature[:])
}

func decodeSignedVote(r *wire.Reader) (SignedVote, error) {
	var v SignedVote
	slot, err := r.Uint16()
	if err != nil {
		return v, err
	}
	round, err := r.Uint32()
	if err != nil {
		return v, err
	}
	step, err := r.Uint8()
	if err != nil {
		return v, err
	}
	proposalHash, err := r.FixedBytes(32)
	if err != nil {
		return v, err
	}
	sig, err := r.FixedBytes(96)
	if err != nil {
		return v, err
	}
	v.ValidatorSlot = SlotNumber(slot)
	v.Round = RoundNumber(round)
	v.Step = Step(step)
	copy(v.ProposalHash[:], proposalHash)
	copy(v.Signature[:], sig)
	return v, nil
}

// EncodeValidatorSet serializes vs for chainstore persistence.
func EncodeValidatorSet(vs *ValidatorSet) ([]byte, error) {
	w := wire.NewWriter()
	w.PutUint32(uint32(vs.Len()))
	for i := 0; i < vs.Len(); i++ {
		v, _ := vs.Validator(ValidatorIndex(i))
		w.PutFixedBytes(v.PublicKey[:])
		w.PutFixedBytes(v.Address[:])
		w.PutUint16(v.NumSlots)
	}
	return w.Bytes(), nil
}

// DecodeValidatorSet reverses EncodeValidatorSet.
func DecodeValidatorSet(raw []byte) (*ValidatorSet, error) {
	r := wire.NewReader(raw)
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	validators := make([]Validator, count)
	for i := range validators {
		pub, err := r.FixedBytes(48)
		if err != nil {
			return nil, err
		}
		addr, err := r.FixedBytes(20)
		if err != nil {
			return nil, err
		}
		numSlots, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		copy(validators[i].PublicKey[:], pub)
		copy(validators[i].Address[:], addr)
		validators[i].NumSlots = numSlots
	}
	return NewValidatorSet(validators)
}
