// Package tendermint implements the Tendermint-style round/step state
// machine that finalizes macro blocks: proposal broadcast, prevote and
// precommit aggregation, the locking rule and round-skip on growing
// timeouts.
package tendermint

import (
	"fmt"
	"strings"

	"github.com/albatross-go/consensus/types"
)

// MacroState is the durable snapshot of one height's Tendermint run: a
// validator persists it after every step transition (the durable-vote
// rule) so a crash mid-round resumes instead of double-voting.
type MacroState struct {
	BlockNumber types.BlockNumber
	RoundNumber types.RoundNumber
	Step        types.Step

	// KnownProposals indexes every proposal this validator has seen at
	// this height by its header hash, regardless of round.
	KnownProposals map[types.Hash]types.MacroHeader
	// RoundProposals indexes, per round, which proposal hashes were
	// presented and at what valid round (nil meaning none).
	RoundProposals map[types.RoundNumber]map[types.Hash]*types.RoundNumber
	// Inherents mirrors KnownProposals for the macro body half of a
	// proposal, keyed the same way.
	Inherents map[types.Hash]types.MacroBody

	// Votes records, per (round, step), which proposal hash (if any)
	// this validator itself cast a vote for.
	Votes map[roundStep]*types.Hash
	// BestVotes records, per (round, step), the +2/3 prevote certificate
	// the locking rule accepted to unlock a re-proposal; the +2/3
	// threshold itself is detected on the aggregation layer's stream.
	BestVotes map[roundStep]*AggregateContribution

	// Locked is the (round, hash) pair this validator is locked on: it
	// cannot prevote for anything else unless a proposal for the other
	// value carries a valid round, no earlier than the lock, backed by a
	// +2/3 prevote certificate.
	Locked *LockedValue
	// Valid is the (round, hash) pair most recently backed by +2/3
	// prevotes, used to justify re-proposing across rounds.
	Valid *LockedValue
}

type roundStep struct {
	Round types.RoundNumber
	Step  types.Step
}

// LockedValue pairs a round with the proposal hash locked/valid at it.
type LockedValue struct {
	Round types.RoundNumber
	Hash  types.Hash
}

// NewMacroState returns the initial state for blockNumber: round 0, step
// propose, everything else empty.
func NewMacroState(blockNumber types.BlockNumber) *MacroState {
	return &MacroState{
		BlockNumber:    blockNumber,
		RoundNumber:    0,
		Step:           types.StepPropose,
		KnownProposals: make(map[types.Hash]types.MacroHeader),
		RoundProposals: make(map[types.RoundNumber]map[types.Hash]*types.RoundNumber),
		Inherents:      make(map[types.Hash]types.MacroBody),
		Votes:          make(map[roundStep]*types.Hash),
		BestVotes:      make(map[roundStep]*AggregateContribution),
	}
}

// RecordProposal indexes a seen proposal for later lookup by hash.
func (s *MacroState) RecordProposal(hash types.Hash, header types.MacroHeader, body types.MacroBody, round types.RoundNumber, validRound *types.RoundNumber) {
	s.KnownProposals[hash] = header
	s.Inherents[hash] = body

	byHash, ok := s.RoundProposals[round]
	if !ok {
		byHash = make(map[types.Hash]*types.RoundNumber)
		s.RoundProposals[round] = byHash
	}
	byHash[hash] = validRound
}

// ProposalAt returns the header/body this validator knows for hash, if any.
func (s *MacroState) ProposalAt(hash types.Hash) (types.MacroHeader, types.MacroBody, bool) {
	header, ok := s.KnownProposals[hash]
	if !ok {
		return types.MacroHeader{}, types.MacroBody{}, false
	}
	return header, s.Inherents[hash], true
}

// CastVote records that this validator voted for hash (or nil, the zero
// hash) at round/step.
func (s *MacroState) CastVote(round types.RoundNumber, step types.Step, hash types.Hash) {
	h := hash
	s.Votes[roundStep{round, step}] = &h
}

// VoteAt returns the hash this validator voted for at round/step, if any.
func (s *MacroState) VoteAt(round types.RoundNumber, step types.Step) (types.Hash, bool) {
	h, ok := s.Votes[roundStep{round, step}]
	if !ok || h == nil {
		return types.Hash{}, false
	}
	return *h, true
}

// Lock records that the validator is now locked on (round, hash).
func (s *MacroState) Lock(round types.RoundNumber, hash types.Hash) {
	s.Locked = &LockedValue{Round: round, Hash: hash}
}

// SetValid records that (round, hash) is now backed by +2/3 prevotes.
func (s *MacroState) SetValid(round types.RoundNumber, hash types.Hash) {
	s.Valid = &LockedValue{Round: round, Hash: hash}
}

// FromTendermintState rebuilds a MacroState from a live driver's
// in-memory state, for persistence after each step transition.
func FromTendermintState(blockNumber types.BlockNumber, d *TendermintDriver) *MacroState {
	return d.snapshot(blockNumber)
}

// IntoTendermintState restores s into a fresh driver for referenceHeight,
// or returns false if s belongs to a different height (the driver must
// then start over from round 0 instead of resuming stale state).
func (s *MacroState) IntoTendermintState(referenceHeight types.BlockNumber) (*MacroState, bool) {
	if s.BlockNumber != referenceHeight {
		return nil, false
	}
	return s, true
}

// String renders a short operator-facing summary of the in-flight
// round: height, round/step, and the locked/valid proposals by their
// short hash forms, for debug logging around round transitions.
func (s *MacroState) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MacroState{height=%d round=%d step=%s", s.BlockNumber, s.RoundNumber, s.Step)
	if s.Locked != nil {
		fmt.Fprintf(&b, " locked=(r%d,%s)", s.Locked.Round, s.Locked.Hash.Short())
	}
	if s.Valid != nil {
		fmt.Fprintf(&b, " valid=(r%d,%s)", s.Valid.Round, s.Valid.Hash.Short())
	}
	b.WriteString("}")
	return b.String()
}
