package tendermint

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/albatross-go/consensus/types"
	"github.com/albatross-go/consensus/vrf"
)

// ProposerLookup resolves which validator slot is due to propose a
// round, and its signing identity — the blockchain layer's slot
// allocator, accessed only through its read lock (spec.md §5).
type ProposerLookup interface {
	GetProposer(blockNumber uint32, offset uint32, parentSeed vrf.Seed, disabled types.DisabledSlots) (types.Validator, types.ValidatorIndex, error)
	ComputeSlotNumber(blockNumber uint32, offset uint32, parentSeed vrf.Seed, disabled types.DisabledSlots) (types.SlotNumber, error)
}

// CommitSink receives the macro block this validator's driver decided,
// for the blockchain layer to verify and push.
type CommitSink interface {
	CommitMacroBlock(ctx context.Context, header types.MacroHeader, body types.MacroBody, proof types.TendermintProof) error
}

// PersistFunc is called after every state transition so a crash can
// resume instead of double-voting (the durable-vote rule).
type PersistFunc func(*MacroState)

// TendermintDriver runs the round/step state machine for one macro
// height. It owns its MacroState exclusively; all interaction with the
// rest of the node happens through ProposerLookup, CommitSink and the
// AggregationLayer it was constructed with.
type TendermintDriver struct {
	logger     *slog.Logger
	agg        AggregationLayer
	proposer   ProposerLookup
	sink       CommitSink
	timeouts   Timeouts
	persist    PersistFunc
	totalSlots uint16
	disabled   types.DisabledSlots

	mu    sync.Mutex
	state *MacroState
}

// NewTendermintDriver constructs a driver for blockNumber, resuming from
// resumed if non-nil (and matching blockNumber) or starting fresh at
// round 0 otherwise.
func NewTendermintDriver(
	blockNumber types.BlockNumber,
	resumed *MacroState,
	totalSlots uint16,
	agg AggregationLayer,
	proposer ProposerLookup,
	sink CommitSink,
	persist PersistFunc,
	logger *slog.Logger,
	disabled types.DisabledSlots,
) *TendermintDriver {
	if logger == nil {
		logger = slog.Default()
	}
	state := NewMacroState(blockNumber)
	if resumed != nil {
		if restored, ok := resumed.IntoTendermintState(blockNumber); ok {
			state = restored
		}
	}
	return &TendermintDriver{
		logger:     logger.With("component", "tendermint", "block_number", blockNumber),
		agg:        agg,
		proposer:   proposer,
		sink:       sink,
		timeouts:   DefaultTimeouts(),
		persist:    persist,
		totalSlots: totalSlots,
		disabled:   disabled,
		state:      state,
	}
}

// snapshot returns a deep-enough copy of the driver's current state for
// persistence; MacroState's maps are already private to the driver so a
// shallow copy plus explicit map duplication is sufficient.
func (d *TendermintDriver) snapshot(blockNumber types.BlockNumber) *MacroState {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *d.state
	cp.KnownProposals = maps.Clone(d.state.KnownProposals)
	cp.RoundProposals = make(map[types.RoundNumber]map[types.Hash]*types.RoundNumber, len(d.state.RoundProposals))
	for r, props := range d.state.RoundProposals {
		cp.RoundProposals[r] = maps.Clone(props)
	}
	cp.Inherents = maps.Clone(d.state.Inherents)
	cp.Votes = maps.Clone(d.state.Votes)
	cp.BestVotes = maps.Clone(d.state.BestVotes)
	return &cp
}

func (d *TendermintDriver) persistLocked() {
	if d.persist != nil {
		d.persist(d.state)
	}
}

// ourVote is supplied by the caller per round/step: the local validator
// signs its own SignedVote outside this package (key material is an
// external collaborator) and the driver only routes it into the
// aggregation layer.
type ourVoteFunc func(round types.RoundNumber, step types.Step, proposalHash types.Hash) (types.SignedVote, error)

// Run drives the state machine to completion: it returns once a macro
// block has been committed via CommitSink, or ctx is canceled. Network
// partitions surface as repeated round-skips, never as a blocked Run.
func (d *TendermintDriver) Run(ctx context.Context, ourVote ourVoteFunc, proposals <-chan types.SignedProposal, parentSeed vrf.Seed) error {
	for {
		d.mu.Lock()
		round := d.state.RoundNumber
		step := d.state.Step
		d.mu.Unlock()

		d.logger.Debug("entering step", "round", round, "step", step)

		switch step {
		case types.StepPropose:
			if err := d.runPropose(ctx, ourVote, proposals, parentSeed, round); err != nil {
				if err == errRoundSkip {
					continue
				}
				return err
			}
		case types.StepPrevote:
			if err := d.runVoteStep(ctx, ourVote, types.StepPrevote, round); err != nil {
				if err == errRoundSkip {
					continue
				}
				return err
			}
		case types.StepPrecommit:
			decided, err := d.runPrecommit(ctx, ourVote, round)
			if err != nil {
				if err == errRoundSkip {
					continue
				}
				return err
			}
			if decided {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

var errRoundSkip = fmt.Errorf("tendermint: round skipped on step timeout")

func (d *TendermintDriver) runPropose(ctx context.Context, ourVote ourVoteFunc, proposals <-chan types.SignedProposal, parentSeed vrf.Seed, round types.RoundNumber) error {
	timeout := time.NewTimer(d.timeouts.Propose.Duration(uint32(round)))
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case proposal := <-proposals:
			if proposal.Proposal.Round != round {
				continue
			}
			// Invalid proposals (bad proposer slot) are dropped here
			// rather than failing Run; BLS signature verification over
			// the proposal itself is the external collaborator's job
			// before it ever reaches this channel.
			if err := d.ValidateProposer(proposal, parentSeed, d.disabled); err != nil {
				d.logger.Warn("dropping proposal that fails proposer eligibility", "round", round, "slot", proposal.Slot, "error", err)
				continue
			}
			hash, err := hashMacroHeader(proposal.Proposal.Header)
			if err != nil {
				return err
			}

			vote, err := d.prevoteChoice(hash, round, proposal.Proposal.ValidRound)
			if err != nil {
				return err
			}

			d.mu.Lock()
			d.state.RecordProposal(hash, proposal.Proposal.Header, proposal.Proposal.Body, round, proposal.Proposal.ValidRound)
			d.state.CastVote(round, types.StepPrevote, vote)
			d.advanceToLocked(round, types.StepPrevote)
			d.persistLocked()
			d.mu.Unlock()
			return nil
		case <-timeout.C:
			d.mu.Lock()
			d.state.CastVote(round, types.StepPrevote, types.Hash{})
			d.advanceToLocked(round, types.StepPrevote)
			d.persistLocked()
			d.mu.Unlock()
			return nil
		}
	}
}

// prevoteChoice applies the locking rule: vote for the proposal unless
// locked on a different value without sufficient unlock evidence. A
// claimed validRound only unlocks the vote if the aggregation layer
// actually holds a +⅔ prevote certificate for hash at that round; an
// unsubstantiated claim is treated the same as no valid round at all.
func (d *TendermintDriver) prevoteChoice(hash types.Hash, round types.RoundNumber, validRound *types.RoundNumber) (types.Hash, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Locked == nil || d.state.Locked.Hash == hash {
		return hash, nil
	}
	if validRound == nil || *validRound < d.state.Locked.Round {
		return types.Hash{}, nil
	}

	certificate := d.agg.Best(*validRound, types.StepPrevote)
	if certificate == nil || certificate.ProposalHash != hash || !certificate.meetsThreshold(d.totalSlots) {
		return types.Hash{}, nil
	}
	d.state.BestVotes[roundStep{Round: *validRound, Step: types.StepPrevote}] = certificate
	return hash, nil
}

func (d *TendermintDriver) runVoteStep(ctx context.Context, ourVote ourVoteFunc, step types.Step, round types.RoundNumber) error {
	hash, known := d.state.VoteAt(round, step)
	if !known {
		hash = types.Hash{}
	}
	vote, err := ourVote(round, step, hash)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.state.CastVote(round, step, hash)
	d.mu.Unlock()

	timeoutCfg := d.timeouts.Prevote
	timeout := time.NewTimer(timeoutCfg.Duration(uint32(round)))
	defer timeout.Stop()

	stream, err := d.agg.Start(ctx, round, step, vote)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case contribution := <-stream:
			if contribution == nil {
				continue
			}
			if contribution.meetsThreshold(d.totalSlots) {
				d.mu.Lock()
				if !contribution.ProposalHash.IsZero() {
					d.state.Lock(round, contribution.ProposalHash)
					d.state.SetValid(round, contribution.ProposalHash)
				}
				d.advanceToLocked(round, types.StepPrecommit)
				d.persistLocked()
				d.mu.Unlock()
				return nil
			}
		case <-timeout.C:
			d.mu.Lock()
			d.advanceToLocked(round+1, types.StepPropose)
			d.persistLocked()
			d.mu.Unlock()
			return errRoundSkip
		}
	}
}

func (d *TendermintDriver) runPrecommit(ctx context.Context, ourVote ourVoteFunc, round types.RoundNumber) (bool, error) {
	hash, known := d.state.VoteAt(round, types.StepPrecommit)
	if !known {
		if d.state.Valid != nil && d.state.Valid.Round == round {
			hash = d.state.Valid.Hash
		} else {
			hash = types.Hash{}
		}
	}
	vote, err := ourVote(round, types.StepPrecommit, hash)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	d.state.CastVote(round, types.StepPrecommit, hash)
	d.persistLocked()
	d.mu.Unlock()

	timeout := time.NewTimer(d.timeouts.Precommit.Duration(uint32(round)))
	defer timeout.Stop()

	stream, err := d.agg.Start(ctx, round, types.StepPrecommit, vote)
	if err != nil {
		return false, err
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case contribution := <-stream:
			if contribution == nil {
				continue
			}
			if contribution.meetsThreshold(d.totalSlots) && !contribution.ProposalHash.IsZero() {
				return true, d.commit(ctx, contribution)
			}
		case <-timeout.C:
			d.mu.Lock()
			d.advanceToLocked(round+1, types.StepPropose)
			d.persistLocked()
			d.mu.Unlock()
			return false, errRoundSkip
		}
	}
}

func (d *TendermintDriver) commit(ctx context.Context, contribution *AggregateContribution) error {
	d.mu.Lock()
	header, body, ok := d.state.ProposalAt(contribution.ProposalHash)
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("tendermint: %w: decided hash %s has no known proposal", ErrDecidedBodyInvalid, contribution.ProposalHash.Short())
	}

	proof := types.TendermintProof{
		Round:               contribution.Round,
		AggregatedSignature: contribution.Signature,
		SignerBitset:        contribution.Signers,
	}
	if err := d.sink.CommitMacroBlock(ctx, header, body, proof); err != nil {
		return fmt.Errorf("tendermint: %w: %w", ErrDecidedBodyInvalid, err)
	}
	return nil
}

func (d *TendermintDriver) advanceToLocked(round types.RoundNumber, step types.Step) {
	d.state.RoundNumber = round
	d.state.Step = step
}

// ValidateProposer checks that proposal's claimed slot is indeed due to
// propose at its round. runPropose calls it on every proposal it
// receives and drops the ones that fail.
func (d *TendermintDriver) ValidateProposer(proposal types.SignedProposal, parentSeed vrf.Seed, disabled types.DisabledSlots) error {
	dueSlot, err := d.proposer.ComputeSlotNumber(uint32(proposal.Proposal.Header.BlockNumber), uint32(proposal.Proposal.Round), parentSeed, disabled)
	if err != nil {
		return err
	}
	if proposal.Slot != dueSlot {
		return ErrInvalidProposer
	}
	return nil
}

func hashMacroHeader(h types.MacroHeader) (types.Hash, error) {
	block := types.NewMacroBlock(h, types.MacroBody{})
	return block.HeaderHash()
}
