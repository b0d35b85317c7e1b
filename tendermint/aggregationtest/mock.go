// Package aggregationtest provides a deterministic, in-memory
// tendermint.AggregationLayer double for driver tests: votes are
// submitted directly instead of gossiped, and contributions are computed
// synchronously from whatever votes have been submitted so far.
package aggregationtest

import (
	"context"
	"sync"

	"github.com/OffchainLabs/go-bitfield"

	"github.com/albatross-go/consensus/tendermint"
	"github.com/albatross-go/consensus/types"
)

type key struct {
	Round types.RoundNumber
	Step  types.Step
}

// Aggregator is a test double implementing tendermint.AggregationLayer.
// Call SubmitVote to simulate a remote validator's contribution arriving;
// Start's own call registers the local vote the same way.
type Aggregator struct {
	totalSlots uint16

	mu        sync.Mutex
	votes     map[key]map[types.SlotNumber]types.SignedVote
	listeners map[key][]chan *tendermint.AggregateContribution
}

// New returns an Aggregator sized for totalSlots.
func New(totalSlots uint16) *Aggregator {
	return &Aggregator{
		totalSlots: totalSlots,
		votes:      make(map[key]map[types.SlotNumber]types.SignedVote),
		listeners:  make(map[key][]chan *tendermint.AggregateContribution),
	}
}

// Start implements tendermint.AggregationLayer.
func (a *Aggregator) Start(ctx context.Context, round types.RoundNumber, step types.Step, ourVote types.SignedVote) (<-chan *tendermint.AggregateContribution, error) {
	ch := make(chan *tendermint.AggregateContribution, 8)

	a.mu.Lock()
	k := key{Round: round, Step: step}
	a.listeners[k] = append(a.listeners[k], ch)
	a.mu.Unlock()

	a.SubmitVote(round, step, ourVote)
	return ch, nil
}

// Best implements tendermint.AggregationLayer.
func (a *Aggregator) Best(round types.RoundNumber, step types.Step) *tendermint.AggregateContribution {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bestLocked(round, step)
}

// SubmitVote simulates a validator's vote arriving, recomputes the best
// contribution per proposal hash, and notifies Start's listeners with
// the single best (highest-coverage) contribution.
func (a *Aggregator) SubmitVote(round types.RoundNumber, step types.Step, vote types.SignedVote) {
	a.mu.Lock()
	k := key{Round: round, Step: step}
	byValidator, ok := a.votes[k]
	if !ok {
		byValidator = make(map[types.SlotNumber]types.SignedVote)
		a.votes[k] = byValidator
	}
	byValidator[vote.ValidatorSlot] = vote

	best := a.bestLocked(round, step)
	listeners := append([]chan *tendermint.AggregateContribution(nil), a.listeners[k]...)
	a.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- best:
		default:
		}
	}
}

func (a *Aggregator) bestLocked(round types.RoundNumber, step types.Step) *tendermint.AggregateContribution {
	byValidator := a.votes[key{Round: round, Step: step}]
	if len(byValidator) == 0 {
		return nil
	}

	counts := make(map[types.Hash]int)
	for _, v := range byValidator {
		counts[v.ProposalHash]++
	}

	var bestHash types.Hash
	bestCount := -1
	for hash, count := range counts {
		if count > bestCount {
			bestHash = hash
			bestCount = count
		}
	}

	signers := bitfield.NewBitlist(uint64(a.totalSlots))
	for _, v := range byValidator {
		if v.ProposalHash == bestHash {
			signers.SetBitAt(uint64(v.ValidatorSlot), true)
		}
	}

	return &tendermint.AggregateContribution{
		Round:        round,
		Step:         step,
		ProposalHash: bestHash,
		Signers:      signers,
	}
}
