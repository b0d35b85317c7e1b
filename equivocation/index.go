// Package equivocation tracks accepted misbehavior proofs so the
// blockchain never double-counts the same event across competing chain
// branches or repeated gossip deliveries.
package equivocation

import (
	"sync"

	"github.com/albatross-go/consensus/types"
)

// Index deduplicates equivocation proofs by their EquivocationLocator.
// The blockchain consults it to reject a block carrying an already
// recorded proof, and records newly accepted ones as they are pushed.
type Index struct {
	mu   sync.RWMutex
	seen map[types.EquivocationLocator]types.EquivocationProof
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{seen: make(map[types.EquivocationLocator]types.EquivocationProof)}
}

// Contains reports whether a proof with this locator was already recorded.
func (idx *Index) Contains(locator types.EquivocationLocator) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.seen[locator]
	return ok
}

// Insert records proof, keyed by its locator. It returns false without
// modifying the index if an equal locator is already present, so callers
// can tell a fresh accept from a redundant one.
func (idx *Index) Insert(proof types.EquivocationProof) bool {
	locator := proof.Locator()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.seen[locator]; ok {
		return false
	}
	idx.seen[locator] = proof
	return true
}

// Get returns the recorded proof for locator, if any.
func (idx *Index) Get(locator types.EquivocationLocator) (types.EquivocationProof, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	proof, ok := idx.seen[locator]
	return proof, ok
}

// Len returns the number of distinct proofs recorded.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.seen)
}

// ForBlockNumber returns every recorded proof at blockNumber, for
// inclusion in that block's equivocation-proof list or for pruning once
// the block becomes final.
func (idx *Index) ForBlockNumber(blockNumber types.BlockNumber) []types.EquivocationProof {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []types.EquivocationProof
	for locator, proof := range idx.seen {
		if locator.BlockNumber == blockNumber {
			out = append(out, proof)
		}
	}
	return out
}
