// Package blockchain implements the chain-extension decision logic:
// Blockchain.Push validates an incoming block against the current head,
// applies the fork-choice rule, and emits ordered events over the
// eventbus. It is the single writer spec.md §5 describes; every other
// subsystem (slot lookups, RPC, the TendermintDriver) reaches it only
// through its reader lock or through Push itself.
package blockchain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/albatross-go/consensus/chainstore"
	"github.com/albatross-go/consensus/equivocation"
	"github.com/albatross-go/consensus/eventbus"
	"github.com/albatross-go/consensus/policy"
	"github.com/albatross-go/consensus/slots"
	"github.com/albatross-go/consensus/types"
)

// StateApplier applies a block's transactions against the accounts trie
// and returns the resulting state root, so Push can check it against the
// block header's claimed StateRoot. The trie itself lives behind this
// interface (spec.md's persistent-storage-internals non-goal); a nil
// StateApplier makes Push trust the header's StateRoot unconditionally,
// which is adequate for the chain-extension logic this package tests.
type StateApplier interface {
	ApplyBlock(parentStateRoot types.Hash, block types.Block) (types.Hash, error)
	RevertBlock(block types.Block) error
}

// SignatureVerifier checks the BLS signatures this package cannot verify
// on its own: proposer signatures and Tendermint aggregate precommits.
// Real key material and pairing checks are an external collaborator
// (spec.md's wallet/ZKP non-goals); a nil SignatureVerifier skips
// cryptographic checks and trusts structural validity alone.
type SignatureVerifier interface {
	VerifyAggregate(message types.Hash, proof types.TendermintProof, vs *types.ValidatorSet) bool
}

// Option configures a Blockchain at construction time.
type Option func(*Blockchain)

// WithLogger overrides the default slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(bc *Blockchain) { bc.logger = logger }
}

// WithStateApplier installs a StateApplier; omit to trust header state roots.
func WithStateApplier(applier StateApplier) Option {
	return func(bc *Blockchain) { bc.applier = applier }
}

// WithSignatureVerifier installs a SignatureVerifier; omit to skip
// cryptographic verification.
func WithSignatureVerifier(verifier SignatureVerifier) Option {
	return func(bc *Blockchain) { bc.verifier = verifier }
}

// WithTrustedCheckpoint records a VerifiedCheckpoint an external
// state-sync protocol has already authenticated, for TrustedCheckpoint
// to report back to callers deciding whether full history is needed.
// Blockchain never verifies it itself.
func WithTrustedCheckpoint(checkpoint types.VerifiedCheckpoint) Option {
	return func(bc *Blockchain) { bc.trustedCheckpoint = &checkpoint }
}

// Blockchain is the guarded single-writer chain state spec.md §5
// describes. Readers take the RLock; Push takes the full Lock for the
// duration of one state transition.
type Blockchain struct {
	mu sync.RWMutex

	cfg      policy.Config
	store    chainstore.ChainStore
	accounts chainstore.AccountsStore
	events   *eventbus.EventBus
	equivs   *equivocation.Index
	logger   *slog.Logger
	applier  StateApplier
	verifier SignatureVerifier

	trustedCheckpoint *types.VerifiedCheckpoint

	head ChainHead

	slotAllocator *slots.SlotAllocator
}

// New builds a Blockchain over an already-initialized chain store whose
// genesis block and the validator sets of the head's epoch and the one
// before it (if any) are already persisted; see LoadGenesis for first-run
// initialization.
func New(cfg policy.Config, store chainstore.ChainStore, accounts chainstore.AccountsStore, events *eventbus.EventBus, opts ...Option) (*Blockchain, error) {
	head, err := store.Head()
	if err != nil {
		return nil, fmt.Errorf("blockchain: %w: load head: %v", ErrFailedLoadingMainChain, err)
	}

	headEpoch := cfg.EpochAt(uint32(head.BlockNumber))
	currentSlots, err := store.GetValidatorSet(headEpoch)
	if err != nil {
		return nil, fmt.Errorf("blockchain: %w: load epoch %d validator set: %v", ErrInvalidGenesisBlock, headEpoch, err)
	}
	var previousSlots *types.ValidatorSet
	if headEpoch > 0 {
		previousSlots, err = store.GetValidatorSet(headEpoch - 1)
		if err != nil {
			return nil, fmt.Errorf("blockchain: %w: load epoch %d validator set: %v", ErrFailedLoadingMainChain, headEpoch-1, err)
		}
	}

	lastMacroHash, err := store.LastMacroBlock()
	if err != nil {
		return nil, fmt.Errorf("blockchain: %w: load last macro block: %v", ErrFailedLoadingMainChain, err)
	}
	lastMacro, err := store.GetBlock(lastMacroHash)
	if err != nil {
		return nil, fmt.Errorf("blockchain: %w: resolve last macro block: %v", ErrFailedLoadingMainChain, err)
	}

	bc := &Blockchain{
		cfg:      cfg,
		store:    store,
		accounts: accounts,
		events:   events,
		equivs:   equivocation.NewIndex(),
		logger:   slog.Default(),
		head: ChainHead{
			Head:           head,
			LastMacroBlock: types.Checkpoint{Hash: lastMacroHash, BlockNumber: lastMacro.BlockNumber()},
			CurrentEpoch:   headEpoch,
			CurrentSlots:   currentSlots,
			PreviousSlots:  previousSlots,
		},
	}
	for _, opt := range opts {
		opt(bc)
	}
	bc.logger = bc.logger.With("component", "blockchain")
	bc.slotAllocator = slots.NewSlotAllocator(cfg, bc)
	return bc, nil
}

// LoadGenesis persists a genesis macro block and its validator set into a
// fresh store, and returns a Blockchain built over it. Callers seed a new
// network by calling this exactly once before any Push.
func LoadGenesis(cfg policy.Config, store chainstore.ChainStore, accounts chainstore.AccountsStore, events *eventbus.EventBus, genesis types.Block, validators *types.ValidatorSet, opts ...Option) (*Blockchain, error) {
	if genesis.Kind() != types.KindMacro {
		return nil, fmt.Errorf("blockchain: %w", ErrInvalidGenesisBlock)
	}
	hash, err := genesis.HeaderHash()
	if err != nil {
		return nil, fmt.Errorf("blockchain: %w: %v", ErrInvalidGenesisBlock, err)
	}

	if err := store.PutBlock(hash, genesis); err != nil {
		return nil, fmt.Errorf("blockchain: store genesis block: %w", err)
	}
	if err := store.PutValidatorSet(cfg.EpochAt(0), validators); err != nil {
		return nil, fmt.Errorf("blockchain: store genesis validator set: %w", err)
	}
	checkpoint := types.Checkpoint{Hash: hash, BlockNumber: genesis.BlockNumber()}
	if err := store.SetHead(checkpoint); err != nil {
		return nil, fmt.Errorf("blockchain: set genesis head: %w", err)
	}
	if err := store.SetLastMacroBlock(hash); err != nil {
		return nil, fmt.Errorf("blockchain: set genesis macro block: %w", err)
	}

	return New(cfg, store, accounts, events, opts...)
}

// LoadGenesisWithAccounts is LoadGenesis plus the genesis-accounts-state
// requirement: callers bootstrapping a network that needs a full
// accounts snapshot at block 0 (mandatory on mainnet) pass it here
// instead of threading it through the block body, since the snapshot
// itself is chunked through AccountsStore rather than wire-encoded into
// the macro block.
func LoadGenesisWithAccounts(cfg policy.Config, store chainstore.ChainStore, accounts chainstore.AccountsStore, events *eventbus.EventBus, genesis types.Block, validators *types.ValidatorSet, genesisAccounts []byte, opts ...Option) (*Blockchain, error) {
	if len(genesisAccounts) == 0 {
		if cfg.Mainnet {
			return nil, fmt.Errorf("blockchain: %w", ErrGenesisAccountsRequiredMainnet)
		}
		return nil, fmt.Errorf("blockchain: %w", ErrGenesisAccountsRequired)
	}

	bc, err := LoadGenesis(cfg, store, accounts, events, genesis, validators, opts...)
	if err != nil {
		return nil, err
	}

	hash, err := genesis.HeaderHash()
	if err != nil {
		return nil, fmt.Errorf("blockchain: %w: %v", ErrInvalidGenesisBlock, err)
	}
	if err := accounts.PutChunk(hash, 0, genesisAccounts); err != nil {
		return nil, fmt.Errorf("blockchain: store genesis accounts snapshot: %w", err)
	}
	return bc, nil
}

// Head returns the current chain head checkpoint.
func (bc *Blockchain) Head() types.Checkpoint {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.head.Head
}

// CurrentEpoch returns the epoch the head block belongs to.
func (bc *Blockchain) CurrentEpoch() uint32 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.head.CurrentEpoch
}

// SlotAllocator returns the allocator sharing this Blockchain's read
// lock, for the TendermintDriver and proposer-duty checks to use.
func (bc *Blockchain) SlotAllocator() *slots.SlotAllocator {
	return bc.slotAllocator
}

// DisabledSlotsBefore resolves the disabled-slot set a proposer at
// blockNumber must honor, by walking back from the current head to the
// macro block that installed it. Callers constructing a TendermintDriver
// for an upcoming macro height use this to fill in the set that
// ValidateProposer and the driver's own slot computation are checked
// against.
func (bc *Blockchain) DisabledSlotsBefore(blockNumber types.BlockNumber) (types.DisabledSlots, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	parent, err := bc.store.GetBlock(bc.head.Head.Hash)
	if err != nil {
		return types.DisabledSlots{}, fmt.Errorf("blockchain: load head block: %w", err)
	}
	return bc.disabledSlotsBefore(parent, uint32(blockNumber))
}

// TrustedCheckpoint returns the checkpoint installed by
// WithTrustedCheckpoint, if any, for a state-sync driver deciding how
// much history it still needs to backfill.
func (bc *Blockchain) TrustedCheckpoint() (types.VerifiedCheckpoint, bool) {
	if bc.trustedCheckpoint == nil {
		return types.VerifiedCheckpoint{}, false
	}
	return *bc.trustedCheckpoint, true
}

// PushChunks verifies and stores a batch of accounts-trie chunks
// received during history sync, delegating the actual membership proof
// to verify (the trie implementation is an external collaborator).
// Chunks that fail verification are reported, not fatal: the caller
// re-requests them from a different peer.
func (bc *Blockchain) PushChunks(blockHash types.Hash, startIndex uint32, chunks [][]byte, verify func(chunkIndex uint32, data []byte) error) (ChunksPushResult, error) {
	if len(chunks) == 0 {
		return ChunksPushResult{EmptyChunks: true}, nil
	}

	var result ChunksPushResult
	for i, chunk := range chunks {
		idx := startIndex + uint32(i)
		if err := verify(idx, chunk); err != nil {
			result.Ignored++
			return result, &ChunksPushError{ChunkIndex: int(idx), Err: err}
		}
		if err := bc.accounts.PutChunk(blockHash, idx, chunk); err != nil {
			return result, fmt.Errorf("blockchain: store chunk %d: %w", idx, err)
		}
		result.Committed++
	}
	return result, nil
}

// Push validates block and applies it to the chain, returning the
// outcome per spec.md §4.2's six-step algorithm. Only one Push may run
// at a time; it holds the writer lock for the whole state transition.
func (bc *Blockchain) Push(ctx context.Context, block types.Block) (PushResult, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	hash, err := block.HeaderHash()
	if err != nil {
		return 0, fmt.Errorf("blockchain: %w: header hash: %v", ErrInvalidSuccessor, err)
	}

	// Step 2: ancestry / already-known check.
	if _, err := bc.store.GetBlock(hash); err == nil {
		return Known, nil
	} else if err != chainstore.ErrNotFound {
		return 0, fmt.Errorf("blockchain: look up block %s: %w", hash.Short(), err)
	}

	parent, err := bc.store.GetBlock(block.ParentHash())
	if err != nil {
		if err == chainstore.ErrNotFound {
			return 0, fmt.Errorf("%w: parent %s of block %s not found", ErrOrphan, block.ParentHash().Short(), hash.Short())
		}
		return 0, fmt.Errorf("blockchain: look up parent %s: %w", block.ParentHash().Short(), err)
	}

	// Step 1: proposer eligibility for micro blocks (macro blocks are
	// justified by a TendermintProof instead, checked below). The
	// disabled set to honor is the one the preceding macro block
	// installed, not an empty set.
	if block.Kind() == types.KindMicro {
		micro, _ := block.Micro()
		disabled, err := bc.disabledSlotsBefore(parent, uint32(micro.BlockNumber))
		if err != nil {
			return 0, fmt.Errorf("blockchain: %w: resolve disabled slots: %v", ErrInvalidSuccessor, err)
		}
		dueSlot, err := bc.slotAllocator.ComputeSlotNumber(uint32(micro.BlockNumber), 0, parent.Seed(), disabled)
		if err != nil {
			return 0, fmt.Errorf("blockchain: %w: resolve proposer slot: %v", ErrInvalidSuccessor, err)
		}
		if micro.ProposerSlot != dueSlot {
			return 0, fmt.Errorf("%w: block %s claims slot %d, due slot is %d", ErrInvalidSuccessor, hash.Short(), micro.ProposerSlot, dueSlot)
		}
	}

	// Step 3: accounts/state-root check, delegated to the pluggable
	// StateApplier; trusted verbatim if none is installed.
	if bc.applier != nil {
		parentRoot := bc.stateRootOf(parent)
		gotRoot, err := bc.applier.ApplyBlock(parentRoot, block)
		if err != nil {
			return 0, fmt.Errorf("%w: apply block %s: %v", ErrIncompleteAccountsTrie, hash.Short(), err)
		}
		if gotRoot != bc.stateRootOf(block) {
			return 0, fmt.Errorf("%w: block %s state root mismatch", ErrInvalidSuccessor, hash.Short())
		}
	}

	// Step 4: equivocation proofs, micro blocks only.
	var proofs []types.EquivocationProof
	if block.Kind() == types.KindMicro {
		_, body := block.Micro()
		proofs = body.EquivocationProofs
		for _, proof := range proofs {
			if !proof.IsCanonical() {
				return 0, fmt.Errorf("%w: non-canonical equivocation proof at block %s", ErrInvalidSuccessor, hash.Short())
			}
			if bc.equivs.Contains(proof.Locator()) {
				return 0, &ErrEquivocationAlreadyIncluded{Locator: proof.Locator()}
			}
		}
	}

	if err := bc.store.PutBlock(hash, block); err != nil {
		return 0, fmt.Errorf("blockchain: persist block %s: %w", hash.Short(), err)
	}
	for _, proof := range proofs {
		bc.equivs.Insert(proof)
	}

	// Step 5: chain choice.
	result, adopted, reverted, err := bc.chooseChain(hash, block, parent)
	if err != nil {
		return 0, err
	}

	if result == Forked {
		bc.events.Publish(eventbus.BlockchainEvent{Kind: eventbus.Stored, AddedHashes: []types.Hash{hash}, BlockNumber: block.BlockNumber()})
		return Forked, nil
	}
	if result == Ignored {
		return Ignored, nil
	}

	kind := eventbus.Extended
	if result == Rebranched {
		kind = eventbus.Rebranched
	}
	bc.events.Publish(eventbus.BlockchainEvent{
		Kind:           kind,
		AddedHashes:    adopted,
		RevertedBlocks: reverted,
		BlockNumber:    block.BlockNumber(),
		Epoch:          bc.head.CurrentEpoch,
	})

	// Step 6: finalization events for macro/election blocks.
	if block.Kind() == types.KindMacro {
		macro, body := block.Macro()
		bc.head.LastMacroBlock = types.Checkpoint{Hash: hash, BlockNumber: macro.BlockNumber}
		if err := bc.store.SetLastMacroBlock(hash); err != nil {
			return 0, fmt.Errorf("blockchain: record last macro block: %w", err)
		}
		bc.events.Publish(eventbus.BlockchainEvent{Kind: eventbus.Finalized, BlockNumber: macro.BlockNumber, Epoch: bc.head.CurrentEpoch})

		if macro.IsElection {
			newEpoch := bc.head.CurrentEpoch + 1
			vs, err := types.NewValidatorSet(body.NextValidators)
			if err != nil {
				return 0, fmt.Errorf("%w: election block %s: %v", ErrNoValidatorsFound, hash.Short(), err)
			}
			if err := bc.store.PutValidatorSet(newEpoch, vs); err != nil {
				return 0, fmt.Errorf("blockchain: store epoch %d validator set: %w", newEpoch, err)
			}
			bc.advanceEpoch(newEpoch, vs)
			bc.events.Publish(eventbus.BlockchainEvent{Kind: eventbus.EpochFinalized, BlockNumber: macro.BlockNumber, Epoch: newEpoch})
		}
	}

	return result, nil
}

// disabledSlotsBefore resolves the disabled-slot set that governs
// blockNumber's proposer selection: the NextBatchInitialPunishedSet
// carried by the macro block at bc.cfg.MacroBlockBefore(blockNumber).
// parent is walked backward along its own branch (never through the
// canonical chain) so a block being validated off the current head
// still resolves the macro block its own ancestry actually installed.
func (bc *Blockchain) disabledSlotsBefore(parent types.Block, blockNumber uint32) (types.DisabledSlots, error) {
	target := bc.cfg.MacroBlockBefore(blockNumber)
	cursor := parent
	for cursor.BlockNumber() != target {
		next, err := bc.store.GetBlock(cursor.ParentHash())
		if err != nil {
			return types.DisabledSlots{}, fmt.Errorf("blockchain: walk to macro block %d: %w", target, err)
		}
		cursor = next
	}
	if cursor.Kind() != types.KindMacro {
		return types.DisabledSlots{}, fmt.Errorf("%w: block %d", ErrBlockIsNotMacro, target)
	}
	_, body := cursor.Macro()
	return body.NextBatchInitialPunishedSet, nil
}

// chooseChain implements step 5 of Push: decide whether block extends
// the head directly, rebrances onto a heavier sibling branch, forks onto
// a lighter one, or is ignored when its branch ties the head's score.
func (bc *Blockchain) chooseChain(hash types.Hash, block, parent types.Block) (PushResult, []types.Hash, []types.Hash, error) {
	if block.ParentHash() == bc.head.Head.Hash {
		bc.head.Head = types.Checkpoint{Hash: hash, BlockNumber: block.BlockNumber()}
		if err := bc.store.SetHead(bc.head.Head); err != nil {
			return 0, nil, nil, fmt.Errorf("blockchain: set head: %w", err)
		}
		return Extended, []types.Hash{hash}, nil, nil
	}

	newScore, err := computeForkScore(bc.store, hash, bc.cfg.BatchLength)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("blockchain: %w: %v", ErrInconsistentState, err)
	}
	currentScore, err := computeForkScore(bc.store, bc.head.Head.Hash, bc.cfg.BatchLength)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("blockchain: %w: %v", ErrInconsistentState, err)
	}

	if !newScore.Less(currentScore) && !newScore.Equal(currentScore) {
		adopted, reverted, err := bc.rebranch(hash, block)
		if err != nil {
			return 0, nil, nil, err
		}
		return Rebranched, adopted, reverted, nil
	}
	if newScore.Equal(currentScore) {
		return Ignored, nil, nil, nil
	}
	return Forked, nil, nil, nil
}

// rebranch walks both the old and new branches back to their common
// ancestor, reverts the abandoned blocks, replays the adopted ones and
// updates head. Both lists are returned oldest-first, matching
// eventbus.BlockchainEvent's documented ordering.
func (bc *Blockchain) rebranch(newTip types.Hash, newTipBlock types.Block) (adopted, reverted []types.Hash, err error) {
	oldChain, newChain, err := bc.commonAncestorPath(bc.head.Head.Hash, newTip)
	if err != nil {
		return nil, nil, err
	}

	// Revert newest-first so StateApplier sees each block's own effects
	// undone before its parent's.
	for i := len(oldChain) - 1; i >= 0; i-- {
		block, err := bc.store.GetBlock(oldChain[i])
		if err != nil {
			return nil, nil, fmt.Errorf("blockchain: load reverted block: %w", err)
		}
		if bc.applier != nil {
			if err := bc.applier.RevertBlock(block); err != nil {
				return nil, nil, fmt.Errorf("blockchain: revert block %s: %w", oldChain[i].Short(), err)
			}
		}
	}
	reverted = oldChain

	adopted = newChain
	bc.head.Head = types.Checkpoint{Hash: newTip, BlockNumber: newTipBlock.BlockNumber()}
	if err := bc.store.SetHead(bc.head.Head); err != nil {
		return nil, nil, fmt.Errorf("blockchain: set head after rebranch: %w", err)
	}
	return adopted, reverted, nil
}

// commonAncestorPath returns the blocks unique to oldTip and newTip,
// oldest first, stopping at their shared ancestor.
func (bc *Blockchain) commonAncestorPath(oldTip, newTip types.Hash) (oldPath, newPath []types.Hash, err error) {
	oldAncestors := map[types.Hash]int{}
	cursor := oldTip
	for i := 0; ; i++ {
		oldAncestors[cursor] = i
		block, err := bc.store.GetBlock(cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("blockchain: walk old branch: %w", err)
		}
		if block.BlockNumber() == 0 {
			break
		}
		cursor = block.ParentHash()
	}

	var forwardNew []types.Hash
	cursor = newTip
	for {
		if _, ok := oldAncestors[cursor]; ok {
			break
		}
		forwardNew = append(forwardNew, cursor)
		block, err := bc.store.GetBlock(cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("blockchain: walk new branch: %w", err)
		}
		if block.BlockNumber() == 0 {
			break
		}
		cursor = block.ParentHash()
	}
	ancestor := cursor

	var forwardOld []types.Hash
	cursor = oldTip
	for cursor != ancestor {
		forwardOld = append(forwardOld, cursor)
		block, err := bc.store.GetBlock(cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("blockchain: walk old branch forward: %w", err)
		}
		cursor = block.ParentHash()
	}

	reverseHashes(forwardOld)
	reverseHashes(forwardNew)
	return forwardOld, forwardNew, nil
}

func reverseHashes(hashes []types.Hash) {
	for i, j := 0, len(hashes)-1; i < j; i, j = i+1, j-1 {
		hashes[i], hashes[j] = hashes[j], hashes[i]
	}
}

func (bc *Blockchain) stateRootOf(block types.Block) types.Hash {
	if block.Kind() == types.KindMacro {
		h, _ := block.Macro()
		return h.StateRoot
	}
	h, _ := block.Micro()
	return h.StateRoot
}

// CommitMacroBlock implements tendermint.CommitSink: the driver hands us
// its decided macro header/body/proof, and we verify + push it like any
// other incoming block.
func (bc *Blockchain) CommitMacroBlock(ctx context.Context, header types.MacroHeader, body types.MacroBody, proof types.TendermintProof) error {
	bc.mu.RLock()
	vs := bc.head.CurrentSlots
	bc.mu.RUnlock()

	if bc.verifier != nil {
		block := types.NewMacroBlock(header, types.MacroBody{})
		hash, err := block.HeaderHash()
		if err != nil {
			return fmt.Errorf("blockchain: hash decided macro header: %w", err)
		}
		if !bc.verifier.VerifyAggregate(hash, proof, vs) {
			return fmt.Errorf("%w: aggregate signature failed verification", ErrDecidedJustificationInvalid)
		}
	}

	result, err := bc.Push(ctx, types.NewMacroBlock(header, body))
	if err != nil {
		return fmt.Errorf("blockchain: push decided macro block: %w", err)
	}
	bc.logger.Info("committed macro block", "block_number", header.BlockNumber, "result", result)
	return nil
}
