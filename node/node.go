// Package node wires together the pieces this module owns outright —
// chain storage, Blockchain, the EventBus and Tendermint finalization —
// into a single runnable process. Networking, RPC and wallet signing
// are supplied by the embedder through the interfaces blockchain and
// tendermint already define; this package never constructs them itself.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/albatross-go/consensus/blockchain"
	"github.com/albatross-go/consensus/chainstore"
	"github.com/albatross-go/consensus/chainstore/memdb"
	"github.com/albatross-go/consensus/chainstore/pebbledb"
	"github.com/albatross-go/consensus/clock"
	"github.com/albatross-go/consensus/eventbus"
	"github.com/albatross-go/consensus/types"
)

// Node owns one validator's view of chain state: its store, its
// Blockchain and the event stream the rest of the process (metrics,
// RPC, a Tendermint driver per macro height) observes it through.
type Node struct {
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	store     chainstore.ChainStore
	accounts  chainstore.AccountsStore
	ownsStore bool

	events  *eventbus.EventBus
	chain   *blockchain.Blockchain
	metrics *metrics
	clk     *clock.BlockClock

	sub *eventbus.Subscription
}

// openStore opens a pebbledb.Store under cfg.DataDir, or an in-memory
// memdb.Store if DataDir is empty.
func openStore(cfg Config) (chainstore.ChainStore, chainstore.AccountsStore, bool, error) {
	if cfg.DataDir == "" {
		s := memdb.New()
		return s, s, false, nil
	}
	s, err := pebbledb.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, false, fmt.Errorf("node: open store at %s: %w", cfg.DataDir, err)
	}
	return s, s, true, nil
}

// New constructs a Node. A store with no recorded head is treated as
// fresh and seeded via blockchain.LoadGenesis(genesis, validators); a
// store that already has a head loads its existing chain state and
// ignores genesis/validators entirely.
func New(ctx context.Context, cfg Config, genesis types.Block, validators *types.ValidatorSet, opts ...blockchain.Option) (*Node, error) {
	logger := cfg.logger().With("component", "node", "network", cfg.NetworkName)

	store, accounts, owns, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	opts = append([]blockchain.Option{blockchain.WithLogger(logger)}, opts...)
	events := eventbus.New(logger)

	var chain *blockchain.Blockchain
	if _, headErr := store.Head(); errors.Is(headErr, chainstore.ErrNotFound) {
		chain, err = blockchain.LoadGenesis(cfg.Policy, store, accounts, events, genesis, validators, opts...)
	} else {
		chain, err = blockchain.New(cfg.Policy, store, accounts, events, opts...)
	}
	if err != nil {
		if owns {
			store.Close()
		}
		return nil, fmt.Errorf("node: initialize chain: %w", err)
	}

	var clk *clock.BlockClock
	if cfg.GenesisTime != 0 {
		clk = clock.New(cfg.Policy, cfg.GenesisTime)
	}

	nodeCtx, cancel := context.WithCancel(ctx)
	return &Node{
		cfg:       cfg,
		logger:    logger,
		ctx:       nodeCtx,
		cancel:    cancel,
		store:     store,
		accounts:  accounts,
		ownsStore: owns,
		events:    events,
		chain:     chain,
		metrics:   newMetrics(metricsNamespace(cfg.NetworkName)),
		clk:       clk,
	}, nil
}

func metricsNamespace(network string) string {
	if network == "" {
		return "albatross"
	}
	return "albatross_" + network
}

// Chain returns the Node's Blockchain, for proposer/voter logic and a
// Tendermint driver's CommitSink to reach.
func (n *Node) Chain() *blockchain.Blockchain {
	return n.chain
}

// EventBus returns the Node's event stream.
func (n *Node) EventBus() *eventbus.EventBus {
	return n.events
}

// PendingTransactions returns the hashes of transactions a proposer
// should consider including in the next micro block. Mempool policy is
// an external collaborator's concern; the zero-value Node has none
// queued, so an embedder that wires one in overrides this method's
// caller rather than Node itself carrying mempool state.
func (n *Node) PendingTransactions() []types.Hash {
	return nil
}

// Start begins background processing: metrics collection from the
// event stream. Block production and Tendermint finalization are
// driven separately, by RunMacroHeight and whatever proposes micro
// blocks, since both need signing key material this package doesn't have.
func (n *Node) Start() {
	n.sub = n.events.Subscribe()
	n.wg.Add(1)
	go n.watchEvents()
	n.logger.Info("node started", "head", n.chain.Head().Hash.Short(), "epoch", n.chain.CurrentEpoch())
}

// Stop cancels background work and releases the chain store.
func (n *Node) Stop() {
	n.cancel()
	if n.sub != nil {
		n.sub.Unsubscribe()
	}
	n.wg.Wait()
	if n.ownsStore {
		if err := n.store.Close(); err != nil {
			n.logger.Warn("error closing chain store", "error", err)
		}
	}
	n.logger.Info("node stopped")
}

func (n *Node) watchEvents() {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			return
		case ev, ok := <-n.sub.Events():
			if !ok {
				return
			}
			n.metrics.observeEvent(ev)
			if n.clk != nil && (ev.Kind == eventbus.Extended || ev.Kind == eventbus.Rebranched) {
				drift := float64(time.Now().UnixMilli()) - float64(n.clk.ExpectedTimestamp(ev.BlockNumber))
				n.metrics.observeDrift(drift)
			}
			n.logger.Debug("chain event", "kind", ev.Kind, "block_number", ev.BlockNumber, "epoch", ev.Epoch)
		}
	}
}
