package node

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/albatross-go/consensus/policy"
	"github.com/albatross-go/consensus/types"
)

func testPolicy() policy.Config {
	return policy.Config{BatchLength: 4, BatchesPerEpoch: 3, Slots: 4, BlockSeparationTime: 1000}
}

func testGenesis(t *testing.T) (types.Block, *types.ValidatorSet) {
	t.Helper()
	vs, err := types.NewValidatorSet([]types.Validator{{NumSlots: 4}})
	if err != nil {
		t.Fatalf("NewValidatorSet: %v", err)
	}
	header := types.MacroHeader{BlockNumber: 0}
	return types.NewMacroBlock(header, types.MacroBody{}), vs
}

func newTestNode(t *testing.T) *Node {
	t.Helper()
	genesis, vs := testGenesis(t)
	n, err := New(context.Background(), Config{Policy: testPolicy(), NetworkName: "test"}, genesis, vs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNewLoadsGenesisOnEmptyStore(t *testing.T) {
	n := newTestNode(t)
	if n.Chain().CurrentEpoch() != 0 {
		t.Fatalf("CurrentEpoch = %d, want 0", n.Chain().CurrentEpoch())
	}
}

func TestStartStopIsClean(t *testing.T) {
	n := newTestNode(t)
	n.Start()
	n.Stop()
}

func TestPendingTransactionsIsEmptyByDefault(t *testing.T) {
	n := newTestNode(t)
	if got := n.PendingTransactions(); got != nil {
		t.Fatalf("PendingTransactions = %v, want nil", got)
	}
}

func TestPushUpdatesMetricsThroughEventBus(t *testing.T) {
	n := newTestNode(t)
	n.Start()
	defer n.Stop()

	genesis, _ := testGenesis(t)
	parentHash, err := genesis.HeaderHash()
	if err != nil {
		t.Fatalf("HeaderHash: %v", err)
	}
	dueSlot, err := n.Chain().SlotAllocator().ComputeSlotNumber(1, 0, genesis.Seed(), types.DisabledSlots{})
	if err != nil {
		t.Fatalf("ComputeSlotNumber: %v", err)
	}
	block := types.NewMicroBlock(types.MicroHeader{
		BlockNumber:  1,
		ParentHash:   parentHash,
		ProposerSlot: dueSlot,
	}, types.MicroBody{})

	if _, err := n.Chain().Push(context.Background(), block); err != nil {
		t.Fatalf("Push: %v", err)
	}

	// watchEvents runs on its own goroutine; give it a chance to drain
	// the subscription before asserting on the metric it updates.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(n.metrics.headBlockNumber) == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("chain_head_block_number never reached 1, got %v", testutil.ToFloat64(n.metrics.headBlockNumber))
}
