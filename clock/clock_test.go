package clock

import (
	"testing"
	"time"

	"github.com/albatross-go/consensus/policy"
)

func testPolicy() policy.Config {
	return policy.Config{BatchLength: 4, BatchesPerEpoch: 3, Slots: 4, BlockSeparationTime: 1000}
}

func TestCurrentBlockNumberBeforeGenesis(t *testing.T) {
	c := NewWithTimeFunc(testPolicy(), 10_000, func() time.Time { return time.UnixMilli(5_000) })
	if got := c.CurrentBlockNumber(); got != 0 {
		t.Fatalf("CurrentBlockNumber = %d, want 0", got)
	}
	if !c.IsBeforeGenesis() {
		t.Fatalf("expected IsBeforeGenesis to be true")
	}
}

func TestCurrentBlockNumberAdvancesWithSeparation(t *testing.T) {
	c := NewWithTimeFunc(testPolicy(), 0, func() time.Time { return time.UnixMilli(3_500) })
	if got := c.CurrentBlockNumber(); got != 3 {
		t.Fatalf("CurrentBlockNumber = %d, want 3", got)
	}
}

func TestExpectedTimestampAddsBlockSeparations(t *testing.T) {
	c := New(testPolicy(), 1_000)
	if got := c.ExpectedTimestamp(5); got != 6_000 {
		t.Fatalf("ExpectedTimestamp(5) = %d, want 6000", got)
	}
}
