package policy

import "testing"

func testConfig() Config {
	return Config{BatchLength: 4, BatchesPerEpoch: 3, Slots: 16, BlockSeparationTime: 1000}
}

func TestBatchAndEpochAt(t *testing.T) {
	c := testConfig()

	cases := []struct {
		number        uint32
		wantBatch     uint32
		wantEpoch     uint32
		wantMacro     bool
		wantElection  bool
	}{
		{0, 0, 0, false, false},
		{4, 1, 0, true, false},
		{8, 2, 0, true, false},
		{12, 3, 1, true, true},
		{16, 4, 1, true, false},
		{24, 6, 2, true, true},
	}

	for _, tc := range cases {
		if got := c.BatchAt(tc.number); got != tc.wantBatch {
			t.Errorf("BatchAt(%d) = %d, want %d", tc.number, got, tc.wantBatch)
		}
		if got := c.EpochAt(tc.number); got != tc.wantEpoch {
			t.Errorf("EpochAt(%d) = %d, want %d", tc.number, got, tc.wantEpoch)
		}
		if got := c.IsMacroBlockAt(tc.number); got != tc.wantMacro {
			t.Errorf("IsMacroBlockAt(%d) = %v, want %v", tc.number, got, tc.wantMacro)
		}
		if got := c.IsElectionBlockAt(tc.number); got != tc.wantElection {
			t.Errorf("IsElectionBlockAt(%d) = %v, want %v", tc.number, got, tc.wantElection)
		}
	}
}

func TestMacroBlockBefore(t *testing.T) {
	c := testConfig()

	cases := []struct {
		number uint32
		want   uint32
	}{
		{0, 0},
		{1, 0},
		{4, 0},
		{5, 4},
		{7, 4},
		{8, 4},
		{9, 8},
	}

	for _, tc := range cases {
		if got := c.MacroBlockBefore(tc.number); got != tc.want {
			t.Errorf("MacroBlockBefore(%d) = %d, want %d", tc.number, got, tc.want)
		}
	}
}

func TestElectionBlockOf(t *testing.T) {
	c := testConfig()

	if got := c.ElectionBlockOf(0); got != 0 {
		t.Errorf("ElectionBlockOf(0) = %d, want 0", got)
	}
	if got := c.ElectionBlockOf(1); got != 12 {
		t.Errorf("ElectionBlockOf(1) = %d, want 12", got)
	}
	if got := c.ElectionBlockOf(2); got != 24 {
		t.Errorf("ElectionBlockOf(2) = %d, want 24", got)
	}
}

func TestFirstBlockOf(t *testing.T) {
	c := testConfig()

	if got := c.FirstBlockOf(0); got != 1 {
		t.Errorf("FirstBlockOf(0) = %d, want 1", got)
	}
	if got := c.FirstBlockOf(1); got != 13 {
		t.Errorf("FirstBlockOf(1) = %d, want 13", got)
	}
}
