package node

import (
	"log/slog"

	"github.com/albatross-go/consensus/policy"
)

// Config gathers the construction-time parameters for a Node: the
// network's policy constants and where its chain state lives on disk.
// P2P listen addresses, RPC bind addresses and wallet key material are
// an external collaborator's concern and have no home here.
type Config struct {
	Policy policy.Config

	// DataDir is the directory a durable (pebbledb) store opens under.
	// Left empty, New keeps chain state in memory only.
	DataDir string

	// NetworkName labels this node's logs and metrics; it has no effect
	// on consensus behavior.
	NetworkName string

	// GenesisTime is the Unix millisecond timestamp block 0 was produced
	// at. Left zero, the Node skips block-production drift tracking.
	GenesisTime uint64

	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
