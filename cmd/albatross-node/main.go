// Command albatross-node runs one validator's consensus-core process:
// chain storage, Blockchain push/rebranch logic and the EventBus it
// publishes to. It does not speak to peers or a wallet; RunMacroHeight
// and block propagation are left for an embedder (a P2P/RPC process)
// to drive through the exported node.Node API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/albatross-go/consensus/node"
	"github.com/albatross-go/consensus/policy"
	"github.com/albatross-go/consensus/types"
)

func main() {
	dataDir := flag.String("data-dir", "", "Directory for durable chain storage (empty keeps state in memory)")
	genesisPath := flag.String("genesis", "", "Path to a genesis/network YAML config (empty uses compiled-in defaults)")
	networkName := flag.String("network", "devnet", "Network name, used to label logs and metrics")
	metricsAddr := flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (empty disables the endpoint)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	level := slog.LevelInfo
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg := policy.DefaultConfig()
	var genesisSeed string
	if *genesisPath != "" {
		gcfg, err := policy.LoadGenesisConfig(*genesisPath)
		if err != nil {
			logger.Error("failed to load genesis config", "error", err)
			os.Exit(1)
		}
		cfg = gcfg.Config
		genesisSeed = gcfg.GenesisSeed
		*networkName = gcfg.NetworkName
	}

	genesis, validators, err := buildGenesis(cfg, genesisSeed)
	if err != nil {
		logger.Error("failed to build genesis block", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n, err := node.New(ctx, node.Config{
		Policy:      cfg,
		DataDir:     *dataDir,
		NetworkName: *networkName,
		Logger:      logger,
	}, genesis, validators)
	if err != nil {
		logger.Error("failed to create node", "error", err)
		os.Exit(1)
	}

	n.Start()
	logger.Info("albatross-node running", "head", n.Chain().Head().Hash.Short(), "epoch", n.Chain().CurrentEpoch())

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(n.Registry(), promhttp.HandlerOpts{}))
		server := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics endpoint listening", "addr", *metricsAddr)
		defer server.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	n.Stop()
	cancel()
}

// buildGenesis constructs block zero and its validator set for networks
// that don't hand a pre-built genesis snapshot to every node; seed is
// mixed into the single genesis validator's address so distinct
// networks don't collide on an all-zero identity.
func buildGenesis(cfg policy.Config, seed string) (types.Block, *types.ValidatorSet, error) {
	validator := types.Validator{NumSlots: cfg.Slots}
	copy(validator.Address[:], []byte(seed))

	vs, err := types.NewValidatorSet([]types.Validator{validator})
	if err != nil {
		return types.Block{}, nil, fmt.Errorf("build genesis validator set: %w", err)
	}

	header := types.MacroHeader{BlockNumber: 0, IsElection: true}
	body := types.MacroBody{NextValidators: []types.Validator{validator}}
	return types.NewMacroBlock(header, body), vs, nil
}
