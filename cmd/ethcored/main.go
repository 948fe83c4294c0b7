// Copyright 2015, 2016 Ethcore (UK) Ltd.
// This file is part of Parity.

// Parity is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Parity is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.

// You should have received a copy of the GNU General Public License
// along with Parity.  If not, see <http://www.gnu.org/licenses/>.

// Command ethcored is the daemon: it loads a config and a chain spec,
// opens the state database, wires engine, client and RPC front end
// together, and runs the import loop until interrupted.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethcorego/ethcore/client"
	coreblock "github.com/ethcorego/ethcore/core/block"
	"github.com/ethcorego/ethcore/core/journaldb"
	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/txqueue"
	"github.com/ethcorego/ethcore/internal/config"
	"github.com/ethcorego/ethcore/internal/genesis"
	"github.com/ethcorego/ethcore/internal/panics"
	"github.com/ethcorego/ethcore/rpcfront"
)

func main() {
	app := &cli.App{
		Name:  "ethcored",
		Usage: "run a node",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a TOML config file"},
			&cli.StringFlag{Name: "data-dir", Usage: "overrides config's data_dir"},
			&cli.StringFlag{Name: "chain-spec", Usage: "overrides config's chain_spec"},
			&cli.StringFlag{Name: "pruning", Usage: "archive or fast, overrides config's pruning"},
			&cli.IntFlag{Name: "cache-size", Usage: "overrides config's cache_size_mb"},
			&cli.StringFlag{Name: "author", Usage: "overrides config's author (sealing address)"},
			&cli.StringFlag{Name: "extra-data", Usage: "overrides config's extra_data"},
			&cli.BoolFlag{Name: "sealing", Usage: "overrides config's sealing toggle"},
			&cli.StringFlag{Name: "rpc-addr", Usage: "overrides config's rpc.bind_addr"},
			&cli.BoolFlag{Name: "rpc", Usage: "overrides config's rpc.enabled"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Error("ethcored: fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	spec, err := genesis.Load(cfg.ChainSpecPath)
	if err != nil {
		return err
	}
	engine := spec.Engine()
	if cfg.Author != (common.Address{}) {
		// Sealing identity: the process only ever signs with a key supplied
		// out of band (wallet file, HSM, env var); wiring that lookup is
		// left to the deployment, so Authorize is a caller responsibility
		// this binary does not perform on its own.
		log.Info("ethcored: sealing author configured, Authorize must be wired by the deployment", "author", cfg.Author)
	}

	bootstrapDB := rawdb.NewMemoryDatabase()
	bootstrapHeader, err := spec.Header(state.NewDatabase(bootstrapDB), engine)
	if err != nil {
		return fmt.Errorf("ethcored: compute genesis: %w", err)
	}
	genesisHash := bootstrapHeader.Hash()

	statePath := journaldb.StatePath(cfg.DataDir, genesisHash, cfg.Archive())
	if err := os.MkdirAll(statePath, 0o755); err != nil {
		return fmt.Errorf("ethcored: create state dir: %w", err)
	}
	kv, err := rawdb.NewLevelDBDatabase(statePath, cfg.CacheSize, 256, "ethcored/", false)
	if err != nil {
		return fmt.Errorf("ethcored: open state db at %s: %w", statePath, err)
	}
	defer kv.Close()

	genesisHeader, err := spec.Header(state.NewDatabase(kv), engine)
	if err != nil {
		return fmt.Errorf("ethcored: persist genesis: %w", err)
	}

	extraData := []byte(cfg.ExtraData)
	c, err := client.New(client.Config{
		History:        cfg.History,
		Archive:        cfg.Archive(),
		CacheSize:      cfg.CacheSize,
		QueueWorkers:   4,
		SealingEnabled: cfg.Sealing,
		Author:         cfg.Author,
		ExtraData:      extraData,
	}, kv, engine, gethtypes.FrontierSigner{}, coreblock.ValueTransferExecutor{}, genesisHeader)
	if err != nil {
		return fmt.Errorf("ethcored: start client: %w", err)
	}
	defer c.Close()

	handler := panics.NewHandler()
	handler.OnPanic(func(reason string) {
		log.Error("ethcored: background goroutine panicked, exiting", "reason", reason)
		os.Exit(2)
	})

	txq := txqueue.New(stateNonceSource{c}, gethtypes.FrontierSigner{})

	var srv *http.Server
	if cfg.RPC.Enabled {
		rpc := rpcfront.New(c, txq, cfg.RPC.CORSDomain)
		srv = &http.Server{Addr: cfg.RPC.BindAddr, Handler: rpc}
		handler.Go("rpc", func() {
			log.Info("ethcored: rpc listening", "addr", cfg.RPC.BindAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("ethcored: rpc server exited", "err", err)
			}
		})
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	handler.Go("import-loop", func() { importLoop(c, stop) })

	<-stop
	log.Info("ethcored: shutting down")
	if srv != nil {
		_ = srv.Close()
	}
	return nil
}

func importLoop(c *client.Client, stop <-chan os.Signal) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			report, err := c.ImportVerifiedBlocks()
			if err != nil {
				log.Warn("ethcored: import round failed", "err", err)
				continue
			}
			if report.ImportedBlocks > 0 || report.BadBlocks > 0 {
				log.Info("ethcored: import round", "imported", report.ImportedBlocks, "bad", report.BadBlocks, "txs", report.ImportedTransactions)
			}
		}
	}
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if v := ctx.String("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := ctx.String("chain-spec"); v != "" {
		cfg.ChainSpecPath = v
	}
	if v := ctx.String("pruning"); v != "" {
		cfg.Pruning = v
	}
	if v := ctx.Int("cache-size"); v != 0 {
		cfg.CacheSize = v
	}
	if v := ctx.String("author"); v != "" {
		cfg.Author = common.HexToAddress(v)
	}
	if v := ctx.String("extra-data"); v != "" {
		cfg.ExtraData = v
	}
	if ctx.Bool("sealing") {
		cfg.Sealing = true
	}
	if v := ctx.String("rpc-addr"); v != "" {
		cfg.RPC.BindAddr = v
	}
	if ctx.Bool("rpc") {
		cfg.RPC.Enabled = true
	}
	return cfg, nil
}

// stateNonceSource answers txqueue.NonceSource from the client's current
// best state, so the pool can validate a sender's nonce against chain
// state without the RPC layer knowing anything about state internals.
type stateNonceSource struct{ c *client.Client }

func (s stateNonceSource) Nonce(addr common.Address) uint64 {
	return s.c.StateNonce(addr)
}
