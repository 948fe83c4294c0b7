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

// Package client orchestrates the whole import pipeline: raw bytes arrive,
// the block queue structurally preverifies them off the caller's goroutine,
// import_verified_blocks replays, validates, commits and indexes a batch at
// a time, and listeners are told what changed. It is the one package that
// knows about every other package in this module.
package client

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/blockqueue"
	"github.com/ethcorego/ethcore/chainindex"
	"github.com/ethcorego/ethcore/consensus"
	"github.com/ethcorego/ethcore/core/block"
	"github.com/ethcorego/ethcore/core/journaldb"
	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/types"
	"github.com/ethcorego/ethcore/core/verifier"
)

// ErrAlreadyInChain is returned by ImportBlock for a hash the chain index
// already holds.
var ErrAlreadyInChain = errors.New("client: block already in chain")

// ErrUnknownParent names a block whose parent is unknown. ImportBlock does
// not check the parent and never returns it: a block with an unknown parent
// is queued, and ImportVerifiedBlocks rejects it when the parent's header is
// missing from the chain index.
var ErrUnknownParent = errors.New("client: unknown parent")

// ErrPowHashInvalid is returned by SubmitSeal when pow_hash does not match
// the block currently held in the sealing slot.
var ErrPowHashInvalid = errors.New("client: pow hash does not match sealing slot")

// ErrPowInvalid is returned by SubmitSeal when the engine rejects the
// supplied seal.
var ErrPowInvalid = errors.New("client: seal rejected by engine")

// ErrNoSealingWork is returned by SubmitSeal when no block is currently
// queued for sealing.
var ErrNoSealingWork = errors.New("client: no block awaiting a seal")

const maxLastHashes = 256

// importBatchSize bounds how many blocks import_verified_blocks drains and
// processes per call, so one call never blocks the caller's goroutine on an
// unbounded amount of work.
const importBatchSize = 128

// Config is the subset of process configuration the import pipeline itself
// needs (everything else — network, RPC, discovery — lives in
// internal/config).
type Config struct {
	History        uint64 // blocks of trie history retained before pruning
	Archive        bool   // disable pruning entirely
	CacheSize      int    // chain-index LRU entry count
	QueueWorkers   int    // block-queue stage-1 verification workers
	SealingEnabled bool
	Author         common.Address
	ExtraData      []byte
}

// Report accrues import statistics across calls to ImportVerifiedBlocks,
// the client's equivalent of Parity's ClientReport.
type Report struct {
	ImportedBlocks       uint64
	ImportedTransactions uint64
	BadBlocks            uint64
}

func (r *Report) accrue(other Report) {
	r.ImportedBlocks += other.ImportedBlocks
	r.ImportedTransactions += other.ImportedTransactions
	r.BadBlocks += other.BadBlocks
}

// Client owns every shared resource the import pipeline touches: the chain
// index, the consensus engine, the state database (serialized under dbMu
// because imports must be linearized), the block queue, accumulated
// reporting, and the sealing slot.
type Client struct {
	cfg    Config
	engine consensus.Engine
	signer gethtypes.Signer
	exec   block.Executor

	kv      ethdb.Database
	journal *journaldb.Database
	stateDB state.Database
	index   *chainindex.Index
	queue   *blockqueue.Queue

	dbMu     sync.Mutex // linearizes state mutation across imports and sealing
	importMu sync.Mutex // serializes ImportVerifiedBlocks calls

	bestMu     sync.RWMutex
	bestHeader *types.Header
	bestTD     *uint256.Int

	report   Report
	reportMu sync.Mutex

	sealMu  sync.Mutex
	sealing *block.Closed

	listenersMu sync.Mutex
	listeners   []func(NewChainBlocks)
}

// New constructs a Client over genesis, which must already have its state
// committed to kv at genesis.StateRoot (the caller is responsible for
// seeding the genesis account set before the chain is opened).
func New(cfg Config, kv ethdb.Database, engine consensus.Engine, signer gethtypes.Signer, exec block.Executor, genesis *types.Header) (*Client, error) {
	index, err := chainindex.New(kv, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	journal := journaldb.New(kv, cfg.History, cfg.Archive)
	stateDB := state.NewDatabase(kv)

	if !index.IsKnown(genesis.Hash()) {
		if err := index.Store(genesis, &types.Body{}, nil, chainindex.Details{
			TotalDifficulty: new(uint256.Int).Set(genesis.Difficulty),
			Number:          0,
		}); err != nil {
			return nil, err
		}
	}

	c := &Client{
		cfg:        cfg,
		engine:     engine,
		signer:     signer,
		exec:       exec,
		kv:         kv,
		journal:    journal,
		stateDB:    stateDB,
		index:      index,
		bestHeader: genesis,
		bestTD:     new(uint256.Int).Set(genesis.Difficulty),
	}
	workers := cfg.QueueWorkers
	if workers < 1 {
		workers = 1
	}
	c.queue = blockqueue.New(workers, c.verifyStage1)
	return c, nil
}

func (c *Client) verifyStage1(blk *types.Block) error {
	return verifier.ValidateBasic(blk, c.signer)
}

// BestHeader returns the header of the chain's current head.
func (c *Client) BestHeader() *types.Header {
	c.bestMu.RLock()
	defer c.bestMu.RUnlock()
	return c.bestHeader
}

// StateNonce returns addr's nonce as of the chain's current head state, for
// callers (the transaction pool) that need it as a NonceSource without
// reaching into state internals themselves. It returns 0 if the head
// state cannot be opened, the same default state.New gives a never-seen
// account.
func (c *Client) StateNonce(addr common.Address) uint64 {
	c.dbMu.Lock()
	defer c.dbMu.Unlock()
	st, err := state.New(c.BestHeader().StateRoot, c.stateDB, c.engine.AccountStartNonce())
	if err != nil {
		return 0
	}
	return st.Nonce(addr)
}

// Report returns a snapshot of the accrued import statistics.
func (c *Client) Report() Report {
	c.reportMu.Lock()
	defer c.reportMu.Unlock()
	return c.report
}

// ChainIndex exposes the underlying index for read-only queries (log
// filters, RPC front ends) without giving callers the mutation surface.
func (c *Client) ChainIndex() *chainindex.Index { return c.index }

// Close shuts down the block queue's worker pool.
func (c *Client) Close() { c.queue.Close() }

func (c *Client) chainReader() consensus.ChainReader { return chainHeaderReader{c.index} }

type chainHeaderReader struct{ index *chainindex.Index }

func (r chainHeaderReader) GetHeader(hash common.Hash, _ uint64) *types.Header {
	h, err := r.index.GetHeader(hash)
	if err != nil {
		return nil
	}
	return h
}
