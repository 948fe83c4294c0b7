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

package client

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/chainindex"
	"github.com/ethcorego/ethcore/core/block"
	"github.com/ethcorego/ethcore/core/types"
	"github.com/ethcorego/ethcore/core/verifier"
)

// ImportBlock hands raw to the block queue for asynchronous stage-1
// verification. The queue itself rejects a hash already in flight or
// already known bad; ImportBlock additionally rejects a hash the chain
// index already holds, so a re-broadcast of an old block never even
// reaches a worker.
func (c *Client) ImportBlock(raw []byte) (common.Hash, error) {
	blk, err := types.DecodeBlockBytes(raw)
	if err != nil {
		return common.Hash{}, err
	}
	hash := blk.Header.Hash()
	if c.index.IsKnown(hash) {
		return hash, ErrAlreadyInChain
	}
	return c.queue.Submit(raw)
}

// ImportVerifiedBlocks drains up to importBatchSize blocks that passed
// stage-1 verification and replays each one: stage 2 (family) and stage 3
// (final, post-replay) checks, a commit of the resulting state, and a
// chain-index insertion recorded strictly after that commit. A failure marks
// the offending block bad; any later block in this same batch whose parent
// was marked bad is marked bad too, without replay. The batch is not
// aborted: blocks that do not descend from a bad one are still processed.
// Blocks beyond importBatchSize stay in the queue for the next call.
func (c *Client) ImportVerifiedBlocks() (Report, error) {
	c.importMu.Lock()
	defer c.importMu.Unlock()

	blocks := c.queue.Drain(importBatchSize)
	if len(blocks) == 0 {
		return Report{}, nil
	}

	var (
		batch       Report
		good, bad   []common.Hash
		badInBatch  = mapset.NewThreadUnsafeSet[common.Hash]()
		retracted   []common.Hash
		enacted     []common.Hash
		reorganised bool
	)

	for _, blk := range blocks {
		hash := blk.Header.Hash()
		if badInBatch.Contains(blk.Header.ParentHash) {
			badInBatch.Add(hash)
			bad = append(bad, hash)
			batch.BadBlocks++
			continue
		}

		details, route, err := c.checkAndCloseAndCommit(blk)
		if err != nil {
			log.Warn("client: rejecting block", "hash", hash, "number", blk.Header.Number, "err", err)
			badInBatch.Add(hash)
			bad = append(bad, hash)
			batch.BadBlocks++
			continue
		}
		good = append(good, hash)
		batch.ImportedBlocks++
		batch.ImportedTransactions += uint64(len(blk.Transactions))

		c.bestMu.Lock()
		if details.TotalDifficulty.Cmp(c.bestTD) > 0 {
			c.bestHeader = blk.Header
			c.bestTD = details.TotalDifficulty
			reorganised = true
			retracted = route.Retracted
			enacted = route.Enacted
		}
		c.bestMu.Unlock()
	}

	c.queue.MarkBad(bad)
	c.queue.MarkGood(good)

	c.reportMu.Lock()
	c.report.accrue(batch)
	c.reportMu.Unlock()

	if len(good) > 0 && c.queue.Info().Queued == 0 {
		c.emit(NewChainBlocks{Good: good, Bad: bad, Retracted: retracted, Enacted: enacted})
	}

	if reorganised && c.cfg.SealingEnabled {
		if err := c.PrepareSealing(); err != nil {
			log.Warn("client: prepare_sealing failed after import", "err", err)
		}
	}

	return batch, nil
}

var errHistoryExceeded = errors.New("client: block older than the retained history window")
var errParentVanished = errors.New("client: parent no longer in chain")

// checkAndCloseAndCommit is check_and_close_block plus the commit/index
// steps, bundled together because nothing else in the batch loop needs the
// Closed block once this returns.
func (c *Client) checkAndCloseAndCommit(blk *types.Block) (chainindex.Details, chainindex.Route, error) {
	var route chainindex.Route

	best := c.BestHeader()
	if best.Number > c.cfg.History && blk.Header.Number < best.Number-c.cfg.History {
		return chainindex.Details{}, route, errHistoryExceeded
	}

	parentHeader, err := c.index.GetHeader(blk.Header.ParentHash)
	if err != nil {
		return chainindex.Details{}, route, errParentVanished
	}
	parentDetails, err := c.index.GetDetails(blk.Header.ParentHash)
	if err != nil {
		return chainindex.Details{}, route, errParentVanished
	}

	lastHashes, err := c.buildLastHashes(blk.Header.ParentHash)
	if err != nil {
		return chainindex.Details{}, route, err
	}

	if err := verifier.ValidateFamily(c.chainReader(), c.engine, blk, parentHeader, lastHashes); err != nil {
		return chainindex.Details{}, route, err
	}

	// Per spec.md §5, only the handle itself is shared mutable state: clone
	// it (cheap — a shared, reference-counted trie database under the hood)
	// while holding dbMu, then run the actual enactment against the clone
	// outside the lock so a long replay never blocks a concurrent sealing
	// attempt from reading c.stateDB.
	c.dbMu.Lock()
	db := c.stateDB
	c.dbMu.Unlock()

	closed, err := block.Enact(blk.Header, blk.Transactions, blk.Uncles, c.engine, db, parentHeader, lastHashes, c.exec)
	if err != nil {
		return chainindex.Details{}, route, err
	}

	if err := verifier.ValidateFinal(blk.Header, closed.Header()); err != nil {
		return chainindex.Details{}, route, err
	}

	td := new(uint256.Int).Add(parentDetails.TotalDifficulty, blk.Header.Difficulty)
	details := chainindex.Details{
		ParentHash:      blk.Header.ParentHash,
		TotalDifficulty: td,
		Number:          blk.Header.Number,
	}

	// State is already durable: Open.Close committed it above. journal.Commit
	// only records this block's era for pruning bookkeeping — State.Commit
	// exposes no released-node list, so every commit here is recorded with
	// an empty released set (see DESIGN.md).
	if err := c.journal.Commit(blk.Header.Number, blk.Header.Hash(), nil); err != nil {
		return chainindex.Details{}, route, err
	}
	if err := c.index.Store(blk.Header, blk.Body(), closed.Receipts(), details); err != nil {
		return chainindex.Details{}, route, err
	}

	if best.Hash() != blk.Header.ParentHash {
		if r, err := c.index.TreeRoute(best.Hash(), blk.Header.Hash()); err == nil {
			route = r
		}
	}
	return details, route, nil
}
