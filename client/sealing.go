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
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethcorego/ethcore/core/block"
	"github.com/ethcorego/ethcore/core/types"
)

// buildLastHashes assembles the 256-generation BLOCKHASH window ending at
// parent: slot 0 is parent itself, slot i is parent's i-th ancestor, padded
// with the zero hash once the walk runs past genesis.
func (c *Client) buildLastHashes(parent common.Hash) (types.LastHashes, error) {
	var out types.LastHashes
	hash := parent
	for i := 0; i < maxLastHashes; i++ {
		out[i] = hash
		if hash == (common.Hash{}) {
			continue
		}
		header, err := c.index.GetHeader(hash)
		if err != nil || header.Number == 0 {
			hash = common.Hash{}
			continue
		}
		hash = header.ParentHash
	}
	return out, nil
}

// PrepareSealing builds a fresh Open block on top of the current best block
// and closes it, parking the result in the sealing slot for SubmitSeal. Any
// block previously parked there is discarded: only one sealing job is ever
// outstanding.
func (c *Client) PrepareSealing() error {
	best := c.BestHeader()
	lastHashes, err := c.buildLastHashes(best.Hash())
	if err != nil {
		return err
	}

	c.dbMu.Lock()
	open, err := block.NewOpen(c.engine, c.stateDB, best, lastHashes, c.cfg.Author, c.cfg.ExtraData)
	if err != nil {
		c.dbMu.Unlock()
		return err
	}
	// TODO: pull eligible transactions out of the pending pool once a pool
	// instance is wired through Config; an empty block is still a valid
	// sealing candidate.
	for _, uncle := range c.eligibleUncles(best) {
		if err := open.PushUncle(uncle); err != nil {
			continue
		}
	}
	closed, err := open.Close()
	c.dbMu.Unlock()
	if err != nil {
		return err
	}

	c.sealMu.Lock()
	c.sealing = closed
	c.sealMu.Unlock()
	return nil
}

// eligibleUncles always returns nil: the chain index keeps no record of
// non-canonical siblings, so no uncle candidates are ever found and sealed
// blocks carry no uncles. The engine's MaximumUncleCount is consulted only
// to return early.
func (c *Client) eligibleUncles(best *types.Header) []*types.Header {
	max := c.engine.MaximumUncleCount(best.Number + 1)
	if max <= 0 {
		return nil
	}
	// Uncle discovery needs a siblings-of-ancestor index this package does
	// not yet maintain; returning none keeps sealing correct (an uncle-free
	// block is always valid) while leaving room to wire real discovery in
	// once the chain index tracks non-canonical siblings explicitly.
	return nil
}

// SubmitSeal completes the block parked in the sealing slot with seal,
// feeding the resulting bytes back through ImportBlock so it takes the same
// validation path as any externally received block.
func (c *Client) SubmitSeal(powHash common.Hash, seal [][]byte) (common.Hash, error) {
	c.sealMu.Lock()
	closed := c.sealing
	c.sealMu.Unlock()
	if closed == nil {
		return common.Hash{}, ErrNoSealingWork
	}
	if closed.Hash() != powHash {
		return common.Hash{}, ErrPowHashInvalid
	}

	sealed, unsealed, err := closed.TrySeal(c.engine, seal)
	if err != nil {
		c.sealMu.Lock()
		if c.sealing == closed {
			c.sealing = unsealed
		}
		c.sealMu.Unlock()
		return common.Hash{}, ErrPowInvalid
	}

	c.sealMu.Lock()
	if c.sealing == closed {
		c.sealing = nil
	}
	c.sealMu.Unlock()

	blk := sealed.Block()
	raw, err := blk.EncodeBytes()
	if err != nil {
		return common.Hash{}, err
	}
	return c.ImportBlock(raw)
}
