// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package block

import (
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ethcorego/ethcore/consensus"
	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/types"
)

// PreverifiedBlock is a block whose structural (basic + family) checks have
// already passed, paired with its raw wire bytes so EnactVerified does not
// need to re-derive the uncle list from scratch.
type PreverifiedBlock struct {
	Header       *types.Header
	Transactions []*gethtypes.Transaction
	Bytes        []byte
}

// Enact replays header's declared transactions and uncles against parent's
// state, reproducing the deterministic Closed block that header claims to
// be. This is the verification-by-replay primitive the import pipeline uses:
// if the replay's derived header fields don't match header, the block is
// rejected (see core/verifier's final stage).
func Enact(header *types.Header, transactions []*gethtypes.Transaction, uncles []*types.Header, engine consensus.Engine, db state.Database, parent *types.Header, lastHashes types.LastHashes, exec Executor) (*Closed, error) {
	o, err := NewOpen(engine, db, parent, lastHashes, header.Author, header.Extra)
	if err != nil {
		return nil, err
	}
	o.SetDifficulty(header.Difficulty)
	o.SetGasLimit(header.GasLimit)
	o.SetTimestamp(header.Time)

	for _, tx := range transactions {
		if _, err := o.PushTransaction(tx, nil, exec); err != nil {
			return nil, err
		}
	}
	for _, u := range uncles {
		if err := o.PushUncle(u); err != nil {
			return nil, err
		}
	}
	return o.Close()
}

// EnactBytes decodes blockBytes and enacts it.
func EnactBytes(blockBytes []byte, engine consensus.Engine, db state.Database, parent *types.Header, lastHashes types.LastHashes, exec Executor) (*Closed, error) {
	blk, err := types.DecodeBlockBytes(blockBytes)
	if err != nil {
		return nil, err
	}
	return Enact(blk.Header, blk.Transactions, blk.Uncles, engine, db, parent, lastHashes, exec)
}

// EnactVerified enacts a block that has already passed structural
// pre-verification, reusing its decoded transaction list and deriving
// uncles from its retained raw bytes.
func EnactVerified(blk *PreverifiedBlock, engine consensus.Engine, db state.Database, parent *types.Header, lastHashes types.LastHashes, exec Executor) (*Closed, error) {
	decoded, err := types.DecodeBlockBytes(blk.Bytes)
	if err != nil {
		return nil, err
	}
	return Enact(blk.Header, blk.Transactions, decoded.Uncles, engine, db, parent, lastHashes, exec)
}

// EnactAndSeal enacts blockBytes and immediately seals the result with the
// seal carried by its own header, producing a Sealed block whose encoding
// should round-trip to blockBytes when the replay was faithful.
func EnactAndSeal(blockBytes []byte, engine consensus.Engine, db state.Database, parent *types.Header, lastHashes types.LastHashes, exec Executor) (*Sealed, error) {
	blk, err := types.DecodeBlockBytes(blockBytes)
	if err != nil {
		return nil, err
	}
	closed, err := EnactBytes(blockBytes, engine, db, parent, lastHashes, exec)
	if err != nil {
		return nil, err
	}
	return closed.Seal(engine, blk.Header.Seal)
}
