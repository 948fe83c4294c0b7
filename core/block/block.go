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

// Package block implements the three-stage block lifecycle: an Open block
// accepts pushed transactions and uncles against a live State; Close applies
// the engine's end-of-block hook and fixes every header field derivable from
// the executed content; Seal (or TrySeal) attaches the engine's consensus
// proof. Each stage is a distinct Go type, so an illegal transition (sealing
// something still open, pushing a transaction into something already
// closed) is a compile error rather than a runtime one.
package block

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/consensus"
	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/types"
)

// EnvInfo is the execution environment a pushed transaction sees: everything
// about the block being built that a transaction's execution can observe
// (BLOCKHASH, COINBASE, block number, and so on).
type EnvInfo struct {
	Number     uint64
	Author     common.Address
	Timestamp  uint64
	Difficulty *uint256.Int
	GasLimit   uint64
	GasUsed    uint64
	LastHashes types.LastHashes
}

// Executor applies a single transaction against st under env, returning its
// receipt. The EVM interpreter that implements this is an out-of-scope
// collaborator; core/block only depends on this narrow interface.
type Executor interface {
	Execute(env EnvInfo, engine consensus.Engine, st *state.State, tx *gethtypes.Transaction) (*gethtypes.Receipt, error)
}

// executedBlock is the state shared by every lifecycle stage: the header,
// body and receipts accumulated so far, plus the State the header's
// state_root is rooted in.
type executedBlock struct {
	header           *types.Header
	transactions     []*gethtypes.Transaction
	uncles           []*types.Header
	receipts         []*gethtypes.Receipt
	transactionsSeen map[common.Hash]struct{}
	state            *state.State
}

// Open is a block under construction: transactions and uncles may still be
// pushed onto it.
type Open struct {
	block      executedBlock
	engine     consensus.Engine
	lastHashes types.LastHashes
}

// Closed is a block whose content is final: the engine's on-close hook has
// run and every header field derivable from the executed content (roots,
// bloom, gas used) has been fixed. Only a seal is missing.
type Closed struct {
	block      executedBlock
	uncleBytes []byte
}

// Sealed is a block with a valid seal attached, ready for distribution.
type Sealed struct {
	block      executedBlock
	uncleBytes []byte
}

// NewOpen starts a new Open block extending parent.
func NewOpen(engine consensus.Engine, db state.Database, parent *types.Header, lastHashes types.LastHashes, author common.Address, extraData []byte) (*Open, error) {
	st, err := state.New(parent.StateRoot, db, engine.AccountStartNonce())
	if err != nil {
		return nil, err
	}
	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     parent.Number + 1,
		Author:     author,
		Time:       nowAfter(parent.Time),
		Extra:      extraData,
	}
	engine.PopulateFromParent(header, parent)

	o := &Open{
		block: executedBlock{
			header:           header,
			transactionsSeen: make(map[common.Hash]struct{}),
			state:            st,
		},
		engine:     engine,
		lastHashes: lastHashes,
	}
	return o, nil
}

// nowAfter returns the current unix time, bumped forward by one second if it
// would not otherwise exceed parentTime — headers must strictly increase in
// time.
func nowAfter(parentTime uint64) uint64 {
	now := uint64(time.Now().Unix())
	if now <= parentTime {
		return parentTime + 1
	}
	return now
}

func (o *Open) SetAuthor(author common.Address) { o.block.header.Author = author }
func (o *Open) SetTimestamp(ts uint64)           { o.block.header.Time = ts }
func (o *Open) SetDifficulty(d *uint256.Int)     { o.block.header.Difficulty = d }
func (o *Open) SetGasLimit(limit uint64)         { o.block.header.GasLimit = limit }

// SetExtraData overwrites the header's extra data, subject to the engine's
// size bound.
func (o *Open) SetExtraData(data []byte) error {
	if uint64(len(data)) > o.engine.MaximumExtraDataSize() {
		return &BlockError{Stage: "open", Field: "extra_data", Err: ErrExtraDataTooLarge}
	}
	o.block.header.Extra = data
	return nil
}

// PushUncle adds an uncle header, subject to the engine's per-block maximum.
// It does not itself validate the uncle header's contents or its relation to
// this chain — only that another slot remains.
func (o *Open) PushUncle(uncle *types.Header) error {
	if len(o.block.uncles)+1 > o.engine.MaximumUncleCount(o.block.header.Number) {
		return &BlockError{Stage: "open", Field: "uncles", Err: ErrTooManyUncles}
	}
	o.block.uncles = append(o.block.uncles, uncle)
	return nil
}

// EnvInfo returns the execution environment a transaction pushed right now
// would observe.
func (o *Open) EnvInfo() EnvInfo {
	var gasUsed uint64
	if n := len(o.block.receipts); n > 0 {
		gasUsed = o.block.receipts[n-1].CumulativeGasUsed
	}
	return EnvInfo{
		Number:     o.block.header.Number,
		Author:     o.block.header.Author,
		Timestamp:  o.block.header.Time,
		Difficulty: o.block.header.Difficulty,
		GasLimit:   o.block.header.GasLimit,
		GasUsed:    gasUsed,
		LastHashes: o.lastHashes,
	}
}

// PushTransaction executes tx against the block's state via exec and
// archives it together with its receipt. hash, if non-nil, is used instead
// of recomputing tx's hash (an optimization the caller may apply when it
// already knows it).
//
// Per spec.md §4.1, a successful execution is committed immediately so the
// receipt records the post-transaction state root and so the next pushed
// transaction's EnvInfo/state observes this one's effects.
func (o *Open) PushTransaction(tx *gethtypes.Transaction, hash *common.Hash, exec Executor) (*gethtypes.Receipt, error) {
	receipt, err := exec.Execute(o.EnvInfo(), o.engine, o.block.state, tx)
	if err != nil {
		return nil, err
	}
	root, err := o.block.state.Commit()
	if err != nil {
		return nil, err
	}
	receipt.PostState = root.Bytes()

	var h common.Hash
	if hash != nil {
		h = *hash
	} else {
		h = tx.Hash()
	}
	o.block.transactionsSeen[h] = struct{}{}
	o.block.transactions = append(o.block.transactions, tx)
	o.block.receipts = append(o.block.receipts, receipt)
	return receipt, nil
}

// Header returns the block's header as built so far.
func (o *Open) Header() *types.Header { return o.block.header }

// State returns the block's in-progress state.
func (o *Open) State() *state.State { return o.block.state }

// Close finalizes the block: runs the engine's end-of-block hook, then fixes
// every header field the executed content determines (roots, bloom, gas
// used). No further transactions may be pushed afterward.
func (o *Open) Close() (*Closed, error) {
	if err := o.engine.OnCloseBlock(o.block.state, o.block.header, o.block.uncles); err != nil {
		return nil, err
	}

	h := o.block.header
	h.TxRoot = types.DeriveRoot(types.EncodeEach(o.block.transactions))
	h.ReceiptRoot = types.DeriveRoot(types.EncodeEach(o.block.receipts))

	unclesHash, uncleBytes := types.UnclesHash(o.block.uncles)
	h.UnclesHash = unclesHash

	var bloom gethtypes.Bloom
	for _, r := range o.block.receipts {
		rb := receiptBloomBytes(r)
		for i := range bloom {
			bloom[i] |= rb[i]
		}
	}
	h.Bloom = bloom

	root, err := o.block.state.Commit()
	if err != nil {
		return nil, err
	}
	h.StateRoot = root

	if n := len(o.block.receipts); n > 0 {
		h.GasUsed = o.block.receipts[n-1].CumulativeGasUsed
	} else {
		h.GasUsed = 0
	}

	return &Closed{block: o.block, uncleBytes: uncleBytes}, nil
}

// receiptBloomBytes returns the bloom of a single receipt's logs; Close ORs
// these together to form the block-level bloom.
func receiptBloomBytes(r *gethtypes.Receipt) []byte {
	b := gethtypes.CreateBloom(gethtypes.Receipts{r})
	return b[:]
}

// Hash returns the hash of the header without seal arguments — the digest a
// seal is produced over.
func (c *Closed) Hash() common.Hash { return c.block.header.PowHash() }

func (c *Closed) Header() *types.Header                  { return c.block.header }
func (c *Closed) Transactions() []*gethtypes.Transaction  { return c.block.transactions }
func (c *Closed) Receipts() []*gethtypes.Receipt          { return c.block.receipts }
func (c *Closed) Uncles() []*types.Header                 { return c.block.uncles }

// Seal attaches seal without validating it against the engine — the caller
// is trusted to have produced or otherwise verified it already.
func (c *Closed) Seal(engine consensus.Engine, seal [][]byte) (*Sealed, error) {
	count, _ := engine.SealFields()
	if len(seal) != count {
		return nil, &BlockError{Stage: "seal", Field: "seal", Err: ErrInvalidSealArity}
	}
	c.block.header.Seal = seal
	return &Sealed{block: c.block, uncleBytes: c.uncleBytes}, nil
}

// TrySeal attaches seal and validates it against the engine. On failure it
// returns the original Closed block, untouched, so the caller can try a
// different seal.
func (c *Closed) TrySeal(engine consensus.Engine, seal [][]byte) (*Sealed, *Closed, error) {
	header := c.block.header.Copy()
	header.Seal = seal
	if err := engine.VerifyBlockSeal(header); err != nil {
		return nil, c, err
	}
	c.block.header = header
	return &Sealed{block: c.block, uncleBytes: c.uncleBytes}, nil, nil
}

// Drain discards the block's state cache, giving the caller an explicit
// point at which this block's State is no longer live. The underlying
// database handle is unaffected — the caller already holds it.
func (c *Closed) Drain() {
	c.block.state.Drop()
}

func (s *Sealed) Header() *types.Header                 { return s.block.header }
func (s *Sealed) Transactions() []*gethtypes.Transaction { return s.block.transactions }
func (s *Sealed) Receipts() []*gethtypes.Receipt         { return s.block.receipts }
func (s *Sealed) Uncles() []*types.Header                { return s.block.uncles }
func (s *Sealed) Hash() common.Hash                      { return s.block.header.Hash() }

// Block returns the wire-format Block this Sealed value represents.
func (s *Sealed) Block() *types.Block {
	return types.NewBlock(s.block.header, s.block.transactions, s.block.uncles)
}

// Drain discards the block's state cache.
func (s *Sealed) Drain() {
	s.block.state.Drop()
}
