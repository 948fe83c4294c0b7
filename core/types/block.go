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

package types

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// ErrRlpIsTooBig is returned when an RLP payload carries trailing bytes
	// beyond its declared length.
	ErrRlpIsTooBig = errors.New("rlp: block payload shorter than stream")
	// ErrRlpIncorrectListLen is returned when the outer block list does not
	// have exactly 3 items (header, transactions, uncles).
	ErrRlpIncorrectListLen = errors.New("rlp: block list must have 3 items")
)

// Body is the ordered transaction and uncle-header lists that, together with
// a Header, make up a Block.
type Body struct {
	Transactions []*gethtypes.Transaction
	Uncles       []*Header
}

// Block is a block as transmitted on the wire: [Header, Transactions, Uncles].
type Block struct {
	Header       *Header
	Transactions []*gethtypes.Transaction
	Uncles       []*Header
}

// NewBlock assembles a Block from its three constituent parts.
func NewBlock(header *Header, txs []*gethtypes.Transaction, uncles []*Header) *Block {
	return &Block{Header: header, Transactions: txs, Uncles: uncles}
}

// Body returns the block's body, detached from its header.
func (b *Block) Body() *Body {
	return &Body{Transactions: b.Transactions, Uncles: b.Uncles}
}

// Hash returns the block hash (header hash, including seal).
func (b *Block) Hash() common.Hash { return b.Header.Hash() }

// EncodeBytes returns the canonical RLP bytes for the block: a 3-item list
// of header, transactions, uncles.
func (b *Block) EncodeBytes() ([]byte, error) {
	return rlp.EncodeToBytes([]interface{}{b.Header, b.Transactions, b.Uncles})
}

// DecodeBlockBytes decodes a Block from raw RLP bytes, rejecting list
// lengths other than 3 and any trailing bytes beyond the declared payload —
// the structural checks the original Block::decode performs.
func DecodeBlockBytes(data []byte) (*Block, error) {
	content, rest, err := rlp.SplitList(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ErrRlpIsTooBig
	}
	n, err := rlp.CountValues(content)
	if err != nil {
		return nil, err
	}
	if n != 3 {
		return nil, ErrRlpIncorrectListLen
	}
	s := rlp.NewStream(bytes.NewReader(content), uint64(len(content)))
	block := new(Block)
	header := new(Header)
	if err := s.Decode(header); err != nil {
		return nil, err
	}
	var txs []*gethtypes.Transaction
	if err := s.Decode(&txs); err != nil {
		return nil, err
	}
	var uncles []*Header
	if err := s.Decode(&uncles); err != nil {
		return nil, err
	}
	block.Header, block.Transactions, block.Uncles = header, txs, uncles
	return block, nil
}

// LastHashes is the 256-generation ancestor-hash window supplied to
// transaction execution for the BLOCKHASH opcode. Slot 0 is the parent.
type LastHashes [256]common.Hash
