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

// Package types defines the header, body and block shapes that flow through
// the import pipeline. Unlike upstream go-ethereum's core/types, the header
// here carries an engine-defined, variable-arity seal instead of a fixed
// nonce+mixDigest pair, since the sealing engine is pluggable.
package types

import (
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Header is a block header. The first 13 fields are fixed and wire-compatible
// across engines; Seal holds the engine's opaque consensus proof (e.g. a PoW
// nonce+mix pair, or a PoA signature) and is flattened onto the end of the
// RLP list rather than nested, so the arity stays engine-defined.
type Header struct {
	ParentHash  common.Hash    `json:"parentHash"`
	UnclesHash  common.Hash    `json:"sha3Uncles"`
	Author      common.Address `json:"miner"`
	StateRoot   common.Hash    `json:"stateRoot"`
	TxRoot      common.Hash    `json:"transactionsRoot"`
	ReceiptRoot common.Hash    `json:"receiptsRoot"`
	Bloom       gethtypes.Bloom `json:"logsBloom"`
	Difficulty  *uint256.Int   `json:"difficulty"`
	Number      uint64         `json:"number"`
	GasLimit    uint64         `json:"gasLimit"`
	GasUsed     uint64         `json:"gasUsed"`
	Time        uint64         `json:"timestamp"`
	Extra       []byte         `json:"extraData"`
	Seal        [][]byte       `json:"seal"`

	// cached hashes, populated lazily
	hash     atomic.Pointer[common.Hash]
	powHash  atomic.Pointer[common.Hash]
}

// fixedFields returns the 13 fields that precede the seal in encoding order.
func (h *Header) fixedFields() []interface{} {
	return []interface{}{
		h.ParentHash,
		h.UnclesHash,
		h.Author,
		h.StateRoot,
		h.TxRoot,
		h.ReceiptRoot,
		h.Bloom,
		h.difficultyOrZero(),
		h.Number,
		h.GasLimit,
		h.GasUsed,
		h.Time,
		h.Extra,
	}
}

func (h *Header) difficultyOrZero() *uint256.Int {
	if h.Difficulty == nil {
		return new(uint256.Int)
	}
	return h.Difficulty
}

// EncodeRLP implements rlp.Encoder. The wire shape is a single list of the 13
// fixed fields followed by the engine's seal fields, flattened.
func (h *Header) EncodeRLP(w io.Writer) error {
	fields := h.fixedFields()
	for _, s := range h.Seal {
		fields = append(fields, s)
	}
	return rlp.Encode(w, fields)
}

// DecodeRLP implements rlp.Decoder.
func (h *Header) DecodeRLP(s *rlp.Stream) error {
	if _, err := s.List(); err != nil {
		return err
	}
	if err := s.Decode(&h.ParentHash); err != nil {
		return err
	}
	if err := s.Decode(&h.UnclesHash); err != nil {
		return err
	}
	if err := s.Decode(&h.Author); err != nil {
		return err
	}
	if err := s.Decode(&h.StateRoot); err != nil {
		return err
	}
	if err := s.Decode(&h.TxRoot); err != nil {
		return err
	}
	if err := s.Decode(&h.ReceiptRoot); err != nil {
		return err
	}
	if err := s.Decode(&h.Bloom); err != nil {
		return err
	}
	h.Difficulty = new(uint256.Int)
	if err := s.Decode(h.Difficulty); err != nil {
		return err
	}
	if err := s.Decode(&h.Number); err != nil {
		return err
	}
	if err := s.Decode(&h.GasLimit); err != nil {
		return err
	}
	if err := s.Decode(&h.GasUsed); err != nil {
		return err
	}
	if err := s.Decode(&h.Time); err != nil {
		return err
	}
	if err := s.Decode(&h.Extra); err != nil {
		return err
	}
	h.Seal = h.Seal[:0]
	for {
		var b []byte
		if err := s.Decode(&b); err != nil {
			if err == rlp.EOL {
				break
			}
			return err
		}
		h.Seal = append(h.Seal, b)
	}
	return s.ListEnd()
}

// digestWithSeal returns the keccak256 of the header with exactly the given
// seal slice substituted, used to compute both Hash() and PowHash() off one
// code path.
func (h *Header) digestWithSeal(seal [][]byte) common.Hash {
	fields := h.fixedFields()
	for _, s := range seal {
		fields = append(fields, s)
	}
	enc, err := rlp.EncodeToBytes(fields)
	if err != nil {
		panic("header: rlp encode failed: " + err.Error())
	}
	return crypto.Keccak256Hash(enc)
}

// Hash returns the digest over the header including the seal. This is the
// canonical block hash.
func (h *Header) Hash() common.Hash {
	if p := h.hash.Load(); p != nil {
		return *p
	}
	v := h.digestWithSeal(h.Seal)
	h.hash.Store(&v)
	return v
}

// PowHash returns the digest over the header with the seal omitted. Engines
// that verify a proof-of-work style seal check it against this value.
func (h *Header) PowHash() common.Hash {
	if p := h.powHash.Load(); p != nil {
		return *p
	}
	v := h.digestWithSeal(nil)
	h.powHash.Store(&v)
	return v
}

// Copy returns a deep copy, safe to mutate independently of h.
func (h *Header) Copy() *Header {
	cp := *h
	cp.hash = atomic.Pointer[common.Hash]{}
	cp.powHash = atomic.Pointer[common.Hash]{}
	if h.Difficulty != nil {
		cp.Difficulty = new(uint256.Int).Set(h.Difficulty)
	}
	cp.Extra = append([]byte(nil), h.Extra...)
	cp.Seal = make([][]byte, len(h.Seal))
	for i, s := range h.Seal {
		cp.Seal[i] = append([]byte(nil), s...)
	}
	return &cp
}
