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

// Package consensus defines the pluggable sealing/verification engine
// boundary: everything the block lifecycle and verifier need from "the rules
// that decide which chain wins and who may author a block", without naming a
// specific algorithm. consensus/poa supplies the one concrete engine this
// repository ships.
package consensus

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/types"
)

// ChainReader is the narrow slice of chain history an Engine needs to
// validate a header against its ancestors, without depending on the full
// chainindex or client packages.
type ChainReader interface {
	GetHeader(hash common.Hash, number uint64) *types.Header
}

// Engine is the seal/validation authority a block passes through at each
// lifecycle stage. Implementations are expected to be stateless with respect
// to a single block (any cross-block memory, e.g. a PoA signer rotation,
// lives inside the engine instance and is guarded by the engine itself).
type Engine interface {
	// Author recovers the address that is to be credited with this block,
	// which for non-trivial engines may differ from the header's Author
	// field (e.g. recovered from a seal signature rather than trusted
	// as-is).
	Author(header *types.Header) (common.Address, error)

	// SealFields returns the number and byte-length bounds the engine
	// expects its Header.Seal to carry, used by the verifier's structural
	// check before the engine is asked to do anything semantic.
	SealFields() (count int, maxLen int)

	// MaximumUncleCount bounds how many uncles a block at the given height
	// may reference.
	MaximumUncleCount(number uint64) int

	// MaximumExtraDataSize bounds the header's Extra field.
	MaximumExtraDataSize() uint64

	// AccountStartNonce is the nonce newly-created accounts begin at; almost
	// universally zero, but engine-defined since some chains have used a
	// non-zero starting nonce to distinguish contract accounts.
	AccountStartNonce() uint64

	// PopulateFromParent fills the engine-owned header fields (difficulty,
	// gas limit policy, and so on) of header given its parent, before the
	// block is opened for transaction execution.
	PopulateFromParent(header, parent *types.Header)

	// VerifyBlockSeal checks the header's seal is valid standalone (without
	// reference to chain history) — the "proof of work is big enough" /
	// "signature recovers to an authorized signer" check.
	VerifyBlockSeal(header *types.Header) error

	// VerifyFamily checks header against its parent and further ancestry
	// reachable through chain (difficulty progression, timestamp ordering,
	// signer rotation, and so on).
	VerifyFamily(chain ChainReader, header, parent *types.Header) error

	// OnCloseBlock gives the engine a chance to apply end-of-block state
	// transitions (block rewards, validator bookkeeping) before the block is
	// closed and its state root computed.
	OnCloseBlock(st *state.State, header *types.Header, uncles []*types.Header) error

	// Seal produces the engine-specific seal for header, blocking until a
	// seal is ready or stop is closed. Returns (nil, nil) if stop fires
	// first without an engine error.
	Seal(header *types.Header, stop <-chan struct{}) ([][]byte, error)
}
