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

package verifier

import (
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/ethcorego/ethcore/consensus"
	"github.com/ethcorego/ethcore/core/block"
	"github.com/ethcorego/ethcore/core/types"
)

// BlockError is the typed error every verification stage returns, naming
// which stage failed and over which field.
type BlockError = block.BlockError

// ValidateBasic runs the structural, parent-independent checks: every
// transaction's signature recovers, and the body matches the header's
// transactions_root and uncles_hash. It does not touch chain state and can
// run the moment a block is decoded off the wire.
func ValidateBasic(blk *types.Block, signer gethtypes.Signer) error {
	for _, tx := range blk.Transactions {
		if _, err := signer.Sender(tx); err != nil {
			return &BlockError{Stage: "basic", Field: "transactions", Err: ErrInvalidSignature}
		}
	}
	txRoot := types.DeriveRoot(types.EncodeEach(blk.Transactions))
	if txRoot != blk.Header.TxRoot {
		return &BlockError{Stage: "basic", Field: "transactions_root", Err: ErrTxRootMismatch}
	}
	unclesHash, _ := types.UnclesHash(blk.Uncles)
	if unclesHash != blk.Header.UnclesHash {
		return &BlockError{Stage: "basic", Field: "uncles_hash", Err: ErrUnclesHashMismatch}
	}
	return nil
}

// ValidateFamily runs the checks that relate a candidate block to its
// claimed parent and recent ancestry: number and timestamp monotonicity,
// the gas-limit adjustment bound, the seal's consensus authority (signer
// recovers to an address the engine authorizes, at the difficulty its turn
// entitles it to), the engine's own parent-relative rules (timing, signer
// rotation), and uncle admissibility (engine count cap, no duplicates, none
// a direct ancestor within lastHashes).
func ValidateFamily(chain consensus.ChainReader, engine consensus.Engine, blk *types.Block, parent *types.Header, lastHashes types.LastHashes) error {
	header := blk.Header
	if parent == nil {
		return &BlockError{Stage: "family", Field: "parent_hash", Err: ErrUnknownParent}
	}
	if header.Number != parent.Number+1 {
		return &BlockError{Stage: "family", Field: "number", Err: ErrInvalidNumber}
	}
	if header.Time <= parent.Time {
		return &BlockError{Stage: "family", Field: "timestamp", Err: ErrInvalidTimestamp}
	}
	if err := verifyGasLimit(header, parent); err != nil {
		return err
	}
	// The seal itself is standalone-verifiable (no chain lookups needed),
	// but it is the only check that ties "difficulty obeys the engine's
	// parent-relative rules" (spec.md §4.5) to the *signer's* claim to that
	// difficulty, so it belongs at family time, before a block's content is
	// ever re-executed against parent state.
	if err := engine.VerifyBlockSeal(header); err != nil {
		return &BlockError{Stage: "family", Field: "seal", Err: ErrInvalidSeal}
	}
	if err := engine.VerifyFamily(chain, header, parent); err != nil {
		return &BlockError{Stage: "family", Field: "engine", Err: err}
	}
	if err := validateUncles(engine, header, blk.Uncles, lastHashes); err != nil {
		return err
	}
	return nil
}

func verifyGasLimit(header, parent *types.Header) error {
	var diff uint64
	if header.GasLimit > parent.GasLimit {
		diff = header.GasLimit - parent.GasLimit
	} else {
		diff = parent.GasLimit - header.GasLimit
	}
	if diff > parent.GasLimit/gasLimitBoundDivisor {
		return &BlockError{Stage: "family", Field: "gas_limit", Err: ErrGasLimitInvalid}
	}
	return nil
}

func validateUncles(engine consensus.Engine, header *types.Header, uncles []*types.Header, lastHashes types.LastHashes) error {
	if len(uncles) > engine.MaximumUncleCount(header.Number) {
		return &BlockError{Stage: "family", Field: "uncles", Err: ErrTooManyUncles}
	}
	seen := make(map[[32]byte]struct{}, len(uncles))
	for _, u := range uncles {
		h := u.Hash()
		if _, ok := seen[h]; ok {
			return &BlockError{Stage: "family", Field: "uncles", Err: ErrDuplicateUncle}
		}
		seen[h] = struct{}{}
		for _, ancestor := range lastHashes {
			if ancestor == h {
				return &BlockError{Stage: "family", Field: "uncles", Err: ErrUncleIsAncestor}
			}
		}
	}
	return nil
}

// ValidateFinal compares candidate — the header as received off the wire —
// against got — the header produced by actually enacting the block's
// transactions and uncles against its parent's state — field by field over
// everything enactment determines. Any mismatch names the offending field.
func ValidateFinal(candidate, got *types.Header) error {
	switch {
	case candidate.StateRoot != got.StateRoot:
		return &BlockError{Stage: "final", Field: "state_root", Err: ErrHeaderFieldMismatch}
	case candidate.TxRoot != got.TxRoot:
		return &BlockError{Stage: "final", Field: "transactions_root", Err: ErrHeaderFieldMismatch}
	case candidate.ReceiptRoot != got.ReceiptRoot:
		return &BlockError{Stage: "final", Field: "receipts_root", Err: ErrHeaderFieldMismatch}
	case candidate.UnclesHash != got.UnclesHash:
		return &BlockError{Stage: "final", Field: "uncles_hash", Err: ErrHeaderFieldMismatch}
	case candidate.Bloom != got.Bloom:
		return &BlockError{Stage: "final", Field: "logs_bloom", Err: ErrHeaderFieldMismatch}
	case candidate.GasUsed != got.GasUsed:
		return &BlockError{Stage: "final", Field: "gas_used", Err: ErrHeaderFieldMismatch}
	default:
		return nil
	}
}
