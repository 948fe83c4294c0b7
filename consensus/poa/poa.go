// Copyright 2019 The go-ethereum Authors
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

// Package poa implements a clique-style single-signature proof-of-authority
// engine: a fixed set of authorized signers take turns sealing blocks,
// in-turn seals carry a higher difficulty than out-of-turn ones, and a
// header's seal is an ECDSA signature recoverable to one of the authorized
// addresses.
package poa

import (
	"bytes"
	"errors"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/ethcorego/ethcore/consensus"
	"github.com/ethcorego/ethcore/core/state"
	"github.com/ethcorego/ethcore/core/types"
)

const (
	sealLength = crypto.SignatureLength // 65-byte recoverable ECDSA signature

	// diffInTurn and diffNoTurn are the difficulty values assigned to blocks
	// depending on whether their signer held the round-robin turn, following
	// clique's convention of weighting in-turn sealers above out-of-turn
	// ones so honest forks with an in-turn block win ties.
	diffInTurnUint = 2
	diffNoTurnUint = 1
)

var (
	errUnauthorizedSigner = errors.New("poa: block signed by an address outside the authority set")
	errMissingSeal        = errors.New("poa: header carries no seal")
	errWrongDifficulty    = errors.New("poa: difficulty does not match signer's turn")
	errInvalidTimestamp   = errors.New("poa: header timestamp not after parent")
)

// Config is the static authority-set configuration for the engine.
type Config struct {
	Signers []common.Address // authorized signer set, sorted ascending
	Period  time.Duration    // minimum spacing between consecutive block timestamps
}

// Engine is a poa.Config bound to a running signer identity (if this node is
// itself one of the authorized signers and wishes to seal blocks).
type Engine struct {
	signers []common.Address // sorted ascending, the canonical order turns rotate through
	period  time.Duration

	signer     common.Address
	signFn     func(hash common.Hash) ([]byte, error)
	accountSet map[common.Address]struct{}
}

// New builds a poa.Engine from cfg.
func New(cfg Config) *Engine {
	signers := append([]common.Address(nil), cfg.Signers...)
	sort.Slice(signers, func(i, j int) bool { return bytes.Compare(signers[i][:], signers[j][:]) < 0 })
	set := make(map[common.Address]struct{}, len(signers))
	for _, s := range signers {
		set[s] = struct{}{}
	}
	return &Engine{signers: signers, period: cfg.Period, accountSet: set}
}

// Authorize binds the engine to a local signing identity, enabling Seal.
func (e *Engine) Authorize(signer common.Address, signFn func(hash common.Hash) ([]byte, error)) {
	e.signer = signer
	e.signFn = signFn
}

// inTurn reports whether signer holds the round-robin turn at the given
// block number.
func (e *Engine) inTurn(number uint64, signer common.Address) bool {
	if len(e.signers) == 0 {
		return false
	}
	idx := -1
	for i, s := range e.signers {
		if s == signer {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	return number%uint64(len(e.signers)) == uint64(idx)
}

// Author recovers the signer address from header's seal.
func (e *Engine) Author(header *types.Header) (common.Address, error) {
	return recoverSigner(header)
}

func recoverSigner(header *types.Header) (common.Address, error) {
	if len(header.Seal) != 1 || len(header.Seal[0]) != sealLength {
		return common.Address{}, errMissingSeal
	}
	pub, err := crypto.SigToPub(header.PowHash().Bytes(), header.Seal[0])
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (e *Engine) SealFields() (count int, maxLen int) { return 1, sealLength }

func (e *Engine) MaximumUncleCount(number uint64) int { return 0 } // PoA chains have no uncle reward to fight over

func (e *Engine) MaximumExtraDataSize() uint64 { return 32 }

func (e *Engine) AccountStartNonce() uint64 { return 0 }

func (e *Engine) PopulateFromParent(header, parent *types.Header) {
	header.Number = parent.Number + 1
	header.GasLimit = parent.GasLimit
	if e.signer != (common.Address{}) && e.inTurn(header.Number, e.signer) {
		header.Difficulty = uint256.NewInt(diffInTurnUint)
	} else {
		header.Difficulty = uint256.NewInt(diffNoTurnUint)
	}
}

// VerifyBlockSeal checks that the seal recovers to an authorized signer and
// that the declared difficulty matches that signer's turn.
func (e *Engine) VerifyBlockSeal(header *types.Header) error {
	signer, err := recoverSigner(header)
	if err != nil {
		return err
	}
	if _, ok := e.accountSet[signer]; !ok {
		return errUnauthorizedSigner
	}
	wantInTurn := e.inTurn(header.Number, signer)
	gotInTurn := header.Difficulty != nil && header.Difficulty.Uint64() == diffInTurnUint
	if wantInTurn != gotInTurn {
		return errWrongDifficulty
	}
	return nil
}

// VerifyFamily checks timestamp monotonicity against the minimum period.
func (e *Engine) VerifyFamily(chain consensus.ChainReader, header, parent *types.Header) error {
	if header.Time < parent.Time+uint64(e.period.Seconds()) {
		return errInvalidTimestamp
	}
	return nil
}

// OnCloseBlock does nothing for PoA: there is no block subsidy to mint,
// matching the teacher's observation (in TestReimportMirroredState) that
// PoA networks may produce consecutive blocks with identical state roots.
func (e *Engine) OnCloseBlock(st *state.State, header *types.Header, uncles []*types.Header) error {
	return nil
}

// Seal signs header.PowHash() with the authorized signer and returns the
// seal. When the signer is out of turn it first waits one period, returning
// (nil, nil) if stop fires during that wait.
func (e *Engine) Seal(header *types.Header, stop <-chan struct{}) ([][]byte, error) {
	if e.signFn == nil {
		return nil, errors.New("poa: engine is not authorized to seal")
	}
	if _, ok := e.accountSet[e.signer]; !ok {
		return nil, errUnauthorizedSigner
	}
	if !e.inTurn(header.Number, e.signer) {
		delay := e.period
		log.Info("poa: waiting for signing turn", "number", header.Number, "delay", delay)
		select {
		case <-time.After(delay):
		case <-stop:
			return nil, nil
		}
	}
	sig, err := e.signFn(header.PowHash())
	if err != nil {
		return nil, err
	}
	return [][]byte{sig}, nil
}
