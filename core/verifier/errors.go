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

// Package verifier runs the three short-circuiting checks an incoming block
// must pass before its state is trusted: structural self-consistency,
// family relation to its claimed parent, and exact agreement between its
// claimed header and what re-executing it actually produces.
package verifier

import "errors"

var (
	ErrInvalidSignature  = errors.New("verifier: transaction signature does not recover")
	ErrTxRootMismatch    = errors.New("verifier: transactions_root does not match body")
	ErrUnclesHashMismatch = errors.New("verifier: uncles_hash does not match body")

	ErrUnknownParent    = errors.New("verifier: parent header not supplied")
	ErrInvalidNumber    = errors.New("verifier: number is not parent.number+1")
	ErrInvalidTimestamp = errors.New("verifier: timestamp does not exceed parent's")
	ErrGasLimitInvalid  = errors.New("verifier: gas limit adjustment exceeds parent's 1/1024 bound")
	ErrTooManyUncles    = errors.New("verifier: uncle count exceeds engine maximum")
	ErrUncleIsAncestor  = errors.New("verifier: uncle is a direct ancestor of this block")
	ErrDuplicateUncle   = errors.New("verifier: uncle listed more than once")
	ErrInvalidSeal      = errors.New("verifier: seal does not recover to an authorized signer at the claimed difficulty")

	ErrHeaderFieldMismatch = errors.New("verifier: post-enactment header does not match candidate")
)

// gasLimitBoundDivisor is the maximum fraction by which a child's gas limit
// may move away from its parent's in one block, matching the bound every
// mainline Ethereum client enforces regardless of consensus engine.
const gasLimitBoundDivisor = 1024
